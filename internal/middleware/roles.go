package middleware

import (
	"net/http"
	"strings"

	"agridist/internal/common"

	"github.com/labstack/echo/v4"
)

// Role is the closed set of caller roles. Legacy deployments carried
// free-form role strings with tolerated typos; those synonyms are mapped
// here, once, at the identity boundary and nowhere else.
type Role string

const (
	RoleIssuerAdmin    Role = "issuer_admin"
	RoleDistributor    Role = "distributor"
	RoleSubDistributor Role = "sub_distributor"
	RoleFieldAgent     Role = "field_agent"
)

var legacyRoleSynonyms = map[string]Role{
	"admin":          RoleIssuerAdmin,
	"administrator":  RoleIssuerAdmin,
	"issuer":         RoleIssuerAdmin,
	"dealer":         RoleDistributor,
	"distributer":    RoleDistributor,
	"subdealer":      RoleSubDistributor,
	"sub-dealer":     RoleSubDistributor,
	"subdistributor": RoleSubDistributor,
	"agent":          RoleFieldAgent,
	"fieldagent":     RoleFieldAgent,
}

// NormalizeRole maps a raw role string (canonical or legacy synonym) onto the
// closed enum. Unknown strings are rejected rather than passed through.
func NormalizeRole(raw string) (Role, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch Role(s) {
	case RoleIssuerAdmin, RoleDistributor, RoleSubDistributor, RoleFieldAgent:
		return Role(s), true
	}
	if role, ok := legacyRoleSynonyms[s]; ok {
		return role, true
	}
	return "", false
}

// RequireRole allows the request through only when the authenticated caller
// holds one of the given roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := common.GetRoleFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
			}
			for _, r := range roles {
				if Role(raw) == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
		}
	}
}
