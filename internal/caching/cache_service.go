package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"agridist/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type CacheService interface {
	// Product caching
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error

	// Central stock caching
	GetStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error)
	SetStock(ctx context.Context, stock *models.ProductStock, ttl time.Duration) error
	DeleteStock(ctx context.Context, productID uuid.UUID) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient builds the shared redis connection. Accepts
// redis://host:port URLs as well as bare host:port.
func NewRedisClient(addr, password string, db int) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	}

	return client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func productKey(productID uuid.UUID) string {
	return fmt.Sprintf("agridist:product:%s", productID)
}

func stockKey(productID uuid.UUID) string {
	return fmt.Sprintf("agridist:stock:%s", productID)
}

func (s *redisCacheService) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	data, err := s.client.Get(ctx, productKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	product := &models.Product{}
	if err := json.Unmarshal(data, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *redisCacheService) SetProduct(ctx context.Context, product *models.Product, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, productKey(product.ID), data, ttl).Err()
}

func (s *redisCacheService) GetStock(ctx context.Context, productID uuid.UUID) (*models.ProductStock, error) {
	data, err := s.client.Get(ctx, stockKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	stock := &models.ProductStock{}
	if err := json.Unmarshal(data, stock); err != nil {
		return nil, err
	}
	return stock, nil
}

func (s *redisCacheService) SetStock(ctx context.Context, stock *models.ProductStock, ttl time.Duration) error {
	data, err := json.Marshal(stock)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stockKey(stock.ProductID), data, ttl).Err()
}

func (s *redisCacheService) DeleteStock(ctx context.Context, productID uuid.UUID) error {
	return s.client.Del(ctx, stockKey(productID)).Err()
}
