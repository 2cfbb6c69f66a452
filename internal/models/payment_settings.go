package models

// PaymentSettings is external configuration shown to requesters so they know
// where to remit payment before uploading a receipt. Injected at startup,
// never mutated by the core.
type PaymentSettings struct {
	BeneficiaryName string `json:"beneficiary_name"`
	BankAccount     string `json:"bank_account"`
	IFSCCode        string `json:"ifsc_code"`
	UPIAddress      string `json:"upi_address"`
}
