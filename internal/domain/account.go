package domain

// CreditAccount mirrors one row of the remote accounts collection. The record
// store does not enforce UsedCredits <= AllowedCredits; the ledger checks
// before granting.
type CreditAccount struct {
	APIKey         string
	UsedCredits    int
	AllowedCredits int
}

func (a CreditAccount) Remaining() int {
	return a.AllowedCredits - a.UsedCredits
}
