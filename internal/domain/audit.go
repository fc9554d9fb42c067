package domain

const (
	StatusSuccess   = "success"
	StatusAPIError  = "api_error"
	StatusHTTPError = "http_error"
	StatusException = "exception"
)

// AuditEntry is one immutable record of an enhancement attempt. Exactly one
// entry is written per Submit call, whatever the outcome.
type AuditEntry struct {
	Timestamp      string
	APIKey         string
	Status         string
	OriginalSize   string
	OutputSize     string
	Scale          int
	Format         string
	ProcessingTime float64
	ErrorMessage   string
}
