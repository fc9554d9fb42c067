package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/dunamismax/enhancegate/internal/domain"
	"github.com/dunamismax/enhancegate/internal/recordstore"
)

const (
	StatusOK          = "ok"
	StatusExhausted   = "exhausted"
	StatusNotFound    = "not_found"
	StatusUnavailable = "unavailable"
)

// Field names of the remote accounts collection.
const (
	FieldAPIKey         = "API_KEY"
	FieldUsedCredits    = "Used_credits"
	FieldAllowedCredits = "Allowed_credits"
)

type accountStore interface {
	Query(ctx context.Context, filterExpression string) ([]recordstore.Record, error)
	Update(ctx context.Context, recordID string, fields map[string]any) (recordstore.Record, error)
}

// Ledger resolves API keys to credit accounts and meters usage against them.
// It holds no state of its own; every call round-trips to the record store.
type Ledger struct {
	logger *log.Logger
	store  accountStore
	notify func(op string, err error)
}

type CheckResult struct {
	Status    string
	Remaining int
	Message   string
}

// New builds a Ledger. notify may be nil; when set it observes swallowed
// best-effort failures without changing control flow.
func New(logger *log.Logger, store accountStore, notify func(op string, err error)) *Ledger {
	return &Ledger{
		logger: logger,
		store:  store,
		notify: notify,
	}
}

// Check resolves the key and reports remaining credits. It never mutates the
// account and converts store failures into StatusUnavailable instead of
// returning an error.
func (l *Ledger) Check(ctx context.Context, apiKey string) CheckResult {
	account, _, err := l.resolve(ctx, apiKey)
	if err != nil {
		l.logger.Printf("credit check failed err=%v", err)
		l.report("ledger.check", err)
		return CheckResult{
			Status:  StatusUnavailable,
			Message: "Statut des crédits non disponible",
		}
	}
	if account == nil {
		return CheckResult{
			Status:  StatusNotFound,
			Message: "Clé API non trouvée",
		}
	}

	remaining := account.Remaining()
	if remaining <= 0 {
		return CheckResult{
			Status:    StatusExhausted,
			Remaining: remaining,
			Message:   fmt.Sprintf("Plus de crédits restants (utilisés: %d/%d)", account.UsedCredits, account.AllowedCredits),
		}
	}
	return CheckResult{
		Status:    StatusOK,
		Remaining: remaining,
		Message:   fmt.Sprintf("%d crédits restants (utilisés: %d/%d)", remaining, account.UsedCredits, account.AllowedCredits),
	}
}

// Increment adds delta to the account's used credits. It is best effort: a
// missing key or a failed write is dropped after logging, because a failed
// increment must never invalidate an enhancement already delivered to the
// caller. The account is re-queried rather than cached from Check, so a
// concurrent external edit wins silently.
func (l *Ledger) Increment(ctx context.Context, apiKey string, delta int) {
	account, recordID, err := l.resolve(ctx, apiKey)
	if err != nil {
		l.logger.Printf("credit increment lookup failed err=%v", err)
		l.report("ledger.increment", err)
		return
	}
	if account == nil {
		l.logger.Printf("credit increment skipped: key not found")
		return
	}

	_, err = l.store.Update(ctx, recordID, map[string]any{
		FieldUsedCredits: account.UsedCredits + delta,
	})
	if err != nil {
		l.logger.Printf("credit increment write failed err=%v", err)
		l.report("ledger.increment", err)
	}
}

func (l *Ledger) resolve(ctx context.Context, apiKey string) (*domain.CreditAccount, string, error) {
	records, err := l.store.Query(ctx, recordstore.EqualsFilter(FieldAPIKey, apiKey))
	if err != nil {
		return nil, "", err
	}
	if len(records) == 0 {
		return nil, "", nil
	}

	record := records[0]
	account := domain.CreditAccount{
		APIKey:         apiKey,
		UsedCredits:    record.Int(FieldUsedCredits),
		AllowedCredits: record.Int(FieldAllowedCredits),
	}
	return &account, record.ID, nil
}

func (l *Ledger) report(op string, err error) {
	if l.notify != nil {
		l.notify(op, err)
	}
}
