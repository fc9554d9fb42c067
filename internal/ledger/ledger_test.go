package ledger

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/dunamismax/enhancegate/internal/recordstore"
)

type fakeAccountStore struct {
	records  []recordstore.Record
	queryErr error

	updates   []map[string]any
	updateIDs []string
	updateErr error
}

func (s *fakeAccountStore) Query(_ context.Context, _ string) ([]recordstore.Record, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.records, nil
}

func (s *fakeAccountStore) Update(_ context.Context, recordID string, fields map[string]any) (recordstore.Record, error) {
	s.updateIDs = append(s.updateIDs, recordID)
	s.updates = append(s.updates, fields)
	if s.updateErr != nil {
		return recordstore.Record{}, s.updateErr
	}
	return recordstore.Record{ID: recordID, Fields: fields}, nil
}

func accountRecord(id string, used, allowed int) recordstore.Record {
	return recordstore.Record{
		ID: id,
		Fields: map[string]any{
			FieldAPIKey:         "K1",
			FieldUsedCredits:    float64(used),
			FieldAllowedCredits: float64(allowed),
		},
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestCheckReportsRemainingCredits(t *testing.T) {
	store := &fakeAccountStore{records: []recordstore.Record{accountRecord("rec1", 3, 5)}}
	result := New(testLogger(), store, nil).Check(context.Background(), "K1")

	if result.Status != StatusOK {
		t.Fatalf("expected status ok, got %s", result.Status)
	}
	if result.Remaining != 2 {
		t.Fatalf("expected remaining=2, got %d", result.Remaining)
	}
	if result.Message != "2 crédits restants (utilisés: 3/5)" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
	if len(store.updates) != 0 {
		t.Fatal("Check must not mutate the account")
	}
}

func TestCheckExhaustedNeverOK(t *testing.T) {
	for _, used := range []int{5, 7} {
		store := &fakeAccountStore{records: []recordstore.Record{accountRecord("rec1", used, 5)}}
		result := New(testLogger(), store, nil).Check(context.Background(), "K1")

		if result.Status != StatusExhausted {
			t.Fatalf("used=%d: expected exhausted, got %s", used, result.Status)
		}
		if result.Remaining > 0 {
			t.Fatalf("used=%d: expected non-positive remaining, got %d", used, result.Remaining)
		}
	}
}

func TestCheckUnknownKey(t *testing.T) {
	store := &fakeAccountStore{}
	result := New(testLogger(), store, nil).Check(context.Background(), "missing")

	if result.Status != StatusNotFound {
		t.Fatalf("expected not_found, got %s", result.Status)
	}
	if result.Message != "Clé API non trouvée" {
		t.Fatalf("unexpected message: %q", result.Message)
	}
}

func TestCheckSurfacesStoreOutageAsUnavailable(t *testing.T) {
	var notified []string
	store := &fakeAccountStore{queryErr: &recordstore.StoreError{Status: 503, Message: "down"}}
	result := New(testLogger(), store, func(op string, _ error) {
		notified = append(notified, op)
	}).Check(context.Background(), "K1")

	if result.Status != StatusUnavailable {
		t.Fatalf("expected unavailable, got %s", result.Status)
	}
	if len(notified) != 1 || notified[0] != "ledger.check" {
		t.Fatalf("expected one ledger.check notification, got %v", notified)
	}
}

func TestCheckIsIdempotent(t *testing.T) {
	store := &fakeAccountStore{records: []recordstore.Record{accountRecord("rec1", 3, 5)}}
	l := New(testLogger(), store, nil)

	for i := 0; i < 3; i++ {
		if result := l.Check(context.Background(), "K1"); result.Remaining != 2 {
			t.Fatalf("call %d: expected remaining=2, got %d", i, result.Remaining)
		}
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected no writes, got %d", len(store.updates))
	}
}

func TestIncrementWritesUsedCredits(t *testing.T) {
	store := &fakeAccountStore{records: []recordstore.Record{accountRecord("rec7", 3, 5)}}
	New(testLogger(), store, nil).Increment(context.Background(), "K1", 1)

	if len(store.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(store.updates))
	}
	if store.updateIDs[0] != "rec7" {
		t.Fatalf("expected update to rec7, got %s", store.updateIDs[0])
	}
	if store.updates[0][FieldUsedCredits] != 4 {
		t.Fatalf("expected Used_credits=4, got %v", store.updates[0][FieldUsedCredits])
	}
}

func TestIncrementSwallowsFailures(t *testing.T) {
	var notified []string
	notify := func(op string, _ error) { notified = append(notified, op) }

	missing := &fakeAccountStore{}
	New(testLogger(), missing, notify).Increment(context.Background(), "K1", 1)
	if len(missing.updates) != 0 {
		t.Fatal("expected no update for unknown key")
	}

	failing := &fakeAccountStore{
		records:   []recordstore.Record{accountRecord("rec1", 3, 5)},
		updateErr: errors.New("write refused"),
	}
	New(testLogger(), failing, notify).Increment(context.Background(), "K1", 1)

	if len(notified) != 1 || notified[0] != "ledger.increment" {
		t.Fatalf("expected one ledger.increment notification, got %v", notified)
	}
}
