package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL: baseURL,
		Token:   "test-token",
		BaseID:  "appACCOUNTS",
		Table:   "credits",
	})
}

func TestQuerySendsBearerTokenAndFilter(t *testing.T) {
	var (
		gotAuth   string
		gotFilter string
		gotPath   string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFilter = r.URL.Query().Get("filterByFormula")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]any{
				{"id": "rec1", "fields": map[string]any{"API_KEY": "K1", "Used_credits": 3}},
			},
		})
	}))
	defer srv.Close()

	records, err := newTestClient(srv.URL).Query(context.Background(), EqualsFilter("API_KEY", "K1"))
	if err != nil {
		t.Fatalf("query returned error: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotFilter != "{API_KEY} = 'K1'" {
		t.Fatalf("unexpected filter: %q", gotFilter)
	}
	if gotPath != "/appACCOUNTS/credits" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if len(records) != 1 || records[0].ID != "rec1" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Int("Used_credits") != 3 {
		t.Fatalf("expected Used_credits=3, got %d", records[0].Int("Used_credits"))
	}
	if records[0].String("API_KEY") != "K1" {
		t.Fatalf("expected API_KEY=K1, got %q", records[0].String("API_KEY"))
	}
}

func TestCreateWrapsFieldsEnvelope(t *testing.T) {
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "rec9",
			"fields": map[string]any{"status": "success"},
		})
	}))
	defer srv.Close()

	record, err := newTestClient(srv.URL).Create(context.Background(), map[string]any{"status": "success"})
	if err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if record.ID != "rec9" {
		t.Fatalf("expected rec9, got %s", record.ID)
	}

	fields, ok := gotBody["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected fields envelope, got %+v", gotBody)
	}
	if fields["status"] != "success" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

func TestUpdatePatchesRecordByID(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "rec1",
			"fields": map[string]any{"Used_credits": 4},
		})
	}))
	defer srv.Close()

	record, err := newTestClient(srv.URL).Update(context.Background(), "rec1", map[string]any{"Used_credits": 4})
	if err != nil {
		t.Fatalf("update returned error: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Fatalf("expected PATCH, got %s", gotMethod)
	}
	if gotPath != "/appACCOUNTS/credits/rec1" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if record.Int("Used_credits") != 4 {
		t.Fatalf("expected Used_credits=4, got %d", record.Int("Used_credits"))
	}
}

func TestNon2xxBecomesStoreError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Query(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for 429 response")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if storeErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", storeErr.Status)
	}
}

func TestTransportFailureBecomesStoreError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newTestClient(srv.URL).Query(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for unreachable store")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %T", err)
	}
	if storeErr.Status != 0 {
		t.Fatalf("expected status 0 for transport failure, got %d", storeErr.Status)
	}
}

func TestEqualsFilterEscapesQuotes(t *testing.T) {
	got := EqualsFilter("API_KEY", "o'brien")
	if got != `{API_KEY} = 'o\'brien'` {
		t.Fatalf("unexpected filter: %s", got)
	}
}
