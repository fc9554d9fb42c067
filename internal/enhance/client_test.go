package enhance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/enhancegate/internal/domain"
)

func TestCallSuccessDecodesOutput(t *testing.T) {
	output := []byte("fake-enhanced-image-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req callRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Scale != 4 || req.Format != domain.FormatJPEG {
			t.Errorf("unexpected request: %+v", req)
		}
		if _, err := base64.StdEncoding.DecodeString(req.Image); err != nil {
			t.Errorf("image is not valid base64: %v", err)
		}

		_ = json.NewEncoder(w).Encode(callResponse{
			Success:      true,
			OutputImage:  base64.StdEncoding.EncodeToString(output),
			OriginalSize: "800x600",
			OutputSize:   "3200x2400",
		})
	}))
	defer srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 4, domain.FormatJPEG)

	if !outcome.OK {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.Status != domain.StatusSuccess {
		t.Fatalf("expected status success, got %s", outcome.Status)
	}
	if string(outcome.Output) != string(output) {
		t.Fatalf("output bytes mismatch: got %d bytes", len(outcome.Output))
	}
	if outcome.OriginalSize != "800x600" || outcome.OutputSize != "3200x2400" {
		t.Fatalf("sizes not passed through: %+v", outcome)
	}
}

func TestCallNon200IsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "service overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 2, domain.FormatPNG)

	if outcome.OK {
		t.Fatal("expected failure")
	}
	if outcome.Status != domain.StatusHTTPError {
		t.Fatalf("expected http_error, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.ErrorMessage, "HTTP 503") {
		t.Fatalf("expected HTTP 503 in message, got %q", outcome.ErrorMessage)
	}
	if !strings.Contains(outcome.ErrorMessage, "service overloaded") {
		t.Fatalf("expected body in message, got %q", outcome.ErrorMessage)
	}
}

func TestCallServerReportedFailureIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(callResponse{Success: false, Error: "model does not support 8x"})
	}))
	defer srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 8, domain.FormatPNG)

	if outcome.Status != domain.StatusAPIError {
		t.Fatalf("expected api_error, got %s", outcome.Status)
	}
	if outcome.ErrorMessage != "model does not support 8x" {
		t.Fatalf("unexpected message: %q", outcome.ErrorMessage)
	}
}

func TestCallServerFailureWithoutMessageGetsDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(callResponse{Success: false})
	}))
	defer srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 2, domain.FormatJPEG)

	if outcome.ErrorMessage != "Erreur inconnue" {
		t.Fatalf("expected default error text, got %q", outcome.ErrorMessage)
	}
}

func TestCallTransportFailureIsException(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 2, domain.FormatJPEG)

	if outcome.Status != domain.StatusException {
		t.Fatalf("expected exception, got %s", outcome.Status)
	}
	if outcome.ErrorMessage == "" {
		t.Fatal("expected a transport error message")
	}
}

func TestCallTimeoutIsException(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	client := NewClient(Config{Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	outcome := client.Call(context.Background(), []byte("input"), 2, domain.FormatJPEG)

	if outcome.Status != domain.StatusException {
		t.Fatalf("expected exception on timeout, got %s", outcome.Status)
	}
	if outcome.Elapsed <= 0 {
		t.Fatalf("expected elapsed time to be measured, got %v", outcome.Elapsed)
	}
}

func TestCallCorruptOutputImageIsException(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(callResponse{Success: true, OutputImage: "not-base64!!"})
	}))
	defer srv.Close()

	outcome := NewClient(Config{Endpoint: srv.URL}).Call(context.Background(), []byte("input"), 2, domain.FormatJPEG)

	if outcome.Status != domain.StatusException {
		t.Fatalf("expected exception, got %s", outcome.Status)
	}
}
