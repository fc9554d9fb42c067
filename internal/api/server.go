package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/dunamismax/enhancegate/internal/domain"
	"github.com/dunamismax/enhancegate/internal/gateway"
	"github.com/dunamismax/enhancegate/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const apiKeyHeader = "X-API-Key"

// Server is the thin HTTP surface over the gateway. Quota enforcement here
// is advisory: /v1/enhance does not pre-gate on /v1/credits, callers decide
// whether to check first.
type Server struct {
	logger      *log.Logger
	gateway     enhancementGateway
	rateLimiter RateLimiter
	metrics     *metrics
	tracer      trace.Tracer
	mux         *http.ServeMux
}

type enhancementGateway interface {
	CheckCredit(ctx context.Context, apiKey string) ledger.CheckResult
	Submit(ctx context.Context, apiKey string, req domain.EnhanceRequest) gateway.Result
}

func NewServer(logger *log.Logger, gw enhancementGateway, rateLimiter RateLimiter, registry *prometheus.Registry) *Server {
	s := &Server{
		logger:      logger,
		gateway:     gw,
		rateLimiter: rateLimiter,
		metrics:     newMetrics(registry),
		tracer:      otel.Tracer("enhancegate/api"),
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("GET /v1/credits", s.handleCredits)
	s.mux.HandleFunc("POST /v1/enhance", s.handleEnhance)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCredits(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(apiKeyHeader)
	if apiKey == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + apiKeyHeader + " header"})
		return
	}

	result := s.gateway.CheckCredit(r.Context(), apiKey)
	writeJSON(w, creditStatusCode(result.Status), map[string]any{
		"status":    result.Status,
		"remaining": result.Remaining,
		"message":   result.Message,
	})
}

type enhanceRequest struct {
	Image    string `json:"image"`
	Filename string `json:"filename,omitempty"`
	Scale    int    `json:"scale"`
	Format   string `json:"format"`
}

type enhanceResponse struct {
	OutputImage    string  `json:"output_image"`
	OriginalSize   string  `json:"original_size,omitempty"`
	OutputSize     string  `json:"output_size,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
	Filename       string  `json:"filename"`
	DownloadURL    string  `json:"download_url,omitempty"`
}

func (s *Server) handleEnhance(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(apiKeyHeader)
	if apiKey == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing " + apiKeyHeader + " header"})
		return
	}

	var req enhanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	image, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image must be valid base64"})
		return
	}

	submission := domain.EnhanceRequest{
		Image:    image,
		Filename: req.Filename,
		Scale:    req.Scale,
		Format:   req.Format,
	}
	if err := submission.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result := s.gateway.Submit(r.Context(), apiKey, submission)
	if !result.OK {
		s.logger.Printf("enhance request failed status=%s err=%s", result.Status, result.ErrorMessage)
		writeJSON(w, failureStatusCode(result.Status), map[string]string{
			"status": result.Status,
			"error":  result.ErrorMessage,
		})
		return
	}

	name := req.Filename
	if name == "" {
		name = "image"
	}

	writeJSON(w, http.StatusOK, enhanceResponse{
		OutputImage:    base64.StdEncoding.EncodeToString(result.Output),
		OriginalSize:   result.OriginalSize,
		OutputSize:     result.OutputSize,
		ProcessingTime: result.ProcessingTime,
		Filename:       domain.OutputFilename(name, req.Scale, req.Format),
		DownloadURL:    result.DownloadURL,
	})
}

func creditStatusCode(status string) int {
	switch status {
	case ledger.StatusOK:
		return http.StatusOK
	case ledger.StatusExhausted:
		return http.StatusPaymentRequired
	case ledger.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func failureStatusCode(status string) int {
	switch status {
	case domain.StatusException:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeJSON(r *http.Request, into any) error {
	// Base64-encoded uploads are bulky; the limit leaves room for an image a
	// few times larger than anything the original UI accepted.
	const maxBodyBytes = 32 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
