package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dunamismax/enhancegate/internal/domain"
	"github.com/dunamismax/enhancegate/internal/enhance"
	"github.com/dunamismax/enhancegate/internal/id"
	"github.com/dunamismax/enhancegate/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type creditLedger interface {
	Check(ctx context.Context, apiKey string) ledger.CheckResult
	Increment(ctx context.Context, apiKey string, delta int)
}

type auditRecorder interface {
	Record(ctx context.Context, entry domain.AuditEntry)
}

type enhancer interface {
	Call(ctx context.Context, image []byte, scale int, format string) enhance.Outcome
}

type resultArchiver interface {
	Store(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

// Gateway coordinates one enhancement attempt end to end: call the remote
// service, always write exactly one audit record, and consume a credit only
// when the service delivered. It is stateless and safe for concurrent use;
// two concurrent submits for the same key can both pass a prior Check before
// either increment lands (the record store has no compare-and-swap).
type Gateway struct {
	logger   *log.Logger
	ledger   creditLedger
	audit    auditRecorder
	enhancer enhancer
	archiver resultArchiver
	notify   func(op string, err error)
	metrics  *metrics
	tracer   trace.Tracer
}

// Result is the caller-facing outcome of one Submit. On failure Status holds
// the audit tag and ErrorMessage the underlying cause; on success the sizes
// are the server-reported strings, passed through verbatim.
type Result struct {
	OK             bool
	Status         string
	Output         []byte
	OriginalSize   string
	OutputSize     string
	ProcessingTime float64
	DownloadURL    string
	ErrorMessage   string
}

// New builds a Gateway. archiver and notify may be nil; registerer may be nil
// to skip metrics registration.
func New(
	logger *log.Logger,
	creditLedger creditLedger,
	audit auditRecorder,
	enhancer enhancer,
	archiver resultArchiver,
	notify func(op string, err error),
	registerer prometheus.Registerer,
) *Gateway {
	return &Gateway{
		logger:   logger,
		ledger:   creditLedger,
		audit:    audit,
		enhancer: enhancer,
		archiver: archiver,
		notify:   notify,
		metrics:  newMetrics(registerer),
		tracer:   otel.Tracer("enhancegate/gateway"),
	}
}

// CheckCredit reports the quota state for a key without consuming anything.
// Callers that want to block on quota invoke this before Submit; Submit
// itself does not gate on it.
func (g *Gateway) CheckCredit(ctx context.Context, apiKey string) ledger.CheckResult {
	return g.ledger.Check(ctx, apiKey)
}

// Submit runs one enhancement attempt. Whatever happens, exactly one audit
// entry is written; the credit is consumed only after a successful delivery.
func (g *Gateway) Submit(ctx context.Context, apiKey string, req domain.EnhanceRequest) Result {
	ctx, span := g.tracer.Start(ctx, "gateway.submit", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.Int("enhance.scale", req.Scale),
		attribute.String("enhance.format", req.Format),
		attribute.Int("enhance.input_bytes", len(req.Image)),
	)
	defer span.End()

	var outcome enhance.Outcome
	if err := req.Validate(); err != nil {
		// An invalid request still counts as an attempt: it gets its own
		// audit entry, tagged the way an in-flight fault would be.
		outcome = enhance.Outcome{
			Status:       domain.StatusException,
			ErrorMessage: err.Error(),
		}
	} else {
		outcome = g.enhancer.Call(ctx, req.Image, req.Scale, strings.ToUpper(strings.TrimSpace(req.Format)))
	}

	g.audit.Record(ctx, domain.AuditEntry{
		APIKey:         apiKey,
		Status:         outcome.Status,
		OriginalSize:   outcome.OriginalSize,
		OutputSize:     outcome.OutputSize,
		Scale:          req.Scale,
		Format:         req.Format,
		ProcessingTime: outcome.Elapsed,
		ErrorMessage:   outcome.ErrorMessage,
	})

	g.metrics.attemptsTotal.WithLabelValues(outcome.Status).Inc()
	g.metrics.callDuration.WithLabelValues(outcome.Status).Observe(outcome.Elapsed)

	if !outcome.OK {
		g.logger.Printf("enhancement failed status=%s elapsed=%.2fs err=%s", outcome.Status, outcome.Elapsed, outcome.ErrorMessage)
		span.SetStatus(codes.Error, outcome.Status)
		return Result{
			Status:         outcome.Status,
			ProcessingTime: outcome.Elapsed,
			ErrorMessage:   outcome.ErrorMessage,
		}
	}

	g.ledger.Increment(ctx, apiKey, 1)
	g.metrics.creditsConsumed.Inc()

	downloadURL := g.archiveOutput(ctx, req, outcome)

	g.logger.Printf(
		"enhancement succeeded scale=%d format=%s output_bytes=%d elapsed=%.2fs",
		req.Scale,
		req.Format,
		len(outcome.Output),
		outcome.Elapsed,
	)
	span.SetStatus(codes.Ok, "enhanced")

	return Result{
		OK:             true,
		Status:         outcome.Status,
		Output:         outcome.Output,
		OriginalSize:   outcome.OriginalSize,
		OutputSize:     outcome.OutputSize,
		ProcessingTime: outcome.Elapsed,
		DownloadURL:    downloadURL,
	}
}

// archiveOutput is best effort, like the audit trail: a failed archive write
// never fails the enhancement already delivered to the caller.
func (g *Gateway) archiveOutput(ctx context.Context, req domain.EnhanceRequest, outcome enhance.Outcome) string {
	if g.archiver == nil {
		return ""
	}

	name := req.Filename
	if strings.TrimSpace(name) == "" {
		name = "image"
	}
	objectKey := fmt.Sprintf("outputs/%s/%s", id.New(), domain.OutputFilename(name, req.Scale, req.Format))

	storeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url, err := g.archiver.Store(storeCtx, objectKey, outcome.Output, contentType(req.Format))
	if err != nil {
		g.logger.Printf("archive write failed object_key=%s err=%v", objectKey, err)
		if g.notify != nil {
			g.notify("gateway.archive", err)
		}
		return ""
	}

	g.metrics.archivedTotal.Inc()
	return url
}

func contentType(format string) string {
	if strings.ToUpper(strings.TrimSpace(format)) == domain.FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}
