package enhance

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/enhancegate/internal/domain"
)

// DefaultTimeout bounds one enhancement call. The service is compute-heavy
// and synchronous, so the bound is generous.
const DefaultTimeout = 5 * time.Minute

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client calls the external image-enhancement service. One bounded attempt
// per call; no retries.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// Outcome is the result of one remote call. Status carries the audit tag for
// the attempt; sizes are server-reported opaque strings passed through
// verbatim. Elapsed covers the whole call, whatever the outcome.
type Outcome struct {
	OK           bool
	Status       string
	Output       []byte
	OriginalSize string
	OutputSize   string
	ErrorMessage string
	Elapsed      float64
}

type callRequest struct {
	Image  string `json:"image"`
	Scale  int    `json:"scale"`
	Format string `json:"format"`
}

type callResponse struct {
	Success      bool   `json:"success"`
	OutputImage  string `json:"output_image,omitempty"`
	OriginalSize string `json:"original_size,omitempty"`
	OutputSize   string `json:"output_size,omitempty"`
	Error        string `json:"error,omitempty"`
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: strings.TrimSpace(cfg.Endpoint),
	}
}

// Call submits the image and classifies the response. Transport failures map
// to status=exception, non-200 responses to status=http_error, and 200
// responses with success=false to status=api_error.
func (c *Client) Call(ctx context.Context, image []byte, scale int, format string) Outcome {
	start := time.Now()
	outcome := c.call(ctx, image, scale, format)
	outcome.Elapsed = roundSeconds(time.Since(start))
	return outcome
}

func (c *Client) call(ctx context.Context, image []byte, scale int, format string) Outcome {
	payload := callRequest{
		Image:  base64.StdEncoding.EncodeToString(image),
		Scale:  scale,
		Format: format,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(domain.StatusException, fmt.Sprintf("marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(domain.StatusException, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(domain.StatusException, err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(domain.StatusException, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return failure(domain.StatusHTTPError, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result callResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return failure(domain.StatusException, fmt.Sprintf("decode response: %v", err))
	}

	if !result.Success {
		message := result.Error
		if message == "" {
			message = "Erreur inconnue"
		}
		return failure(domain.StatusAPIError, message)
	}

	output, err := base64.StdEncoding.DecodeString(result.OutputImage)
	if err != nil {
		return failure(domain.StatusException, fmt.Sprintf("decode output image: %v", err))
	}

	return Outcome{
		OK:           true,
		Status:       domain.StatusSuccess,
		Output:       output,
		OriginalSize: result.OriginalSize,
		OutputSize:   result.OutputSize,
	}
}

func failure(status, message string) Outcome {
	return Outcome{
		Status:       status,
		ErrorMessage: message,
	}
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
