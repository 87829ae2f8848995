// Package enrich calls the remote semantic enrichment service that suggests
// account types from names. The service is optional: every failure mode maps
// to ErrUnavailable and the caller keeps its local classification.
package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// RequestTimeout bounds a single enrichment round trip.
const RequestTimeout = 30 * time.Second

// ErrUnavailable covers every non-fatal service failure: network errors,
// timeouts, non-2xx statuses, unparseable bodies, and success=false replies.
var ErrUnavailable = errors.New("enrichment service unavailable")

// AccountRef is the per-account payload sent to the service.
type AccountRef struct {
	Code string `json:"code"`
	Name string `json:"name"`
	ID   string `json:"id,omitempty"`
}

// Options tunes a single enrichment request.
type Options struct {
	ExistingTypes []string `json:"existingTypes"`
}

// Request is the wire shape of an enrichment call.
type Request struct {
	CompanyID       string                 `json:"companyId"`
	Accounts        []AccountRef           `json:"accounts"`
	StructureConfig model.StructureProfile `json:"structureConfig"`
	Options         Options                `json:"options"`
}

// Result is one per-code suggestion from the service. Older deployments nest
// the type under "enriched.likely_type" instead of "predicted_type".
type Result struct {
	Code          string `json:"code"`
	PredictedType string `json:"predicted_type,omitempty"`
	Enriched      *struct {
		LikelyType string `json:"likely_type"`
	} `json:"enriched,omitempty"`
	Confidence      float64  `json:"confidence"`
	PredictedLevel  int      `json:"predicted_level,omitempty"`
	PredictedParent string   `json:"predicted_parent,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

// Type returns the suggested account type, whichever field carried it.
func (r Result) Type() string {
	if r.PredictedType != "" {
		return r.PredictedType
	}
	if r.Enriched != nil {
		return r.Enriched.LikelyType
	}
	return ""
}

// Response is the wire shape of an enrichment reply.
type Response struct {
	Success bool     `json:"success"`
	Results []Result `json:"results"`
}

// Client calls the enrichment service with a shared rate limit so that
// back-to-back import jobs do not hammer it.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates an enrichment client. requestsPerSecond caps the outbound
// rate; zero or negative disables the limiter.
func NewClient(baseURL string, requestsPerSecond float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: RequestTimeout},
		limiter: limiter,
		logger:  logger,
	}
}

// Enrich sends one batch of accounts and returns the service's suggestions
// keyed by code. Any failure returns ErrUnavailable (wrapped); the caller is
// expected to continue with its local results.
func (c *Client) Enrich(ctx context.Context, req Request) (map[string]Result, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}
	if len(req.Accounts) == 0 {
		return map[string]Result{}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal enrichment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create enrichment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("enrichment request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("enrichment service returned non-2xx", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var reply Response
	if err := json.Unmarshal(body, &reply); err != nil {
		c.logger.Warn("failed to parse enrichment response", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !reply.Success {
		return nil, fmt.Errorf("%w: service reported failure", ErrUnavailable)
	}

	byCode := make(map[string]Result, len(reply.Results))
	for _, res := range reply.Results {
		if res.Code == "" || res.Type() == "" {
			continue
		}
		byCode[res.Code] = res
	}
	c.logger.Info("enrichment batch completed",
		slog.Int("sent", len(req.Accounts)),
		slog.Int("matched", len(byCode)),
	)
	return byCode, nil
}
