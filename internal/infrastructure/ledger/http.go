package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tonka1973/BreweryManager-sub001/internal/domain/ledger"
	"github.com/tonka1973/BreweryManager-sub001/internal/domain/record"
	"github.com/tonka1973/BreweryManager-sub001/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPLedger talks to a spreadsheet-style REST gateway:
//
//	GET    {base}/tables/{table}/rows
//	PUT    {base}/tables/{table}/rows/{id}
//	DELETE {base}/tables/{table}/rows/{id}
//
// Requests are paced client side so the gateway's quota is not exceeded.
type HTTPLedger struct {
	baseURL *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// HTTPLedgerOption configures an HTTPLedger
type HTTPLedgerOption func(*HTTPLedger)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPLedgerOption {
	return func(l *HTTPLedger) {
		l.client = c
	}
}

// WithHTTPLogger sets the logger
func WithHTTPLogger(logger *zap.Logger) HTTPLedgerOption {
	return func(l *HTTPLedger) {
		l.logger = logger
	}
}

// NewHTTPLedger creates an HTTP ledger from configuration
func NewHTTPLedger(cfg config.RemoteHTTPConfig, opts ...HTTPLedgerOption) (*HTTPLedger, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid ledger base url %q", cfg.BaseURL)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	l := &HTTPLedger{
		baseURL: base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type wireRow struct {
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
	ModifiedAt time.Time      `json:"modified_at"`
}

type listResponse struct {
	Rows []wireRow `json:"rows"`
}

type upsertRequest struct {
	Fields map[string]any `json:"fields"`
}

// ListRows fetches every row of table
func (l *HTTPLedger) ListRows(ctx context.Context, table string) ([]ledger.RemoteRow, error) {
	resp, err := l.do(ctx, http.MethodGet, l.rowsURL(table, ""), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp, false); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body listResponse
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: list %s: malformed response: %v", ledger.ErrUnavailable, table, err)
	}

	rows := make([]ledger.RemoteRow, 0, len(body.Rows))
	for _, w := range body.Rows {
		row := ledger.RemoteRow{ID: w.ID, ModifiedAt: w.ModifiedAt.UTC()}
		fields, err := record.DecodeWire(w.Fields)
		if err != nil {
			row.Malformed = fmt.Errorf("%s row %s: %w", table, w.ID, err)
		} else {
			row.Fields = fields
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UpsertRow writes fields under id
func (l *HTTPLedger) UpsertRow(ctx context.Context, table, id string, fields record.Fields) error {
	payload, err := json.Marshal(upsertRequest{Fields: record.EncodeWire(fields)})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", table, id, err)
	}
	resp, err := l.do(ctx, http.MethodPut, l.rowsURL(table, id), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp, false); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	return nil
}

// DeleteRow removes a row. A row the gateway does not know is already gone.
func (l *HTTPLedger) DeleteRow(ctx context.Context, table, id string) error {
	resp, err := l.do(ctx, http.MethodDelete, l.rowsURL(table, id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := statusError(resp, true); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (l *HTTPLedger) rowsURL(table, id string) string {
	u := *l.baseURL
	u.Path = u.Path + "/tables/" + url.PathEscape(table) + "/rows"
	if id != "" {
		u.Path += "/" + url.PathEscape(id)
	}
	return u.String()
}

func (l *HTTPLedger) do(ctx context.Context, method, target string, body []byte) (*http.Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ledger.ErrRateLimited, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	start := time.Now()
	resp, err := l.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ledger.ErrUnavailable, err)
	}
	l.logger.Debug("Ledger request",
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

// statusError maps a response status onto the ledger failure modes
func statusError(resp *http.Response, deleting bool) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound && deleting:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ledger.ErrRateLimited, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ledger.ErrUnavailable, code)
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.TrimSpace(string(msg))
	if detail == "" {
		detail = http.StatusText(code)
	}
	return errors.Join(ledger.ErrRemoteRejected, fmt.Errorf("status %d: %s", code, detail))
}

var _ ledger.Adapter = (*HTTPLedger)(nil)
