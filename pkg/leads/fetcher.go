package leads

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/sources"
	"github.com/dwc-systems/lead-map/pkg/utils"
)

// maxBodyBytes bounds a single lead response.
const maxBodyBytes = 16 << 20

// Fetcher retrieves the current lead list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]Record, error)

func (f FetcherFunc) Fetch(ctx context.Context) ([]Record, error) { return f(ctx) }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("leads endpoint returned %s", e.Status)
}

// HTTPFetcher GETs the lead list from the platform API.
type HTTPFetcher struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewHTTPFetcher(endpoint string, timeout time.Duration) *HTTPFetcher {
	if endpoint == "" {
		endpoint = sources.LeadsEndpoint
	}
	return &HTTPFetcher{
		Endpoint: endpoint,
		Client:   &http.Client{},
		Timeout:  timeout,
		Log:      zap.NewNop(),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]Record, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent)

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", f.Endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Endpoint, err)
	}
	records, skipped, err := DecodeLeads(body)
	if skipped > 0 && f.Log != nil {
		f.Log.Debug("skipped undecodable lead records", zap.Int("skipped", skipped), zap.Int("kept", len(records)))
	}
	return records, err
}
