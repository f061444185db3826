package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/trajview/trip"
)

// maxBodyBytes caps a downloaded table.
const maxBodyBytes = 256 << 20

// HTTPSource fetches <baseURL>/<key>.csv from a web mirror.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	maxBody    int64
}

// NewHTTPSource creates an HTTPSource for the given base URL.
func NewHTTPSource(baseURL string, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		maxBody: maxBodyBytes,
	}
}

// URL returns the address the key resolves to.
func (s *HTTPSource) URL(key string) string {
	return s.baseURL + "/" + url.PathEscape(key) + ".csv"
}

// Fetch performs an HTTP GET and parses the body. 404 yields ErrNotFound.
func (s *HTTPSource) Fetch(ctx context.Context, key string) (*Table, error) {
	target := s.URL(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, trip.NewFall(trip.Load, "create request", err, trip.Context{"url": target})
	}

	s.logger.Info("downloading table", "url", target)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, trip.NewFall(trip.Load, "fetch table", err, trip.Context{"url": target})
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, trip.NewFall(trip.Load, fmt.Sprintf("unexpected status code %d", resp.StatusCode), nil, trip.Context{"url": target})
	}

	// One byte past the limit tells a full body from a truncated one.
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, trip.NewFall(trip.Load, "read response body", err, trip.Context{"url": target})
	}
	if int64(len(data)) > s.maxBody {
		return nil, trip.NewFall(trip.Load, "response body exceeds limit", nil, trip.Context{"url": target, "limit": s.maxBody})
	}
	return ParseCSV(bytes.NewReader(data), CSVOptions{})
}
