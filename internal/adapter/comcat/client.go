package comcat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/couchcryptid/dyfi-induced-db/internal/domain"
	"github.com/couchcryptid/dyfi-induced-db/internal/observability"
)

// fdsnTime is the timestamp layout accepted by the FDSN event service.
const fdsnTime = "2006-01-02T15:04:05"

// Client queries the ComCat FDSN event service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a ComCat client for the given query endpoint.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Events returns every event with a DYFI product whose origin time falls in
// [start, end). Long ranges are queried one calendar year at a time.
func (c *Client) Events(ctx context.Context, start, end time.Time) ([]*domain.CatalogEvent, error) {
	windows, err := domain.SplitByYear(start, end)
	if err != nil {
		return nil, fmt.Errorf("catalog query range: %w", err)
	}

	var events []*domain.CatalogEvent
	for _, w := range windows {
		c.logger.Info("querying catalog", "start", w.Start.Format(fdsnTime), "end", w.End.Format(fdsnTime))

		params := url.Values{
			"format":      {"geojson"},
			"producttype": {"dyfi"},
			"starttime":   {w.Start.Format(fdsnTime)},
			"endtime":     {w.End.Format(fdsnTime)},
		}
		var fc domain.FeatureCollection
		found, err := c.getJSON(ctx, c.baseURL+"?"+params.Encode(), "events", &fc)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		c.logger.Info("catalog window loaded", "start", w.Start.Format(fdsnTime), "events", len(fc.Features))
		events = append(events, fc.Features...)
	}

	c.logger.Info("catalog query finished", "events", len(events))
	return events, nil
}

// Detail returns the detail document of one event, including its product
// listing.
func (c *Client) Detail(ctx context.Context, eventID string) (*EventDetail, error) {
	params := url.Values{
		"format":            {"geojson"},
		"eventid":           {eventID},
		"includesuperseded": {"false"},
	}
	var detail EventDetail
	found, err := c.getJSON(ctx, c.baseURL+"?"+params.Encode(), "detail", &detail)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("event %s: %w", eventID, ErrNotFound)
	}
	return &detail, nil
}

// Download fetches a product content file.
func (c *Client) Download(ctx context.Context, contentURL string) ([]byte, error) {
	var body []byte
	err := c.do(ctx, contentURL, "product", func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read product body: %w", err)
		}
		return nil
	})
	return body, err
}

// ErrNotFound is returned when the catalog has no document for a request.
var ErrNotFound = errors.New("not found in catalog")

// getJSON decodes a JSON response into v. It returns false when the service
// answers 204 No Content, which FDSN uses for empty results.
func (c *Client) getJSON(ctx context.Context, fullURL, endpoint string, v any) (bool, error) {
	found := true
	err := c.do(ctx, fullURL, endpoint, func(resp *http.Response) error {
		if resp.StatusCode == http.StatusNoContent {
			found = false
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	})
	return found, err
}

func (c *Client) do(ctx context.Context, fullURL, endpoint string, handle func(*http.Response) error) error {
	start := time.Now()
	err := c.doRequest(ctx, fullURL, endpoint, handle)
	c.metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.metrics.CatalogRequests.WithLabelValues(endpoint, outcome).Inc()
	return err
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	c.logger.Debug("catalog request", "endpoint", endpoint, "url", fullURL)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusNotFound:
		if endpoint == "product" {
			break
		}
		return fmt.Errorf("catalog %s: status %d: %w", endpoint, resp.StatusCode, ErrNotFound)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}
	return handle(resp)
}
