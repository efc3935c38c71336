package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/cleanroom-telemetry/internal/application/dto"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/entity"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/repository"
	"github.com/dreschagin/cleanroom-telemetry/internal/domain/valueobject"
)

// maxBodyBytes limits the response size read from the remote service.
const maxBodyBytes = 4 << 20

// Client reads sensor data from a remote service exposing /api/latest, /api/recent and /api/hourly-avg.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	location *time.Location
}

// NewClient creates a source for the service at baseURL.
// Timestamps without zone information are interpreted in location.
func NewClient(baseURL string, timeout time.Duration, location *time.Location) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid source url scheme: %q", parsed.Scheme)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if location == nil {
		location = time.Local
	}

	return &Client{
		baseURL: parsed,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConns:          16,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   5 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		},
		location: location,
	}, nil
}

// FindLatest fetches the newest reading. A 404 from the remote service maps to repository.ErrNoReadings.
func (c *Client) FindLatest(ctx context.Context) (*entity.Sample, error) {
	var reading dto.SampleDTO
	if err := c.get(ctx, "/api/latest", nil, &reading); err != nil {
		return nil, err
	}

	sample, err := reading.ToEntity(c.location)
	if err != nil {
		return nil, fmt.Errorf("failed to decode latest reading: %w", err)
	}
	return sample, nil
}

// FindRecent fetches up to n readings, newest first. Rows with unparsable timestamps are skipped.
func (c *Client) FindRecent(ctx context.Context, n int) ([]*entity.Sample, error) {
	query := url.Values{}
	query.Set("n", strconv.Itoa(repository.NormalizeRecentLimit(n)))

	var readings []*dto.SampleDTO
	if err := c.get(ctx, "/api/recent", query, &readings); err != nil {
		if errors.Is(err, repository.ErrNoReadings) {
			return []*entity.Sample{}, nil
		}
		return nil, err
	}

	samples := make([]*entity.Sample, 0, len(readings))
	for _, reading := range readings {
		if reading == nil {
			continue
		}
		sample, err := reading.ToEntity(c.location)
		if err != nil {
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// FindHourlyAverages fetches hourly averages. The remote service always reports the last 24 hours,
// so hours outside timeRange are filtered locally.
func (c *Client) FindHourlyAverages(ctx context.Context, timeRange valueobject.TimeRange) (*entity.HourlySummary, error) {
	var rows []*dto.HourlyAverageDTO
	if err := c.get(ctx, "/api/hourly-avg", nil, &rows); err != nil {
		if errors.Is(err, repository.ErrNoReadings) {
			return &entity.HourlySummary{Hours: []entity.HourlyAverage{}}, nil
		}
		return nil, err
	}

	all := dto.ToHourlySummary(rows, c.location)
	filtered := &entity.HourlySummary{Hours: make([]entity.HourlyAverage, 0, len(all.Hours))}
	for _, h := range all.Hours {
		// Час попадает в диапазон, если пересекается с ним
		if h.Hour.Add(time.Hour).After(timeRange.Start()) && !h.Hour.After(timeRange.End()) {
			filtered.Hours = append(filtered.Hours, h)
		}
	}
	return filtered, nil
}

// Ping checks that the remote service answers.
func (c *Client) Ping(ctx context.Context) error {
	var reading dto.SampleDTO
	err := c.get(ctx, "/api/latest", nil, &reading)
	if err == nil || errors.Is(err, repository.ErrNoReadings) {
		return nil
	}
	return err
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return repository.ErrNoReadings
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, remoteError(body))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func remoteError(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return strings.TrimSpace(string(body))
}
