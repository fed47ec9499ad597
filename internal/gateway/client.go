// Package gateway is the HTTP client of the device gateway, the service that
// talks to the attendance terminals on the local network.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"attendance-sync-api/internal/metrics"
	"attendance-sync-api/internal/model"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

const (
	employeesSegment  = "employees"
	attendanceSegment = "attendance"
	breakerName       = "device-gateway"
	userAgent         = "attendance-sync-api/1.0"
)

// ErrCircuitOpen is returned without a request when the gateway has been failing.
var ErrCircuitOpen = errors.New("device gateway circuit open")

// StatusError reports a non-2xx gateway response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds configuration for the gateway client
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxBodyBytes  int64

	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

// DefaultConfig returns a default configuration for the gateway client
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:                 baseURL,
		Timeout:                 60 * time.Second,
		RetryDelay:              time.Second,
		MaxBodyBytes:            64 << 20,
		BreakerMaxRequests:      1,
		BreakerTimeout:          2 * time.Minute,
		BreakerFailureThreshold: 5,
	}
}

// Response is a successful gateway reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client calls the gateway's roster and attendance endpoints. Calls are
// guarded by a circuit breaker that opens after consecutive failures.
type Client struct {
	config        Config
	client        *http.Client
	cb            *gobreaker.CircuitBreaker[*Response]
	employeesURL  string
	attendanceURL string
	logger        zerolog.Logger
	metrics       *metrics.Metrics
}

// New creates a gateway client. m may be nil.
func New(config Config, logger zerolog.Logger, m *metrics.Metrics) *Client {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultConfig("").MaxBodyBytes
	}
	if config.BreakerFailureThreshold == 0 {
		config.BreakerFailureThreshold = 5
	}

	c := &Client{
		config:        config,
		client:        &http.Client{Timeout: config.Timeout},
		employeesURL:  EndpointURL(config.BaseURL, employeesSegment),
		attendanceURL: EndpointURL(config.BaseURL, attendanceSegment),
		logger:        logger,
		metrics:       m,
	}

	m.SetBreakerState(breakerName, 0)
	c.cb = gobreaker.NewCircuitBreaker[*Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailureThreshold
		},
		// a device that answers with a 4xx still proves the gateway is up
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
			m.SetBreakerState(name, stateValue(to))
		},
	})

	logger.Info().Str("employees_url", c.employeesURL).Str("attendance_url", c.attendanceURL).Msg("gateway client configured")
	return c
}

// EndpointURL appends segment to base unless base already ends with it.
func EndpointURL(base, segment string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.HasSuffix(strings.ToLower(base), "/"+segment) {
		return base
	}
	return base + "/" + segment
}

// DeviceQuery renders the device parameters in the order the gateway expects:
// machineNumber, ipAddress, port, then from and to when set.
func DeviceQuery(dev model.DeviceDescriptor, from, to *time.Time) string {
	parts := []string{
		"machineNumber=" + strconv.Itoa(dev.MachineNumber),
		"ipAddress=" + url.QueryEscape(dev.IP),
		"port=" + strconv.Itoa(dev.Port),
	}
	if from != nil {
		parts = append(parts, "from="+url.QueryEscape(from.UTC().Format(time.RFC3339)))
	}
	if to != nil {
		parts = append(parts, "to="+url.QueryEscape(to.UTC().Format(time.RFC3339)))
	}
	return strings.Join(parts, "&")
}

// Employees fetches the roster stored on one device.
func (c *Client) Employees(ctx context.Context, dev model.DeviceDescriptor) (*Response, error) {
	return c.get(ctx, employeesSegment, c.employeesURL+"?"+DeviceQuery(dev, nil, nil))
}

// Attendance fetches punches stored on one device, optionally bounded by from and to.
func (c *Client) Attendance(ctx context.Context, dev model.DeviceDescriptor, from, to *time.Time) (*Response, error) {
	return c.get(ctx, attendanceSegment, c.attendanceURL+"?"+DeviceQuery(dev, from, to))
}

// get retries transport failures only; status errors and an open circuit
// are returned at once.
func (c *Client) get(ctx context.Context, endpoint, target string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(attempt)):
			}
			c.logger.Debug().Str("url", target).Int("attempt", attempt+1).Msg("retrying gateway request")
		}

		resp, err := c.cb.Execute(func() (*Response, error) {
			return c.attempt(ctx, target)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RecordGatewayRequest(endpoint, true, err)
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		c.metrics.RecordGatewayRequest(endpoint, false, err)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !retryable(ctx, err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("gateway request failed after %d attempts: %w", c.config.RetryAttempts+1, lastErr)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return false
	}
	var netErr net.Error
	var urlErr *url.Error
	return errors.As(err, &netErr) || errors.As(err, &urlErr)
}

func (c *Client) attempt(ctx context.Context, target string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: snippet}
	}

	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
