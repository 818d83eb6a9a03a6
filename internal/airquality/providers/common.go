package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/madankumar045/airvitaweb/internal/airquality"
)

var (
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// newCircuitBreaker trips after five consecutive failures and probes again
// after a minute.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     1 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
}

// doRequest executes a single HTTP request through the circuit breaker and
// classifies every failure. There is no retry here; retry belongs to the
// orchestrator. Non-2xx responses are closed before returning.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	op string,
	req *http.Request,
) (*http.Response, error) {
	if client == nil {
		return nil, airquality.E(airquality.KindNotConfigured, op, errNoHTTPClient)
	}

	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, classifyTransport(ctx, op, execErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, airquality.E(airquality.KindBadStatus, op, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode))
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, airquality.E(airquality.KindNetwork, op, fmt.Errorf("%w: %v", errCircuitOpen, err))
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, airquality.Ef(airquality.KindNetwork, op, "unexpected result type from circuit breaker")
	}
	return resp, nil
}

// classifyTransport maps a client.Do error to timeout or network_error.
func classifyTransport(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return airquality.E(airquality.KindTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return airquality.E(airquality.KindTimeout, op, err)
	}
	return airquality.E(airquality.KindNetwork, op, err)
}
