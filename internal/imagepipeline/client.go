package imagepipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ErrQueryFailed wraps any transport or parse failure from the range
// query, per the spec's QueryFailed failure class.
var ErrQueryFailed = errors.New("QueryFailed")

// ErrTimeout is ErrQueryFailed's timeout-specific case, kept distinct for
// metrics/log labeling.
var ErrTimeout = errors.New("Timeout")

// maxResponseBytes caps how much of the metrics backend's response we
// will read, per the spec's caller-side response size cap.
const maxResponseBytes = 5 * 1024 * 1024

// cappingRoundTripper wraps a response body in an io.LimitReader so a
// misbehaving metrics backend can't exhaust memory.
type cappingRoundTripper struct {
	base http.RoundTripper
}

func (c cappingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = struct {
		io.Reader
		io.Closer
	}{io.LimitReader(resp.Body, maxResponseBytes), resp.Body}
	return resp, nil
}

// RangeQuerier executes a query_range against a metrics backend using the
// official Prometheus HTTP API client.
type RangeQuerier struct{}

// Query runs expr against baseURL over [now-lookback, now] at the given
// step, bounded by timeout.
func (RangeQuerier) Query(ctx context.Context, baseURL, expr string, lookback time.Duration, step time.Duration, timeout time.Duration) (model.Matrix, error) {
	client, err := api.NewClient(api.Config{
		Address: baseURL,
		Client: &http.Client{
			Transport: cappingRoundTripper{base: http.DefaultTransport},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	papi := v1.NewAPI(client)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	end := time.Now()
	start := end.Add(-lookback)

	val, _, err := papi.QueryRange(ctx, expr, v1.Range{Start: start, End: end, Step: step})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	matrix, ok := val.(model.Matrix)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type %T", ErrQueryFailed, val)
	}
	return matrix, nil
}
