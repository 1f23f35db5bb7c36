package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"integrations/pkg/config"
	"integrations/pkg/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var ErrBreakerOpen = errors.New("circuit breaker open")

// errUpstream 5xx считаем отказом провайдера, но ответ отдаём наружу
var errUpstream = errors.New("upstream 5xx")

// BreakerClient circuit breaker на одного провайдера (evolution, docuseal, n8n, drive)
type BreakerClient struct {
	delegate HTTPClient
	cb       *gobreaker.CircuitBreaker
	name     string
}

func NewBreakerClient(name string, delegate HTTPClient, cfg config.Breaker, m *metrics.Metrics, logger *zap.SugaredLogger) *BreakerClient {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnf("circuit breaker [%s] state changed: %s -> %s", name, from, to)
			if m != nil {
				m.Breaker.StateChangesTotal.WithLabelValues(name, from.String(), to.String()).Inc()
				m.Breaker.State.WithLabelValues(name).Set(stateValue(to))
			}
		},
	}

	return &BreakerClient{
		delegate: delegate,
		cb:       gobreaker.NewCircuitBreaker(settings),
		name:     name,
	}
}

func (b *BreakerClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		resp, err := b.delegate.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return resp, errUpstream
		}
		return resp, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w", b.name, ErrBreakerOpen)
	}
	resp, _ := out.(*http.Response)
	if errors.Is(err, errUpstream) {
		return resp, nil
	}
	return resp, err
}

func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
