package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"integrations/internal/application/common"

	"go.uber.org/zap"
)

const defaultRetryBase = 500 * time.Millisecond

type RetryClient struct {
	delegate   HTTPClient
	maxRetries int
	base       time.Duration
	// ShouldRetry можно переопределить для конкретного провайдера
	ShouldRetry func(*http.Response, error) bool
	logger      *zap.SugaredLogger
}

func NewRetryClient(delegate HTTPClient, maxRetries int, base time.Duration, logger *zap.SugaredLogger) *RetryClient {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if base <= 0 {
		base = defaultRetryBase
	}

	return &RetryClient{
		delegate:    delegate,
		maxRetries:  maxRetries,
		base:        base,
		ShouldRetry: DefaultShouldRetry,
		logger:      logger,
	}
}

// DefaultShouldRetry 5xx, 429 и сетевые ошибки, кроме отмены/дедлайна
func DefaultShouldRetry(resp *http.Response, err error) bool {
	// не ретраим явную отмену/дедлайн
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrBreakerOpen)
	}
	// resp может быть nil
	if resp == nil {
		return true
	}
	return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
}

func (c *RetryClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	// Готовим переиспользуемое тело: если GetBody нет, создаём его один раз
	if req.Body != nil && req.GetBody == nil {
		buf, e := io.ReadAll(req.Body)
		if e != nil {
			return nil, e
		}
		_ = req.Body.Close()
		req.ContentLength = int64(len(buf))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		}
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			rc, e := req.GetBody()
			if e != nil {
				return nil, e
			}
			r.Body = rc
		}

		resp, err = c.delegate.Do(ctx, r)

		// Условие выхода: успех или дальше ретраить нельзя, либо это последняя попытка
		if !c.ShouldRetry(resp, err) || attempt == c.maxRetries-1 {
			return resp, err
		}

		// Освобождаем соединение в пул перед повтором
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		backoff := c.backoff(attempt)
		c.logger.Warnf("retry attempt=%d backoff=%s method=%s host=%s err=%v",
			attempt+1, backoff, req.Method, req.URL.Host, err)

		if err = common.SleepCtx(ctx, backoff); err != nil {
			return nil, fmt.Errorf("retry sleep canceled: %w", err)
		}
	}

	return resp, err
}

// backoff base*2^attempt с джиттером [0.5, 1)
func (c *RetryClient) backoff(attempt int) time.Duration {
	d := c.base << attempt
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
