package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrUnexpectedStatus означает ответ с кодом вне диапазона 2xx.
var ErrUnexpectedStatus = errors.New("unexpected status code")

const defaultBackoff = 300 * time.Millisecond

// Options задает параметры исходящих запросов.
type Options struct {
	Timeout       time.Duration
	RetryAttempts int
	MaxBodyBytes  int64
	UserAgent     string
}

// HTTPFetcher загружает RSS-ленты и страницы статей по HTTP.
// Каждая попытка ограничена таймаутом, временные сбои повторяются с экспоненциальной паузой,
// размер тела ответа ограничен MaxBodyBytes.
type HTTPFetcher struct {
	client  *http.Client
	log     *slog.Logger
	opts    Options
	backoff time.Duration
}

// NewHTTPFetcher создает новый экземпляр HTTPFetcher.
// Нулевые поля opts заменяются безопасными значениями по умолчанию.
func NewHTTPFetcher(log *slog.Logger, opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		log:     log.With(slog.String("component", "fetcher")),
		opts:    opts,
		backoff: defaultBackoff,
	}
}

// Fetch выполняет GET-запрос и возвращает тело ответа, которое должно быть закрыто после использования.
// Сетевые ошибки и коды 408/429/503/504 повторяются до RetryAttempts раз, но все попытки вместе
// с чтением тела укладываются в один Timeout.
// Любой код вне 2xx возвращается как ошибка, обернутая вокруг ErrUnexpectedStatus.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	log := f.log.With(slog.String("url", url))
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	var lastErr error
	for attempt := 1; attempt <= f.opts.RetryAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff << (attempt - 2)
			select {
			case <-ctx.Done():
				cancel()
				return nil, fmt.Errorf("failed to fetch url %s: %w (last error: %v)", url, ctx.Err(), lastErr)
			case <-time.After(delay):
			}
		}
		body, retry, err := f.do(ctx, url)
		if err == nil {
			log.Debug("Successfully fetched URL", slog.Int("attempt", attempt))
			return cancelOnClose{ReadCloser: body, cancel: cancel}, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		log.Warn("Fetch attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
	}
	cancel()
	log.Error("Fetch failed", slog.Any("error", lastErr))
	return nil, lastErr
}

// do выполняет одну попытку. retry сообщает, имеет ли смысл повторять запрос.
func (f *HTTPFetcher) do(ctx context.Context, url string) (body io.ReadCloser, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request for url %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/rss+xml,*/*;q=0.8")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, isRetryableStatus(resp.StatusCode),
			fmt.Errorf("%w: %d for url %s", ErrUnexpectedStatus, resp.StatusCode, url)
	}
	return limitedBody{
		Reader: io.LimitReader(resp.Body, f.opts.MaxBodyBytes),
		Closer: resp.Body,
	}, false, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// cancelOnClose освобождает контекст запроса вместе с телом ответа.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
