package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Warmer определяет интерфейс прогрева кэша новостей.
// Используется для внедрения зависимости в воркер.
type Warmer interface {
	Warm(ctx context.Context) error
}

// Worker реализует фонового воркера, периодически обновляющего кэш новостей,
// чтобы запросы к API попадали в свежий кэш, а не ждали обхода лент.
type Worker struct {
	warmer   Warmer
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once

	runs   atomic.Int64
	errors atomic.Int64
}

// New создает нового воркера. timeout ограничивает один прогрев; 0 означает без ограничения.
func New(warmer Warmer, interval, timeout time.Duration, log *slog.Logger) *Worker {
	return &Worker{
		warmer:   warmer,
		interval: interval,
		timeout:  timeout,
		log:      log.With(slog.String("component", "worker")),
		done:     make(chan struct{}),
	}
}

// Start запускает воркер в отдельной горутине.
// Первый прогрев выполняется сразу, затем - каждые interval.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
}

// Stop останавливает воркер и ждет завершения текущего прогрева.
func (w *Worker) Stop() {
	_ = w.Shutdown(context.Background())
}

// Shutdown останавливает воркер и ждет завершения текущего прогрева, но не дольше ctx.
// Если срок вышел раньше, возвращает ctx.Err(); прогрев доработает в фоне до своего таймаута.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.once.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
	})
	if w.cancel == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.log.Warn("Worker did not stop in time", slog.Any("error", ctx.Err()))
		return ctx.Err()
	}
}

// Runs возвращает число выполненных прогревов.
func (w *Worker) Runs() int64 { return w.runs.Load() }

// Errors возвращает число неудачных прогревов.
func (w *Worker) Errors() int64 { return w.errors.Load() }

// GetInterval возвращает интервал прогрева.
func (w *Worker) GetInterval() time.Duration { return w.interval }

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	w.log.Info("Cache warm-up worker started",
		slog.String("interval", w.interval.String()),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.warm(ctx)
	for {
		select {
		case <-ticker.C:
			w.warm(ctx)
		case <-ctx.Done():
			w.log.Info("Worker stopping")
			return
		}
	}
}

func (w *Worker) warm(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	opCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	w.runs.Add(1)
	if err := w.warmer.Warm(opCtx); err != nil {
		w.errors.Add(1)
		w.log.Error("Cache warm-up failed",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)),
		)
		return
	}
	w.log.Info("Cache warm-up completed",
		slog.Duration("duration", time.Since(start)),
	)
}
