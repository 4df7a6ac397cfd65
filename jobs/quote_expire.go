package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/gescom-app/gescom/internal/jobs"
	"github.com/gescom-app/gescom/internal/quotes"
)

// QuoteExpireJob marks sent quotes past their validity date as expired.
type QuoteExpireJob struct {
	Quotes  *quotes.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewQuoteExpireJob initialises the quote expiry handler.
func NewQuoteExpireJob(svc *quotes.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteExpireJob {
	return &QuoteExpireJob{Quotes: svc, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle runs one expiry pass.
func (j *QuoteExpireJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotes == nil {
		return errors.New("quote expire: handler not configured")
	}

	tracker := j.Metrics.Track(TaskTypeQuoteExpire)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	expired, err := j.Quotes.ExpireStale(ctx, j.clock())
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.Logger.Info("quote expiry complete", slog.Int("expired", len(expired)))
	return nil
}
