package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gescom-app/gescom/internal/expenses"
	jobmetrics "github.com/gescom-app/gescom/internal/jobs"
)

// ReceiptParseJob turns uploaded receipt text into expense drafts.
type ReceiptParseJob struct {
	Expenses *expenses.Service
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewReceiptParseJob initialises the receipt parse handler.
func NewReceiptParseJob(svc *expenses.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReceiptParseJob {
	return &ReceiptParseJob{Expenses: svc, Logger: logger, Metrics: metrics}
}

// Handle parses the payload text and stores the resulting draft.
func (j *ReceiptParseJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Expenses == nil {
		return errors.New("receipt parse: handler not configured")
	}
	var payload ReceiptParsePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeReceiptParse)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	fields := expenses.ParseReceipt(payload.Text)
	draft := expenses.DraftFromReceipt(fields, payload.ReceiptRef, payload.UploadedBy)

	exp, err := j.Expenses.CreateDraft(ctx, draft)
	if err != nil {
		resultErr = err
		j.Logger.Error("receipt parse failed",
			slog.String("receipt_ref", payload.ReceiptRef),
			slog.Any("error", err),
		)
		return resultErr
	}

	j.Logger.Info("receipt parsed",
		slog.String("receipt_ref", payload.ReceiptRef),
		slog.Int64("expense_id", exp.ID),
		slog.String("merchant", exp.Merchant),
		slog.Float64("total_ttc", exp.TotalTTC),
	)
	return nil
}
