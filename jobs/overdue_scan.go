package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/invoicing"
	jobmetrics "github.com/gescom-app/gescom/internal/jobs"
	"github.com/gescom-app/gescom/internal/pricing"
)

// OverdueScanJob flags sent invoices past their due date and queues a
// reminder email per flagged invoice.
type OverdueScanJob struct {
	Invoices *invoicing.Service
	Clients  *clients.Service
	Enqueue  func(ctx context.Context, payload SendEmailPayload) error
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(invoices *invoicing.Service, dir *clients.Service, enqueue func(ctx context.Context, payload SendEmailPayload) error, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{
		Invoices: invoices,
		Clients:  dir,
		Enqueue:  enqueue,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle runs one scan pass.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue scan: handler not configured")
	}

	tracker := j.Metrics.Track(TaskTypeOverdueScan)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	flagged, err := j.Invoices.FlagOverdue(ctx, j.clock())
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.Logger.Info("overdue scan complete", slog.Int("flagged", len(flagged)))

	for _, inv := range flagged {
		if err := j.remind(ctx, inv); err != nil {
			j.Logger.Warn("overdue reminder skipped",
				slog.Int64("invoice_id", inv.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (j *OverdueScanJob) remind(ctx context.Context, inv invoicing.Invoice) error {
	if j.Clients == nil || j.Enqueue == nil {
		return nil
	}
	client, err := j.Clients.Get(ctx, inv.ClientID)
	if err != nil {
		return err
	}
	if client.Email == nil || *client.Email == "" {
		return nil
	}
	return j.Enqueue(ctx, SendEmailPayload{
		To:      *client.Email,
		Subject: fmt.Sprintf("Relance facture %s", inv.Number),
		Body: fmt.Sprintf("Bonjour,\n\nLa facture %s d'un montant de %s, échue le %s, reste impayée.\nMerci de procéder au règlement.\n\nCordialement",
			inv.Number, pricing.FormatEUR(inv.Total), inv.DueAt.Format("02/01/2006")),
	})
}
