package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gescom-app/gescom/internal/crm/prospects"
	"github.com/gescom-app/gescom/internal/geo"
	jobmetrics "github.com/gescom-app/gescom/internal/jobs"
)

// ProspectGeocodeJob resolves prospect addresses against the BAN API.
type ProspectGeocodeJob struct {
	Prospects *prospects.Service
	Geo       *geo.Client
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewProspectGeocodeJob initialises the geocode handler.
func NewProspectGeocodeJob(svc *prospects.Service, client *geo.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProspectGeocodeJob {
	return &ProspectGeocodeJob{Prospects: svc, Geo: client, Logger: logger, Metrics: metrics}
}

// Handle geocodes one prospect. A below-threshold match is dropped, not
// retried: the address itself is the problem, not the API.
func (j *ProspectGeocodeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Prospects == nil || j.Geo == nil {
		return errors.New("prospect geocode: handler not configured")
	}
	var payload ProspectGeocodePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskTypeProspectGeocode)
	var resultErr error
	defer func() { resultErr = tracker.End(resultErr) }()

	p, err := j.Prospects.Get(ctx, payload.ProspectID)
	if err != nil {
		if errors.Is(err, prospects.ErrNotFound) {
			return asynq.SkipRetry
		}
		resultErr = err
		return resultErr
	}
	address := p.FullAddress()
	if address == "" {
		return nil
	}

	result, err := j.Geo.Search(ctx, address)
	if err != nil {
		if errors.Is(err, geo.ErrNoMatch) {
			j.Logger.Warn("geocode no match",
				slog.Int64("prospect_id", p.ID),
				slog.String("address", address),
			)
			return nil
		}
		resultErr = err
		return resultErr
	}

	if err := j.Prospects.ApplyGeocode(ctx, p.ID, result.Latitude, result.Longitude); err != nil {
		resultErr = err
		return resultErr
	}
	j.Logger.Info("prospect geocoded",
		slog.Int64("prospect_id", p.ID),
		slog.Float64("score", result.Score),
	)
	return nil
}
