package prospects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gescom-app/gescom/internal/crm/clients"
)

var (
	ErrInvalidTransition = errors.New("invalid pipeline transition")
	ErrNotWon            = errors.New("prospect must be won before conversion")
	ErrAlreadyConverted  = errors.New("prospect already converted")
	ErrPossibleDuplicate = errors.New("possible duplicate prospect")
)

// ClientConverter creates the client record when a prospect is won and
// resolves it again when a conversion has to be repaired.
type ClientConverter interface {
	CreateFromProspect(ctx context.Context, data clients.ProspectData, createdBy int64) (*clients.Client, error)
	GetByProspect(ctx context.Context, prospectID int64) (*clients.Client, error)
}

// GeocodeEnqueuer schedules background geocoding for a prospect address.
type GeocodeEnqueuer interface {
	EnqueueGeocode(ctx context.Context, prospectID int64) error
}

// Service wraps prospect business rules.
type Service struct {
	repo      Repository
	converter ClientConverter
	geocoder  GeocodeEnqueuer
	logger    *slog.Logger
}

// NewService constructs a Service. geocoder may be nil when background
// geocoding is disabled.
func NewService(repo Repository, converter ClientConverter, geocoder GeocodeEnqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, converter: converter, geocoder: geocoder, logger: logger}
}

func (s *Service) Get(ctx context.Context, id int64) (*Prospect, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListProspectsRequest) ([]Prospect, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// NormalizeEmail lowercases and trims an email for matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits and a leading plus, and
// folds the French 0-prefix onto +33 numbers.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if strings.HasPrefix(out, "+330") {
		out = "+33" + out[4:]
	}
	return out
}

// NormalizeSIRET strips separators from a SIRET.
func NormalizeSIRET(siret string) string {
	var b strings.Builder
	for _, r := range siret {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CheckDuplicates returns existing prospects matching the request's
// normalized email, phone or SIRET.
func (s *Service) CheckDuplicates(ctx context.Context, req CreateProspectRequest) ([]DuplicateMatch, error) {
	var email, phone, siret string
	if req.Email != nil {
		email = NormalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		phone = NormalizePhone(*req.Phone)
	}
	if req.SIRET != nil {
		siret = NormalizeSIRET(*req.SIRET)
	}
	if email == "" && phone == "" && siret == "" {
		return nil, nil
	}
	return s.repo.FindMatches(ctx, email, phone, siret)
}

// Create registers a prospect. Unless req.Force is set, matching
// prospects abort the creation: the matches come back alongside
// ErrPossibleDuplicate so the caller can review and retry with Force.
func (s *Service) Create(ctx context.Context, req CreateProspectRequest, createdBy int64) (*Prospect, []DuplicateMatch, error) {
	if !req.Force {
		matches, err := s.CheckDuplicates(ctx, req)
		if err != nil {
			return nil, nil, fmt.Errorf("check duplicates: %w", err)
		}
		if len(matches) > 0 {
			return nil, matches, ErrPossibleDuplicate
		}
	}

	p := Prospect{
		CompanyName: req.CompanyName,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		SIRET:       req.SIRET,
		Source:      req.Source,
		Status:      StatusNew,
		AddressLine: req.AddressLine,
		PostalCode:  req.PostalCode,
		City:        req.City,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}

	id, err := s.repo.Create(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("create prospect: %w", err)
	}
	p.ID = id

	s.enqueueGeocode(ctx, &p)
	return &p, nil, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProspectRequest) (*Prospect, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	addressChanged := false
	if req.CompanyName != nil {
		updates["company_name"] = *req.CompanyName
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.SIRET != nil {
		updates["siret"] = *req.SIRET
	}
	if req.Source != nil {
		updates["source"] = *req.Source
	}
	if req.AddressLine != nil {
		updates["address_line"] = *req.AddressLine
		addressChanged = true
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
		addressChanged = true
	}
	if req.City != nil {
		updates["city"] = *req.City
		addressChanged = true
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if addressChanged {
		// Stale coordinates are worse than none while the geocode job
		// catches up.
		updates["latitude"] = nil
		updates["longitude"] = nil
	}

	if len(updates) == 0 {
		return existing, nil
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update prospect: %w", err)
	}

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if addressChanged {
		s.enqueueGeocode(ctx, updated)
	}
	return updated, nil
}

// UpdateStatus moves the prospect along the pipeline.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status) (*Prospect, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == next {
		return p, nil
	}
	if !p.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, next)
	}
	if err := s.repo.Update(ctx, id, map[string]interface{}{"status": next}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Convert turns a won prospect into a client. The operation is
// idempotent per prospect: a second call returns ErrAlreadyConverted.
func (s *Service) Convert(ctx context.Context, id int64, convertedBy int64) (*clients.Client, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ConvertedClientID != nil {
		return nil, ErrAlreadyConverted
	}
	if p.Status != StatusWon {
		return nil, ErrNotWon
	}

	client, err := s.converter.CreateFromProspect(ctx, clients.ProspectData{
		ProspectID:  p.ID,
		CompanyName: p.CompanyName,
		ContactName: p.ContactName,
		Email:       p.Email,
		Phone:       p.Phone,
		SIRET:       p.SIRET,
		AddressLine: p.AddressLine,
		PostalCode:  p.PostalCode,
		City:        p.City,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Notes:       p.Notes,
	}, convertedBy)
	if err != nil {
		if errors.Is(err, clients.ErrAlreadyExists) {
			// The client row exists but converted_client_id was never
			// written: a previous Convert failed between the two
			// writes. Repair the link instead of stranding the
			// prospect.
			return s.recoverConversion(ctx, p)
		}
		return nil, fmt.Errorf("convert prospect: %w", err)
	}

	if err := s.repo.Update(ctx, id, map[string]interface{}{"converted_client_id": client.ID}); err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}
	return client, nil
}

func (s *Service) recoverConversion(ctx context.Context, p *Prospect) (*clients.Client, error) {
	client, err := s.converter.GetByProspect(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("recover conversion: %w", err)
	}
	if err := s.repo.Update(ctx, p.ID, map[string]interface{}{"converted_client_id": client.ID}); err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}
	return client, nil
}

// ApplyGeocode stores coordinates resolved by the background job.
func (s *Service) ApplyGeocode(ctx context.Context, id int64, lat, lng float64) error {
	return s.repo.Update(ctx, id, map[string]interface{}{
		"latitude":  lat,
		"longitude": lng,
	})
}

func (s *Service) enqueueGeocode(ctx context.Context, p *Prospect) {
	if s.geocoder == nil || p.FullAddress() == "" {
		return
	}
	if err := s.geocoder.EnqueueGeocode(ctx, p.ID); err != nil && s.logger != nil {
		s.logger.Warn("enqueue geocode", slog.Int64("prospect_id", p.ID), slog.Any("error", err))
	}
}
