package clients

import (
	"context"
	"fmt"
)

// Service wraps client business rules.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id int64) (*Client, error) {
	return s.repo.Get(ctx, id)
}

// GetByProspect finds the client created from a prospect conversion.
func (s *Service) GetByProspect(ctx context.Context, prospectID int64) (*Client, error) {
	return s.repo.GetByProspect(ctx, prospectID)
}

func (s *Service) List(ctx context.Context, req ListClientsRequest) ([]Client, int, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// Create registers a client with a generated CLI code.
func (s *Service) Create(ctx context.Context, req CreateClientRequest, createdBy int64) (*Client, error) {
	client := Client{
		CompanyName:      req.CompanyName,
		ContactName:      req.ContactName,
		Email:            req.Email,
		Phone:            req.Phone,
		SIRET:            req.SIRET,
		VATNumber:        req.VATNumber,
		PaymentTermsDays: req.PaymentTermsDays,
		AddressLine:      req.AddressLine,
		PostalCode:       req.PostalCode,
		City:             req.City,
		Country:          req.Country,
		IsActive:         true,
		Notes:            req.Notes,
		CreatedBy:        createdBy,
	}
	if client.Country == "" {
		client.Country = "FR"
	}
	if client.PaymentTermsDays == 0 {
		client.PaymentTermsDays = 30
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		code, err := repo.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate client code: %w", err)
		}
		client.Code = code
		client.ID, err = repo.Create(ctx, client)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return &client, nil
}

// ProspectData carries the fields copied over when a won prospect is
// converted into a client.
type ProspectData struct {
	ProspectID  int64
	CompanyName string
	ContactName *string
	Email       *string
	Phone       *string
	SIRET       *string
	AddressLine *string
	PostalCode  *string
	City        *string
	Latitude    *float64
	Longitude   *float64
	Notes       *string
}

// CreateFromProspect registers a client carrying over prospect data. The
// prospect link makes conversion idempotent: a second call trips the
// unique index on prospect_id and surfaces ErrAlreadyExists.
func (s *Service) CreateFromProspect(ctx context.Context, data ProspectData, createdBy int64) (*Client, error) {
	client := Client{
		CompanyName:      data.CompanyName,
		ContactName:      data.ContactName,
		Email:            data.Email,
		Phone:            data.Phone,
		SIRET:            data.SIRET,
		PaymentTermsDays: 30,
		AddressLine:      data.AddressLine,
		PostalCode:       data.PostalCode,
		City:             data.City,
		Country:          "FR",
		Latitude:         data.Latitude,
		Longitude:        data.Longitude,
		IsActive:         true,
		Notes:            data.Notes,
		ProspectID:       &data.ProspectID,
		CreatedBy:        createdBy,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		code, err := repo.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate client code: %w", err)
		}
		client.Code = code
		client.ID, err = repo.Create(ctx, client)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateClientRequest) (*Client, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}

	updates := make(map[string]interface{})
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
	if req.VATNumber != nil {
		updates["vat_number"] = *req.VATNumber
	}
	if req.PaymentTermsDays != nil {
		updates["payment_terms_days"] = *req.PaymentTermsDays
	}
	if req.AddressLine != nil {
		updates["address_line"] = *req.AddressLine
	}
	if req.PostalCode != nil {
		updates["postal_code"] = *req.PostalCode
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.Country != nil {
		updates["country"] = *req.Country
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update client: %w", err)
	}
	return s.repo.Get(ctx, id)
}
