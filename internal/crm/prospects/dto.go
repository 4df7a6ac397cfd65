package prospects

// CreateProspectRequest registers a prospect at the top of the pipeline.
type CreateProspectRequest struct {
	CompanyName string  `json:"company_name" validate:"required,max=200"`
	ContactName *string `json:"contact_name,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	SIRET       *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	Source      *string `json:"source,omitempty" validate:"omitempty,max=100"`
	AddressLine *string `json:"address_line,omitempty"`
	PostalCode  *string `json:"postal_code,omitempty"`
	City        *string `json:"city,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	// Force skips duplicate detection when the caller has reviewed the
	// candidates and wants the record anyway.
	Force bool `json:"force,omitempty"`
}

// UpdateProspectRequest applies a partial update.
type UpdateProspectRequest struct {
	CompanyName *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	ContactName *string `json:"contact_name,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `json:"phone,omitempty"`
	SIRET       *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	Source      *string `json:"source,omitempty" validate:"omitempty,max=100"`
	AddressLine *string `json:"address_line,omitempty"`
	PostalCode  *string `json:"postal_code,omitempty"`
	City        *string `json:"city,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// ListProspectsRequest filters the prospect listing.
type ListProspectsRequest struct {
	Status *Status `json:"status,omitempty"`
	Search *string `json:"search,omitempty"`
	Limit  int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset int     `json:"offset" validate:"gte=0"`
}
