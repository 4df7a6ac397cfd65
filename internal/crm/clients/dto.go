package clients

// CreateClientRequest creates a client directly, without going through
// the prospect pipeline.
type CreateClientRequest struct {
	CompanyName      string  `json:"company_name" validate:"required,max=200"`
	ContactName      *string `json:"contact_name,omitempty"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	SIRET            *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	VATNumber        *string `json:"vat_number,omitempty"`
	PaymentTermsDays int     `json:"payment_terms_days" validate:"gte=0,lte=120"`
	AddressLine      *string `json:"address_line,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          string  `json:"country,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// UpdateClientRequest applies a partial update.
type UpdateClientRequest struct {
	CompanyName      *string `json:"company_name,omitempty" validate:"omitempty,max=200"`
	ContactName      *string `json:"contact_name,omitempty"`
	Email            *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone            *string `json:"phone,omitempty"`
	SIRET            *string `json:"siret,omitempty" validate:"omitempty,len=14,numeric"`
	VATNumber        *string `json:"vat_number,omitempty"`
	PaymentTermsDays *int    `json:"payment_terms_days,omitempty" validate:"omitempty,gte=0,lte=120"`
	AddressLine      *string `json:"address_line,omitempty"`
	PostalCode       *string `json:"postal_code,omitempty"`
	City             *string `json:"city,omitempty"`
	Country          *string `json:"country,omitempty"`
	IsActive         *bool   `json:"is_active,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// ListClientsRequest filters the client listing.
type ListClientsRequest struct {
	Search   *string `json:"search,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	Limit    int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset   int     `json:"offset" validate:"gte=0"`
}
