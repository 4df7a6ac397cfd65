package clients

import "time"

// Client is a billed customer, created directly or by converting a won
// prospect.
type Client struct {
	ID               int64
	Code             string
	CompanyName      string
	ContactName      *string
	Email            *string
	Phone            *string
	SIRET            *string
	VATNumber        *string
	PaymentTermsDays int
	AddressLine      *string
	PostalCode       *string
	City             *string
	Country          string
	Latitude         *float64
	Longitude        *float64
	IsActive         bool
	Notes            *string
	ProspectID       *int64
	CreatedBy        int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
