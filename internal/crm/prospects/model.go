package prospects

import "time"

// Status is the pipeline stage of a prospect.
type Status string

const (
	StatusNew         Status = "NEW"
	StatusContacted   Status = "CONTACTED"
	StatusQualified   Status = "QUALIFIED"
	StatusNegotiation Status = "NEGOTIATION"
	StatusWon         Status = "WON"
	StatusLost        Status = "LOST"
)

// Valid reports whether s is a known pipeline stage.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusNegotiation, StatusWon, StatusLost:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusNew:         {StatusContacted, StatusLost},
	StatusContacted:   {StatusQualified, StatusLost},
	StatusQualified:   {StatusNegotiation, StatusLost},
	StatusNegotiation: {StatusWon, StatusLost},
	StatusLost:        {StatusContacted},
}

// CanTransition reports whether the pipeline allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Prospect is a potential client moving through the sales pipeline.
type Prospect struct {
	ID                int64
	CompanyName       string
	ContactName       *string
	Email             *string
	Phone             *string
	SIRET             *string
	Source            *string
	Status            Status
	AddressLine       *string
	PostalCode        *string
	City              *string
	Latitude          *float64
	Longitude         *float64
	Notes             *string
	ConvertedClientID *int64
	CreatedBy         int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullAddress joins the address parts for geocoding.
func (p *Prospect) FullAddress() string {
	addr := ""
	for _, part := range []*string{p.AddressLine, p.PostalCode, p.City} {
		if part == nil || *part == "" {
			continue
		}
		if addr != "" {
			addr += " "
		}
		addr += *part
	}
	return addr
}

// DuplicateMatch is a candidate duplicate with the field that matched.
type DuplicateMatch struct {
	Prospect Prospect `json:"prospect"`
	Field    string   `json:"field"`
}
