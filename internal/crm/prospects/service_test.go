package prospects

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gescom-app/gescom/internal/crm/clients"
)

type memoryRepo struct {
	prospects      map[int64]*Prospect
	nextID         int64
	failLinkWrites int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{prospects: make(map[int64]*Prospect)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Prospect, error) {
	p, ok := r.prospects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListProspectsRequest) ([]Prospect, int, error) {
	var out []Prospect
	for _, p := range r.prospects {
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, p Prospect) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.prospects[p.ID] = &p
	return p.ID, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	p, ok := r.prospects[id]
	if !ok {
		return ErrNotFound
	}
	if _, linking := updates["converted_client_id"]; linking && r.failLinkWrites > 0 {
		r.failLinkWrites--
		return errors.New("connection reset")
	}
	for col, val := range updates {
		switch col {
		case "status":
			p.Status = val.(Status)
		case "converted_client_id":
			v := val.(int64)
			p.ConvertedClientID = &v
		case "latitude":
			if val == nil {
				p.Latitude = nil
			} else {
				v := val.(float64)
				p.Latitude = &v
			}
		case "longitude":
			if val == nil {
				p.Longitude = nil
			} else {
				v := val.(float64)
				p.Longitude = &v
			}
		case "company_name":
			p.CompanyName = val.(string)
		case "address_line":
			v := val.(string)
			p.AddressLine = &v
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) FindMatches(ctx context.Context, email, phone, siret string) ([]DuplicateMatch, error) {
	var out []DuplicateMatch
	for _, p := range r.prospects {
		switch {
		case email != "" && p.Email != nil && NormalizeEmail(*p.Email) == email:
			out = append(out, DuplicateMatch{Prospect: *p, Field: "email"})
		case phone != "" && p.Phone != nil && NormalizePhone(*p.Phone) == phone:
			out = append(out, DuplicateMatch{Prospect: *p, Field: "phone"})
		case siret != "" && p.SIRET != nil && NormalizeSIRET(*p.SIRET) == siret:
			out = append(out, DuplicateMatch{Prospect: *p, Field: "siret"})
		}
	}
	return out, nil
}

type stubConverter struct {
	nextID  int64
	calls   int
	created map[int64]*clients.Client
}

func (c *stubConverter) CreateFromProspect(ctx context.Context, data clients.ProspectData, createdBy int64) (*clients.Client, error) {
	c.calls++
	if c.created == nil {
		c.created = make(map[int64]*clients.Client)
	}
	if _, ok := c.created[data.ProspectID]; ok {
		return nil, clients.ErrAlreadyExists
	}
	c.nextID++
	client := &clients.Client{ID: c.nextID, CompanyName: data.CompanyName, ProspectID: &data.ProspectID}
	c.created[data.ProspectID] = client
	return client, nil
}

func (c *stubConverter) GetByProspect(ctx context.Context, prospectID int64) (*clients.Client, error) {
	client, ok := c.created[prospectID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return client, nil
}

type stubGeocoder struct {
	enqueued []int64
}

func (g *stubGeocoder) EnqueueGeocode(ctx context.Context, prospectID int64) error {
	g.enqueued = append(g.enqueued, prospectID)
	return nil
}

func strPtr(s string) *string { return &s }

func newTestService(repo *memoryRepo) (*Service, *stubConverter, *stubGeocoder) {
	conv := &stubConverter{}
	geo := &stubGeocoder{}
	return NewService(repo, conv, geo, nil), conv, geo
}

func TestCreateDetectsDuplicateByEmail(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, CreateProspectRequest{
		CompanyName: "Boulangerie Martin",
		Email:       strPtr("contact@martin.fr"),
	}, 1)
	require.NoError(t, err)

	_, matches, err := svc.Create(ctx, CreateProspectRequest{
		CompanyName: "Martin SARL",
		Email:       strPtr("CONTACT@martin.fr"),
	}, 1)
	require.ErrorIs(t, err, ErrPossibleDuplicate)
	require.Len(t, matches, 1)
	require.Equal(t, "email", matches[0].Field)
}

func TestCreateForceBypassesDuplicateCheck(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	_, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "A", Phone: strPtr("06 01 02 03 04")}, 1)
	require.NoError(t, err)

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "B", Phone: strPtr("0601020304"), Force: true}, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestCreateEnqueuesGeocodeWhenAddressPresent(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, geo := newTestService(repo)

	p, _, err := svc.Create(context.Background(), CreateProspectRequest{
		CompanyName: "Atelier Dupont",
		AddressLine: strPtr("4 rue des Lilas"),
		PostalCode:  strPtr("69003"),
		City:        strPtr("Lyon"),
	}, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{p.ID}, geo.enqueued)
}

func TestCreateSkipsGeocodeWithoutAddress(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, geo := newTestService(repo)

	_, _, err := svc.Create(context.Background(), CreateProspectRequest{CompanyName: "Sans Adresse"}, 1)
	require.NoError(t, err)
	require.Empty(t, geo.enqueued)
}

func TestUpdateStatusFollowsPipeline(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "Pipeline"}, 1)
	require.NoError(t, err)

	for _, next := range []Status{StatusContacted, StatusQualified, StatusNegotiation, StatusWon} {
		p, err = svc.UpdateStatus(ctx, p.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, p.Status)
	}
}

func TestUpdateStatusRejectsSkippedStage(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, _ := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "Pressé"}, 1)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, p.ID, StatusWon)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConvertRequiresWon(t *testing.T) {
	repo := newMemoryRepo()
	svc, conv, _ := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "Trop tôt"}, 1)
	require.NoError(t, err)

	_, err = svc.Convert(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrNotWon)
	require.Zero(t, conv.calls)
}

func TestConvertIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc, conv, _ := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "Gagné"}, 1)
	require.NoError(t, err)
	for _, next := range []Status{StatusContacted, StatusQualified, StatusNegotiation, StatusWon} {
		_, err = svc.UpdateStatus(ctx, p.ID, next)
		require.NoError(t, err)
	}

	client, err := svc.Convert(ctx, p.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, 1, conv.calls)

	_, err = svc.Convert(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyConverted)
	require.Equal(t, 1, conv.calls)
}

func TestConvertRepairsLinkAfterFailedWrite(t *testing.T) {
	repo := newMemoryRepo()
	svc, conv, _ := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{CompanyName: "Presque Converti"}, 1)
	require.NoError(t, err)
	for _, next := range []Status{StatusContacted, StatusQualified, StatusNegotiation, StatusWon} {
		_, err = svc.UpdateStatus(ctx, p.ID, next)
		require.NoError(t, err)
	}

	// The client row is created but recording converted_client_id fails.
	repo.failLinkWrites = 1
	_, err = svc.Convert(ctx, p.ID, 1)
	require.Error(t, err)
	require.Equal(t, 1, conv.calls)

	stranded, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, stranded.ConvertedClientID)

	// The retry must repair the link and return the existing client.
	client, err := svc.Convert(ctx, p.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, client)

	repaired, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, repaired.ConvertedClientID)
	require.Equal(t, client.ID, *repaired.ConvertedClientID)

	_, err = svc.Convert(ctx, p.ID, 1)
	require.ErrorIs(t, err, ErrAlreadyConverted)
}

func TestNormalizePhoneFrenchPrefix(t *testing.T) {
	require.Equal(t, "+33601020304", NormalizePhone("+33 (0)6 01 02 03 04"))
	require.Equal(t, "0601020304", NormalizePhone("06.01.02.03.04"))
}

func TestUpdateAddressClearsCoordinatesAndReenqueues(t *testing.T) {
	repo := newMemoryRepo()
	svc, _, geo := newTestService(repo)
	ctx := context.Background()

	p, _, err := svc.Create(ctx, CreateProspectRequest{
		CompanyName: "Déménagé",
		AddressLine: strPtr("1 rue Ancienne"),
		City:        strPtr("Nantes"),
	}, 1)
	require.NoError(t, err)

	lat, lng := 47.218, -1.553
	require.NoError(t, svc.ApplyGeocode(ctx, p.ID, lat, lng))

	updated, err := svc.Update(ctx, p.ID, UpdateProspectRequest{AddressLine: strPtr("9 rue Nouvelle")})
	require.NoError(t, err)
	require.Nil(t, updated.Latitude)
	require.Nil(t, updated.Longitude)
	require.Equal(t, []int64{p.ID, p.ID}, geo.enqueued)
}
