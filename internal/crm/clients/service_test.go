package clients

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	seq     int64
	codeSeq int64
	clients map[int64]*Client
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{clients: map[int64]*Client{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*Client, error) {
	c, ok := m.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memoryRepo) GetByProspect(_ context.Context, prospectID int64) (*Client, error) {
	for _, c := range m.clients {
		if c.ProspectID != nil && *c.ProspectID == prospectID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, req ListClientsRequest) ([]Client, int, error) {
	var out []Client
	for _, c := range m.clients {
		if req.IsActive != nil && c.IsActive != *req.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, c Client) (int64, error) {
	if c.ProspectID != nil {
		for _, existing := range m.clients {
			if existing.ProspectID != nil && *existing.ProspectID == *c.ProspectID {
				return 0, ErrAlreadyExists
			}
		}
	}
	m.seq++
	c.ID = m.seq
	m.clients[c.ID] = &c
	return c.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	c, ok := m.clients[id]
	if !ok {
		return ErrNotFound
	}
	for col, val := range updates {
		switch col {
		case "company_name":
			c.CompanyName = val.(string)
		case "payment_terms_days":
			c.PaymentTermsDays = val.(int)
		case "is_active":
			c.IsActive = val.(bool)
		}
	}
	return nil
}

func (m *memoryRepo) GenerateCode(_ context.Context) (string, error) {
	m.codeSeq++
	return fmt.Sprintf("CLI-%04d", m.codeSeq), nil
}

func ptr[T any](v T) *T { return &v }

func TestCreateClientDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo())

	c, err := svc.Create(context.Background(), CreateClientRequest{
		CompanyName: "Boulangerie Martin",
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "CLI-0001", c.Code)
	require.Equal(t, "FR", c.Country)
	require.Equal(t, 30, c.PaymentTermsDays)
	require.True(t, c.IsActive)
}

func TestCreateClientSequentialCodes(t *testing.T) {
	svc := NewService(newMemoryRepo())

	first, err := svc.Create(context.Background(), CreateClientRequest{CompanyName: "Alpha"}, 1)
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateClientRequest{CompanyName: "Beta"}, 1)
	require.NoError(t, err)

	require.Equal(t, "CLI-0001", first.Code)
	require.Equal(t, "CLI-0002", second.Code)
}

func TestCreateFromProspectIsIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo())

	data := ProspectData{
		ProspectID:  7,
		CompanyName: "Garage Lefèvre",
		Email:       ptr("contact@garage-lefevre.fr"),
		City:        ptr("Lille"),
	}

	c, err := svc.CreateFromProspect(context.Background(), data, 1)
	require.NoError(t, err)
	require.NotNil(t, c.ProspectID)
	require.Equal(t, int64(7), *c.ProspectID)
	require.Equal(t, 30, c.PaymentTermsDays)

	_, err = svc.CreateFromProspect(context.Background(), data, 1)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpdateClient(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	c, err := svc.Create(context.Background(), CreateClientRequest{CompanyName: "Avant"}, 1)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), c.ID, UpdateClientRequest{
		CompanyName:      ptr("Après"),
		PaymentTermsDays: ptr(45),
	})
	require.NoError(t, err)
	require.Equal(t, "Après", updated.CompanyName)
	require.Equal(t, 45, updated.PaymentTermsDays)
}

func TestUpdateUnknownClient(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Update(context.Background(), 404, UpdateClientRequest{CompanyName: ptr("X")})
	require.ErrorIs(t, err, ErrNotFound)
}
