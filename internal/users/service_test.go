package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryRepo struct {
	seq   int64
	users map[int64]*User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]*User{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryRepo) List(_ context.Context, req ListUsersRequest) ([]User, int, error) {
	var out []User
	for _, u := range m.users {
		if req.IsActive != nil && u.IsActive != *req.IsActive {
			continue
		}
		if req.Role != nil && u.Role != *req.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Create(_ context.Context, u User) (int64, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return 0, ErrDuplicateEmail
		}
	}
	m.seq++
	u.ID = m.seq
	m.users[u.ID] = &u
	return u.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	for col, val := range updates {
		switch col {
		case "full_name":
			u.FullName = val.(string)
		case "role":
			u.Role = val.(string)
		case "password_hash":
			u.PasswordHash = val.(string)
		case "is_active":
			u.IsActive = val.(bool)
		}
	}
	return nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	svc := NewService(newMemoryRepo())

	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    " Marie.Dupont@Example.FR ",
		FullName: "Marie Dupont",
		Password: "correct horse battery",
		Role:     "manager",
	})
	require.NoError(t, err)
	require.Equal(t, "marie.dupont@example.fr", u.Email)
	require.True(t, u.IsActive)
	require.NotEqual(t, "correct horse battery", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse battery")))
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "jean@example.fr", FullName: "Jean", Password: "motdepasse", Role: "assistant",
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserRequest{
		Email: "jean@example.fr", FullName: "Jean Bis", Password: "motdepasse", Role: "assistant",
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUpdateUserChangesRole(t *testing.T) {
	svc := NewService(newMemoryRepo())

	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "lea@example.fr", FullName: "Léa", Password: "motdepasse", Role: "assistant",
	})
	require.NoError(t, err)

	role := "accountant"
	updated, err := svc.Update(context.Background(), u.ID, UpdateUserRequest{Role: &role}, 99)
	require.NoError(t, err)
	require.Equal(t, "accountant", updated.Role)
}

func TestUpdateUserRejectsSelfDeactivate(t *testing.T) {
	svc := NewService(newMemoryRepo())

	u, err := svc.Create(context.Background(), CreateUserRequest{
		Email: "admin@example.fr", FullName: "Admin", Password: "motdepasse", Role: "admin",
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(context.Background(), u.ID, UpdateUserRequest{IsActive: &inactive}, u.ID)
	require.ErrorIs(t, err, ErrSelfDeactivate)

	// Another administrator may deactivate the account.
	updated, err := svc.Update(context.Background(), u.ID, UpdateUserRequest{IsActive: &inactive}, u.ID+1)
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}

func TestUpdateUnknownUser(t *testing.T) {
	svc := NewService(newMemoryRepo())

	name := "Ghost"
	_, err := svc.Update(context.Background(), 404, UpdateUserRequest{FullName: &name}, 1)
	require.ErrorIs(t, err, ErrUserNotFound)
}
