package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kuma-mall/kuma-admin/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), hashes: make(map[int64]string)}
}

func (m *memoryRepo) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []User
	for id := int64(1); id <= m.nextID; id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetUser(ctx context.Context, id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryRepo) CreateUser(ctx context.Context, user User, hash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return User{}, ErrDuplicateEmail
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.IsActive = true
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	m.hashes[user.ID] = hash
	return user, nil
}

func (m *memoryRepo) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.IsActive = active
	m.users[id] = u
	return u, nil
}

func (m *memoryRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	m.hashes[id] = hash
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func asActor(parent context.Context, id int64) context.Context {
	sess := &shared.Session{}
	sess.SetUser(id)
	return shared.ContextWithSession(parent, sess)
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	user, err := svc.CreateUser(context.Background(), CreateInput{Email: " Ops@Kuma.Test ", Name: "Ops", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "ops@kuma.test", user.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[user.ID]), []byte("s3cret-pass")))

	_, err = svc.CreateUser(context.Background(), CreateInput{Email: "OPS@kuma.test", Name: "Dup", Password: "s3cret-pass"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.CreateUser(context.Background(), CreateInput{Email: "x@kuma.test", Name: "X", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestSetActiveRefusesSelfDeactivation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	admin, err := svc.CreateUser(context.Background(), CreateInput{Email: "a@kuma.test", Name: "A", Password: "password-a"})
	require.NoError(t, err)
	other, err := svc.CreateUser(context.Background(), CreateInput{Email: "b@kuma.test", Name: "B", Password: "password-b"})
	require.NoError(t, err)

	_, err = svc.SetActive(asActor(context.Background(), admin.ID), admin.ID, false)
	assert.ErrorIs(t, err, ErrSelfDeactivate)

	updated, err := svc.SetActive(asActor(context.Background(), admin.ID), other.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	updated, err = svc.SetActive(asActor(context.Background(), admin.ID), other.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	_, err = svc.SetActive(asActor(context.Background(), admin.ID), 404, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHandlerRoutes(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(asActor(req.Context(), 1)))
		})
	})
	r.Route("/users", NewHandler(nil, svc).MountRoutes)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodPost, "/users", `{"email":"root@kuma.test","name":"Root","password":"password-1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(http.MethodPost, "/users", `{"email":"not-an-email","name":"X","password":"password-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/users", `{"email":"two@kuma.test","name":"Two","password":"password-2"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(http.MethodPost, "/users/1/deactivate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/users/2/deactivate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_active":false`)

	rec = do(http.MethodPut, "/users/2/password", `{"password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[2]), []byte("brand-new-pass")))

	rec = do(http.MethodPut, "/users/2/password", `{"password":"tiny"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
}
