package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marvargas/email-registry/middleware"
	"github.com/marvargas/email-registry/models"
	"github.com/marvargas/email-registry/policy"
	"github.com/marvargas/email-registry/repositories"
	"github.com/marvargas/email-registry/services/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockEmailRepository is a mock implementation of EmailRepository
type MockEmailRepository struct {
	mock.Mock
}

func (m *MockEmailRepository) Create(ctx context.Context, rec *models.EmailRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockEmailRepository) GetByID(ctx context.Context, id int64) (*models.EmailRecord, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*models.EmailRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.EmailRecord, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*models.EmailRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailRepository) GetByEmail(ctx context.Context, email string) (*models.EmailRecord, error) {
	args := m.Called(ctx, email)
	if rec := args.Get(0); rec != nil {
		return rec.(*models.EmailRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailRepository) List(ctx context.Context, limit, offset int) ([]*models.EmailRecord, error) {
	args := m.Called(ctx, limit, offset)
	if recs := args.Get(0); recs != nil {
		return recs.([]*models.EmailRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailRepository) ListByCreator(ctx context.Context, createdBy uuid.UUID, limit, offset int) ([]*models.EmailRecord, error) {
	args := m.Called(ctx, createdBy, limit, offset)
	if recs := args.Get(0); recs != nil {
		return recs.([]*models.EmailRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailRepository) Update(ctx context.Context, rec *models.EmailRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockEmailRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type stubTxManager struct{}

func (stubTxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, nil
}

func (stubTxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	return fn(ctx, nil)
}

func newTestHandler(repo *MockEmailRepository) *EmailHandler {
	logger := zap.NewNop()
	svc := registry.NewService(repo, stubTxManager{}, policy.NewEvaluator(logger), logger)
	return NewEmailHandler(svc, logger)
}

// newAuthedRequest builds a request carrying an authenticated principal, as
// the auth middleware would after validating a token.
func newAuthedRequest(t *testing.T, method, target string, body interface{}, p policy.Principal) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	ctx := middleware.WithPrincipal(req.Context(), p)
	ctx = middleware.WithClaims(ctx, &middleware.Claims{Sub: p.ID.String(), Email: "caller@example.com"})
	return req.WithContext(ctx)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandleCreate(t *testing.T) {
	t.Run("valid request returns 201", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		repo.On("Create", mock.Anything, mock.MatchedBy(func(rec *models.EmailRecord) bool {
			return rec.Email == "alice@example.com" && rec.CreatedBy != nil && *rec.CreatedBy == p.ID
		})).Return(nil)

		req := newAuthedRequest(t, http.MethodPost, "/api/v1/emails", CreateEmailRequest{
			Email: "alice@example.com",
		}, p)
		w := httptest.NewRecorder()

		h.HandleCreate(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("invalid email returns 400", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		req := newAuthedRequest(t, http.MethodPost, "/api/v1/emails", CreateEmailRequest{
			Email: "not-an-email",
		}, policy.Principal{ID: uuid.New(), Authenticated: true})
		w := httptest.NewRecorder()

		h.HandleCreate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		repo.On("Create", mock.Anything, mock.Anything).Return(repositories.ErrDuplicateEmail)

		req := newAuthedRequest(t, http.MethodPost, "/api/v1/emails", CreateEmailRequest{
			Email: "dup@example.com",
		}, policy.Principal{ID: uuid.New(), Authenticated: true})
		w := httptest.NewRecorder()

		h.HandleCreate(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("anonymous caller returns 401", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		req := newAuthedRequest(t, http.MethodPost, "/api/v1/emails", CreateEmailRequest{
			Email: "alice@example.com",
		}, policy.Anonymous)
		w := httptest.NewRecorder()

		h.HandleCreate(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleList(t *testing.T) {
	t.Run("returns all rows regardless of creator", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		other := uuid.New()
		rows := []*models.EmailRecord{
			{ID: 2, Email: "b@example.com", CreatedBy: &other},
			{ID: 1, Email: "a@example.com"},
		}
		repo.On("List", mock.Anything, 50, 0).Return(rows, nil)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		w := httptest.NewRecorder()

		h.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []EmailResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Len(t, resp.Data, 2)
	})

	t.Run("invalid limit returns 400", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails?limit=abc", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		w := httptest.NewRecorder()

		h.HandleList(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("mine filter lists by caller", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		repo.On("ListByCreator", mock.Anything, p.ID, 50, 0).
			Return([]*models.EmailRecord{}, nil)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails?mine=true", nil, p)
		w := httptest.NewRecorder()

		h.HandleList(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		repo.AssertExpectations(t)
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("existing record returns 200", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		repo.On("GetByID", mock.Anything, int64(7)).
			Return(&models.EmailRecord{ID: 7, Email: "a@example.com"}, nil)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails/7", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.HandleGet(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing record returns 404", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		repo.On("GetByID", mock.Anything, int64(404)).Return(nil, repositories.ErrNotFound)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails/404", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "404")
		w := httptest.NewRecorder()

		h.HandleGet(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-numeric id returns 400", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/emails/abc", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "abc")
		w := httptest.NewRecorder()

		h.HandleGet(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleUpdate(t *testing.T) {
	t.Run("owner update returns 200", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		owner := p.ID
		pre := &models.EmailRecord{ID: 7, Email: "old@example.com", CreatedBy: &owner}
		repo.On("GetByIDForUpdate", mock.Anything, int64(7)).Return(pre, nil)
		repo.On("Update", mock.Anything, mock.Anything).Return(nil)

		email := "new@example.com"
		req := newAuthedRequest(t, http.MethodPatch, "/api/v1/emails/7",
			UpdateEmailRequest{Email: &email}, p)
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.HandleUpdate(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data EmailResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "new@example.com", resp.Data.Email)
	})

	t.Run("non-owner update returns 403", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		owner := uuid.New()
		pre := &models.EmailRecord{ID: 7, Email: "old@example.com", CreatedBy: &owner}
		repo.On("GetByIDForUpdate", mock.Anything, int64(7)).Return(pre, nil)

		email := "new@example.com"
		req := newAuthedRequest(t, http.MethodPatch, "/api/v1/emails/7",
			UpdateEmailRequest{Email: &email},
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.HandleUpdate(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("clearing created_by returns 403", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		owner := p.ID
		pre := &models.EmailRecord{ID: 7, Email: "old@example.com", CreatedBy: &owner}
		repo.On("GetByIDForUpdate", mock.Anything, int64(7)).Return(pre, nil)

		req := newAuthedRequest(t, http.MethodPatch, "/api/v1/emails/7",
			map[string]interface{}{"created_by": nil}, p)
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.HandleUpdate(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("malformed created_by returns 400", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		req := newAuthedRequest(t, http.MethodPatch, "/api/v1/emails/7",
			map[string]interface{}{"created_by": "not-a-uuid"},
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "7")
		w := httptest.NewRecorder()

		h.HandleUpdate(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleDelete(t *testing.T) {
	t.Run("owner delete returns 204", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		owner := p.ID
		pre := &models.EmailRecord{ID: 9, Email: "x@example.com", CreatedBy: &owner}
		repo.On("GetByIDForUpdate", mock.Anything, int64(9)).Return(pre, nil)
		repo.On("Delete", mock.Anything, int64(9)).Return(nil)

		req := newAuthedRequest(t, http.MethodDelete, "/api/v1/emails/9", nil, p)
		req = withURLParam(req, "id", "9")
		w := httptest.NewRecorder()

		h.HandleDelete(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		repo.AssertExpectations(t)
	})

	t.Run("non-owner delete returns 403", func(t *testing.T) {
		repo := new(MockEmailRepository)
		h := newTestHandler(repo)

		owner := uuid.New()
		pre := &models.EmailRecord{ID: 9, Email: "x@example.com", CreatedBy: &owner}
		repo.On("GetByIDForUpdate", mock.Anything, int64(9)).Return(pre, nil)

		req := newAuthedRequest(t, http.MethodDelete, "/api/v1/emails/9", nil,
			policy.Principal{ID: uuid.New(), Authenticated: true})
		req = withURLParam(req, "id", "9")
		w := httptest.NewRecorder()

		h.HandleDelete(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

func TestHandleMe(t *testing.T) {
	t.Run("returns claims", func(t *testing.T) {
		h := newTestHandler(new(MockEmailRepository))
		p := policy.Principal{ID: uuid.New(), Authenticated: true}

		req := newAuthedRequest(t, http.MethodGet, "/api/v1/me", nil, p)
		w := httptest.NewRecorder()

		h.HandleMe(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data CurrentUserResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, p.ID.String(), resp.Data.Sub)
	})

	t.Run("missing claims returns 401", func(t *testing.T) {
		h := newTestHandler(new(MockEmailRepository))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		w := httptest.NewRecorder()

		h.HandleMe(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
