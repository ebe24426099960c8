package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/marvargas/email-registry/middleware"
	"github.com/marvargas/email-registry/models"
	"github.com/marvargas/email-registry/services/registry"
	"github.com/marvargas/email-registry/utils"
	"go.uber.org/zap"
)

// CreateEmailRequest represents a request to create an email record
type CreateEmailRequest struct {
	Email     string  `json:"email" validate:"required,email,max=320"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

// UpdateEmailRequest represents a request to update an email record. Pointer
// fields are applied only when present. created_by and updated_at are
// accepted so the server can answer with a proper denial or override instead
// of silently dropping them.
type UpdateEmailRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=320"`
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,max=100"`

	CreatedBy json.RawMessage `json:"created_by,omitempty"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

// EmailResponse represents an email record in API responses
type EmailResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	FirstName *string    `json:"first_name,omitempty"`
	LastName  *string    `json:"last_name,omitempty"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

func toEmailResponse(rec *models.EmailRecord) EmailResponse {
	return EmailResponse{
		ID:        rec.ID,
		Email:     rec.Email,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		CreatedBy: rec.CreatedBy,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toEmailResponses(recs []*models.EmailRecord) []EmailResponse {
	out := make([]EmailResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toEmailResponse(rec))
	}
	return out
}

// EmailHandler handles email record HTTP requests
type EmailHandler struct {
	service *registry.Service
	logger  *zap.Logger
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(service *registry.Service, logger *zap.Logger) *EmailHandler {
	return &EmailHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/emails
func (h *EmailHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.GetPrincipalFromContext(ctx)

	limit, offset, err := parsePage(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var records []*models.EmailRecord
	if r.URL.Query().Get("mine") == "true" {
		records, err = h.service.ListMine(ctx, p, limit, offset)
	} else {
		records, err = h.service.List(ctx, p, limit, offset)
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteList(w, toEmailResponses(records), limit, offset)
}

// HandleCreate handles POST /api/v1/emails
func (h *EmailHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.GetPrincipalFromContext(ctx)

	var req CreateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	rec, err := h.service.Create(ctx, p, registry.CreateInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, toEmailResponse(rec))
}

// HandleGet handles GET /api/v1/emails/{id}
func (h *EmailHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.GetPrincipalFromContext(ctx)

	id, err := parseID(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid record ID", nil)
		return
	}

	rec, err := h.service.Get(ctx, p, id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, toEmailResponse(rec))
}

// HandleUpdate handles PATCH /api/v1/emails/{id}
func (h *EmailHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.GetPrincipalFromContext(ctx)

	id, err := parseID(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid record ID", nil)
		return
	}

	var req UpdateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		req.Email = &trimmed
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	in := registry.UpdateInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UpdatedAt: req.UpdatedAt,
	}
	if ok, err := decodeCreatedBy(req.CreatedBy, &in); !ok {
		_ = utils.WriteBadRequest(w, err, nil)
		return
	}

	rec, err := h.service.Update(ctx, p, id, in)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, toEmailResponse(rec))
}

// HandleDelete handles DELETE /api/v1/emails/{id}
func (h *EmailHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.GetPrincipalFromContext(ctx)

	id, err := parseID(r)
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid record ID", nil)
		return
	}

	if err := h.service.Delete(ctx, p, id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}

// CurrentUserResponse is the response body for GET /api/v1/me
type CurrentUserResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

// HandleMe handles GET /api/v1/me
func (h *EmailHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	_ = utils.WriteOK(w, CurrentUserResponse{
		Sub:   claims.Sub,
		Email: claims.Email,
	})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// decodeCreatedBy distinguishes an explicit JSON null (clear the creator)
// from a UUID string (reassign). Both end up denied by the row policy, but
// the request must still parse so the denial carries the right status.
func decodeCreatedBy(raw json.RawMessage, in *registry.UpdateInput) (bool, string) {
	if len(raw) == 0 {
		return true, ""
	}
	if string(raw) == "null" {
		in.ClearCreatedBy = true
		return true, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, "Invalid created_by format"
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false, "Invalid created_by format"
	}
	in.CreatedBy = &id
	return true, ""
}

func parsePage(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, errInvalidPage("limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errInvalidPage("offset")
		}
	}
	return limit, offset, nil
}

type errInvalidPage string

func (e errInvalidPage) Error() string {
	return "Invalid " + string(e) + " parameter"
}
