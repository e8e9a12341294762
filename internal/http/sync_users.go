package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type syncUserService interface {
	Store(ctx context.Context, input domain.SyncUserCreate) (*domain.SyncUser, error)
	FindByID(ctx context.Context, id int) (*domain.SyncUser, error)
	FindByUser(ctx context.Context, userID uuid.UUID, syncID *int) ([]domain.SyncUser, error)
	FindByState(ctx context.Context, state map[string]any) (*domain.SyncUser, error)
	FindByProvider(ctx context.Context, p domain.Provider) ([]domain.SyncUser, error)
	Update(ctx context.Context, userID uuid.UUID, state map[string]any, patch domain.SyncUserPatch) error
	Delete(ctx context.Context, id int, userID uuid.UUID) error
}

type syncUserHandler struct {
	log     zerolog.Logger
	encoder encoder
	service syncUserService
}

func newSyncUserHandler(encoder encoder, log zerolog.Logger, service syncUserService) *syncUserHandler {
	return &syncUserHandler{
		log:     log,
		encoder: encoder,
		service: service,
	}
}

func (h syncUserHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.store)
	r.Post("/state", h.byState)
	r.Get("/provider/{provider}", h.byProvider)
	r.Get("/{syncUserID}", h.byID)
	r.Patch("/", h.update)
	r.Delete("/{syncUserID}", h.delete)
}

// list returns the caller's sync users. A sync_id query narrows the result
// to that one record.
func (h syncUserHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var syncID *int
	if raw := r.URL.Query().Get("sync_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			h.encoder.StatusResponse(ctx, w, errorResponse{Message: "sync_id must be an integer", Status: http.StatusBadRequest}, http.StatusBadRequest)
			return
		}
		syncID = &id
	}

	syncUsers, err := h.service.FindByUser(ctx, ownerID, syncID)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}
	if syncUsers == nil {
		syncUsers = []domain.SyncUser{}
	}

	h.encoder.StatusResponse(ctx, w, syncUsers, http.StatusOK)
}

func (h syncUserHandler) store(w http.ResponseWriter, r *http.Request) {
	var (
		ctx  = r.Context()
		data domain.SyncUserCreate
	)

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.StatusResponse(ctx, w, "Invalid request body", http.StatusBadRequest)
		return
	}

	provider, err := domain.ParseProvider(data.Provider.String())
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: err.Error(), Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	// ownership comes from the session, never the body
	data.UserID = ownerID
	data.Provider = provider

	syncUser, err := h.service.Store(ctx, data)
	if err != nil {
		h.encoder.StatusResponse(ctx, w, "Failed to store sync user", http.StatusInternalServerError)
		return
	}

	h.encoder.StatusResponse(ctx, w, syncUser, http.StatusCreated)
}

// byState resolves a sync user from a state payload. The body is the state
// document itself.
func (h syncUserHandler) byState(w http.ResponseWriter, r *http.Request) {
	var (
		ctx   = r.Context()
		state map[string]any
	)

	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		h.encoder.StatusResponse(ctx, w, "Invalid request body", http.StatusBadRequest)
		return
	}

	syncUser, err := h.service.FindByState(ctx, state)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}
	if syncUser == nil {
		h.encoder.StatusNotFound(ctx, w)
		return
	}

	h.encoder.StatusResponse(ctx, w, syncUser, http.StatusOK)
}

func (h syncUserHandler) byProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	provider, err := domain.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: err.Error(), Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	syncUsers, err := h.service.FindByProvider(ctx, provider)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}
	if syncUsers == nil {
		syncUsers = []domain.SyncUser{}
	}

	h.encoder.StatusResponse(ctx, w, syncUsers, http.StatusOK)
}

func (h syncUserHandler) byID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.Atoi(chi.URLParam(r, "syncUserID"))
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: "sync user id must be an integer", Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	syncUser, err := h.service.FindByID(ctx, id)
	if err != nil {
		h.encoder.Error(w, err)
		return
	}
	if syncUser == nil {
		h.encoder.StatusNotFound(ctx, w)
		return
	}

	h.encoder.StatusResponse(ctx, w, syncUser, http.StatusOK)
}

type syncUserUpdateRequest struct {
	State map[string]any       `json:"state"`
	Patch domain.SyncUserPatch `json:"patch"`
}

// update patches the caller's sync user matching the state payload. A state
// that matches nothing the caller owns is a silent no-op, the response is
// 204 either way.
func (h syncUserHandler) update(w http.ResponseWriter, r *http.Request) {
	var (
		ctx  = r.Context()
		data syncUserUpdateRequest
	)

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.encoder.StatusResponse(ctx, w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Update(ctx, ownerID, data.State, data.Patch); err != nil {
		h.encoder.StatusResponse(ctx, w, "Failed to update sync user", http.StatusInternalServerError)
		return
	}

	h.encoder.StatusResponse(ctx, w, nil, http.StatusNoContent)
}

// delete removes the caller's sync user. A foreign or missing id is a
// silent no-op.
func (h syncUserHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "syncUserID"))
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: "sync user id must be an integer", Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(ctx, id, ownerID); err != nil {
		h.encoder.StatusResponse(ctx, w, "Failed to delete sync user", http.StatusInternalServerError)
		return
	}

	h.encoder.StatusResponse(ctx, w, nil, http.StatusNoContent)
}
