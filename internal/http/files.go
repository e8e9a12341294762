package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/provider"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fileListerService interface {
	ListFiles(ctx context.Context, syncID int, userID uuid.UUID, opts provider.ListOptions) (*domain.FileListing, error)
}

// filesHandler serves provider file listings for the caller's sync users.
// It owns the notion source so notion dispatches always arrive with one.
type filesHandler struct {
	log     zerolog.Logger
	encoder encoder
	service fileListerService
	notion  provider.NotionSource
}

func newFilesHandler(encoder encoder, log zerolog.Logger, service fileListerService, notion provider.NotionSource) *filesHandler {
	return &filesHandler{
		log:     log,
		encoder: encoder,
		service: service,
		notion:  notion,
	}
}

func (h filesHandler) Routes(r chi.Router) {
	r.Get("/{syncUserID}", h.list)
}

// list runs a file listing for one sync user. folder_id scopes to a folder
// and recursive descends into subfolders where the provider supports it.
func (h filesHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	syncID, err := strconv.Atoi(chi.URLParam(r, "syncUserID"))
	if err != nil {
		h.encoder.StatusResponse(ctx, w, errorResponse{Message: "sync user id must be an integer", Status: http.StatusBadRequest}, http.StatusBadRequest)
		return
	}

	opts := provider.ListOptions{
		FolderID: r.URL.Query().Get("folder_id"),
		Notion:   h.notion,
	}
	if raw := r.URL.Query().Get("recursive"); raw != "" {
		recursive, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			h.encoder.StatusResponse(ctx, w, errorResponse{Message: "recursive must be a boolean", Status: http.StatusBadRequest}, http.StatusBadRequest)
			return
		}
		opts.Recursive = recursive
	}

	listing, err := h.service.ListFiles(ctx, syncID, ownerID, opts)
	if err != nil {
		if errors.Is(err, domain.ErrNoSyncFound) {
			h.encoder.StatusNotFound(ctx, w)
			return
		}
		h.log.Error().Err(err).Int("syncID", syncID).Msg("File listing failed")
		h.encoder.Error(w, err)
		return
	}
	if listing == nil {
		h.encoder.StatusNotFound(ctx, w)
		return
	}

	h.encoder.StatusResponse(ctx, w, listing, http.StatusOK)
}
