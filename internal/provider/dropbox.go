package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultDropboxBaseURL = "https://api.dropboxapi.com/2"

// DropboxFiles lists files through the Dropbox API v2. The API natively
// supports recursive listings, so recursion is a request flag rather than a
// client-side walk.
type DropboxFiles struct {
	log zerolog.Logger

	// BaseURL and HTTPClient override the Dropbox endpoint in tests.
	BaseURL    string
	HTTPClient *http.Client
}

func NewDropboxFiles(log logger.Logger) *DropboxFiles {
	return &DropboxFiles{
		log:     log.With().Str("provider", domain.ProviderDropbox.String()).Logger(),
		BaseURL: defaultDropboxBaseURL,
	}
}

type dropboxEntry struct {
	Tag            string    `json:".tag"`
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PathDisplay    string    `json:"path_display"`
	Size           int64     `json:"size"`
	ServerModified time.Time `json:"server_modified"`
}

type dropboxListResponse struct {
	Entries []dropboxEntry `json:"entries"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

type dropboxListRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type dropboxContinueRequest struct {
	Cursor string `json:"cursor"`
}

func (d *DropboxFiles) ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error) {
	token, err := tokenFromCredentials(credentials)
	if err != nil {
		return nil, err
	}

	// Dropbox addresses the root as the empty path.
	page, err := d.post(ctx, "/files/list_folder", token.AccessToken, dropboxListRequest{
		Path:      opts.FolderID,
		Recursive: opts.Recursive,
	})
	if err != nil {
		d.log.Error().Err(err).Str("folderID", opts.FolderID).Msg("Dropbox file listing failed")
		return nil, err
	}

	var files []domain.SyncFile
	for {
		for _, entry := range page.Entries {
			files = append(files, dropboxSyncFile(entry))
		}
		if !page.HasMore {
			break
		}

		page, err = d.post(ctx, "/files/list_folder/continue", token.AccessToken, dropboxContinueRequest{Cursor: page.Cursor})
		if err != nil {
			d.log.Error().Err(err).Str("folderID", opts.FolderID).Msg("Dropbox listing continuation failed")
			return nil, err
		}
	}

	d.log.Debug().Int("count", len(files)).Str("folderID", opts.FolderID).Msg("Listed dropbox files")
	return files, nil
}

func (d *DropboxFiles) post(ctx context.Context, path string, accessToken string, payload any) (*dropboxListResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode dropbox request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dropbox request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "dropbox request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.New("dropbox request returned status %d: %s", res.StatusCode, string(errBody))
	}

	var page dropboxListResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "failed to decode dropbox response")
	}
	return &page, nil
}

func dropboxSyncFile(entry dropboxEntry) domain.SyncFile {
	name := entry.Name
	if name == "" {
		name = entry.PathDisplay
	}
	return domain.SyncFile{
		ID:             entry.ID,
		Name:           name,
		IsFolder:       entry.Tag == "folder",
		Size:           entry.Size,
		LastModifiedAt: entry.ServerModified,
		WebViewURL:     "",
	}
}
