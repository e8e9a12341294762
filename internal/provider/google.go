package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const googleFolderMimeType = "application/vnd.google-apps.folder"

// GoogleDrive lists files through the Drive v3 API. Listings are scoped to a
// single folder level; Drive queries have no recursive form.
type GoogleDrive struct {
	log   zerolog.Logger
	oauth *oauth2.Config

	// Endpoint and HTTPClient override the Drive service construction in
	// tests.
	Endpoint   string
	HTTPClient *http.Client
}

func NewGoogleDrive(log logger.Logger, oauthCfg *oauth2.Config) *GoogleDrive {
	return &GoogleDrive{
		log:   log.With().Str("provider", domain.ProviderGoogle.String()).Logger(),
		oauth: oauthCfg,
	}
}

func (g *GoogleDrive) ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error) {
	token, err := tokenFromCredentials(credentials)
	if err != nil {
		return nil, err
	}

	clientOpts := make([]option.ClientOption, 0, 2)
	if g.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(g.HTTPClient))
	} else {
		clientOpts = append(clientOpts, option.WithTokenSource(tokenSource(ctx, g.oauth, token)))
	}
	if g.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(g.Endpoint))
	}

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create drive service")
	}

	query := "trashed = false"
	if opts.FolderID != "" {
		query = fmt.Sprintf("'%s' in parents and trashed = false", opts.FolderID)
	}

	var files []domain.SyncFile
	pageToken := ""
	for {
		call := svc.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime, webViewLink)").
			PageSize(1000).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			g.log.Error().Err(err).Str("folderID", opts.FolderID).Msg("Drive file listing failed")
			return nil, errors.Wrap(err, "failed to list drive files")
		}

		for _, f := range res.Files {
			files = append(files, googleSyncFile(f))
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	g.log.Debug().Int("count", len(files)).Str("folderID", opts.FolderID).Msg("Listed drive files")
	return files, nil
}

func googleSyncFile(f *drive.File) domain.SyncFile {
	syncFile := domain.SyncFile{
		ID:         f.Id,
		Name:       f.Name,
		IsFolder:   f.MimeType == googleFolderMimeType,
		MimeType:   f.MimeType,
		Size:       f.Size,
		WebViewURL: f.WebViewLink,
	}
	if f.ModifiedTime != "" {
		if modified, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			syncFile.LastModifiedAt = modified
		}
	}
	return syncFile
}
