package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// AzureDrive lists OneDrive files through the Microsoft Graph API. Recursive
// listings walk folder children breadth-first, since Graph has no recursive
// children call.
type AzureDrive struct {
	log zerolog.Logger

	// BaseURL and HTTPClient override the Graph endpoint in tests.
	BaseURL    string
	HTTPClient *http.Client
}

func NewAzureDrive(log logger.Logger) *AzureDrive {
	return &AzureDrive{
		log:     log.With().Str("provider", domain.ProviderAzure.String()).Logger(),
		BaseURL: defaultGraphBaseURL,
	}
}

type graphDriveItem struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Size                 int64     `json:"size"`
	WebURL               string    `json:"webUrl"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
	Folder               *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	File *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
}

type graphListResponse struct {
	Value    []graphDriveItem `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

func (a *AzureDrive) ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error) {
	token, err := tokenFromCredentials(credentials)
	if err != nil {
		return nil, err
	}

	var files []domain.SyncFile
	pending := []string{opts.FolderID}

	for len(pending) > 0 {
		folderID := pending[0]
		pending = pending[1:]

		url := a.childrenURL(folderID)
		for url != "" {
			page, err := a.fetchChildren(ctx, url, token.AccessToken)
			if err != nil {
				a.log.Error().Err(err).Str("folderID", folderID).Msg("Graph file listing failed")
				return nil, err
			}

			for _, item := range page.Value {
				files = append(files, graphSyncFile(item))
				if opts.Recursive && item.Folder != nil {
					pending = append(pending, item.ID)
				}
			}
			url = page.NextLink
		}
	}

	a.log.Debug().Int("count", len(files)).Str("folderID", opts.FolderID).Msg("Listed onedrive files")
	return files, nil
}

func (a *AzureDrive) childrenURL(folderID string) string {
	if folderID == "" {
		return fmt.Sprintf("%s/me/drive/root/children", a.BaseURL)
	}
	return fmt.Sprintf("%s/me/drive/items/%s/children", a.BaseURL, folderID)
}

func (a *AzureDrive) fetchChildren(ctx context.Context, url string, accessToken string) (*graphListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build graph request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	client := a.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "graph request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.New("graph request returned status %d: %s", res.StatusCode, string(body))
	}

	var page graphListResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "failed to decode graph response")
	}
	return &page, nil
}

func graphSyncFile(item graphDriveItem) domain.SyncFile {
	syncFile := domain.SyncFile{
		ID:             item.ID,
		Name:           item.Name,
		IsFolder:       item.Folder != nil,
		Size:           item.Size,
		LastModifiedAt: item.LastModifiedDateTime,
		WebViewURL:     item.WebURL,
	}
	if item.File != nil {
		syncFile.MimeType = item.File.MimeType
	}
	return syncFile
}
