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

const (
	defaultNotionBaseURL = "https://api.notion.com"
	notionVersion        = "2022-06-28"
)

// NotionSource enumerates the pages of a connected notion workspace.
// Listings cannot run without one, so callers dispatching notion syncs must
// pass a source along with the call.
type NotionSource interface {
	Pages(ctx context.Context, accessToken string, parentID string, recursive bool) ([]domain.SyncFile, error)
}

// NotionPages is the registered notion handler. It holds no workspace state
// of its own; the per-call NotionSource does the actual enumeration.
type NotionPages struct {
	log zerolog.Logger
}

func NewNotionPages(log logger.Logger) *NotionPages {
	return &NotionPages{
		log: log.With().Str("provider", domain.ProviderNotion.String()).Logger(),
	}
}

func (n *NotionPages) ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error) {
	if opts.Notion == nil {
		n.log.Error().Msg("Notion listing dispatched without a notion source")
		return nil, domain.ErrNotionClientRequired
	}

	token, err := tokenFromCredentials(credentials)
	if err != nil {
		return nil, err
	}

	files, err := opts.Notion.Pages(ctx, token.AccessToken, opts.FolderID, opts.Recursive)
	if err != nil {
		n.log.Error().Err(err).Str("parentID", opts.FolderID).Msg("Notion page listing failed")
		return nil, errors.Wrap(err, "failed to list notion pages")
	}

	n.log.Debug().Int("count", len(files)).Str("parentID", opts.FolderID).Msg("Listed notion pages")
	return files, nil
}

// NotionAPI implements NotionSource against the Notion search API.
type NotionAPI struct {
	log zerolog.Logger

	// BaseURL and HTTPClient override the Notion endpoint in tests.
	BaseURL    string
	HTTPClient *http.Client
}

func NewNotionAPI(log logger.Logger) *NotionAPI {
	return &NotionAPI{
		log:     log.With().Str("module", "notion_api").Logger(),
		BaseURL: defaultNotionBaseURL,
	}
}

type notionSearchRequest struct {
	Filter struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	} `json:"filter"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type notionPage struct {
	ID             string                     `json:"id"`
	Object         string                     `json:"object"`
	URL            string                     `json:"url"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Properties     map[string]json.RawMessage `json:"properties"`
	Parent         struct {
		Type   string `json:"type"`
		PageID string `json:"page_id"`
	} `json:"parent"`
}

type notionSearchResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// Pages enumerates workspace pages. The search API cannot filter by parent,
// so parentID narrowing happens client-side; recursive keeps the whole
// subtree indiscriminately since search already spans the workspace.
func (n *NotionAPI) Pages(ctx context.Context, accessToken string, parentID string, recursive bool) ([]domain.SyncFile, error) {
	var files []domain.SyncFile

	cursor := ""
	for {
		page, err := n.search(ctx, accessToken, cursor)
		if err != nil {
			return nil, err
		}

		for _, result := range page.Results {
			if parentID != "" && !recursive && result.Parent.PageID != parentID {
				continue
			}
			files = append(files, notionSyncFile(result))
		}

		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	return files, nil
}

func (n *NotionAPI) search(ctx context.Context, accessToken string, cursor string) (*notionSearchResponse, error) {
	reqBody := notionSearchRequest{PageSize: 100, StartCursor: cursor}
	reqBody.Filter.Property = "object"
	reqBody.Filter.Value = "page"

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode notion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.BaseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build notion request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	client := n.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "notion request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, errors.New("notion request returned status %d: %s", res.StatusCode, string(errBody))
	}

	var page notionSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "failed to decode notion response")
	}
	return &page, nil
}

func notionSyncFile(page notionPage) domain.SyncFile {
	return domain.SyncFile{
		ID:             page.ID,
		Name:           notionPageTitle(page),
		IsFolder:       false,
		LastModifiedAt: page.LastEditedTime,
		WebViewURL:     page.URL,
	}
}

// notionPageTitle digs the title out of the page properties. The title
// property's name is user-defined, so every property is probed for the
// title type.
func notionPageTitle(page notionPage) string {
	type titleProperty struct {
		Type  string `json:"type"`
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
	}

	for _, raw := range page.Properties {
		var prop titleProperty
		if err := json.Unmarshal(raw, &prop); err != nil {
			continue
		}
		if prop.Type != "title" {
			continue
		}

		title := ""
		for _, part := range prop.Title {
			title += part.PlainText
		}
		if title != "" {
			return title
		}
	}

	return "Untitled"
}
