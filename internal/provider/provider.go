// Package provider implements file listings against the external providers a
// sync user can be connected to. Every provider satisfies FileLister; the
// dispatcher resolves handlers through the Registry and never switches on
// provider names itself.
package provider

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// ListOptions carries the per-call listing parameters. Handlers use the
// fields they understand: google ignores Recursive, and only notion reads
// Notion.
type ListOptions struct {
	// FolderID scopes the listing to one folder. Empty means the account
	// root.
	FolderID string
	// Recursive descends into subfolders for providers that support it.
	Recursive bool
	// Notion is the workspace view a notion listing runs against. Callers
	// dispatching notion syncs must supply one.
	Notion NotionSource
}

// FileLister lists the files of one provider account.
type FileLister interface {
	ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error)
}

// Registry maps canonical provider names to their handlers.
type Registry struct {
	log zerolog.Logger

	mu      sync.RWMutex
	listers map[domain.Provider]FileLister
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		log:     log.With().Str("module", "provider").Logger(),
		listers: make(map[domain.Provider]FileLister),
	}
}

// Register installs a handler under the canonical form of p.
func (r *Registry) Register(p domain.Provider, lister FileLister) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listers[p.Canonical()] = lister
	r.log.Debug().Str("provider", p.Canonical().String()).Msg("Registered provider handler")
}

// Lookup resolves the handler for the canonical form of p.
func (r *Registry) Lookup(p domain.Provider) (FileLister, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lister, ok := r.listers[p.Canonical()]
	return lister, ok
}

// tokenFromCredentials decodes the stored credentials payload into an OAuth2
// token.
func tokenFromCredentials(credentials json.RawMessage) (*oauth2.Token, error) {
	if len(credentials) == 0 {
		return nil, errors.New("credentials are not set")
	}

	var token oauth2.Token
	if err := json.Unmarshal(credentials, &token); err != nil {
		return nil, errors.Wrap(err, "failed to decode credentials")
	}
	if token.AccessToken == "" {
		return nil, errors.New("credentials are missing an access token")
	}

	return &token, nil
}

// tokenSource wraps token in a refreshing source when an oauth config is
// available, and a static one otherwise.
func tokenSource(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) oauth2.TokenSource {
	if cfg != nil && cfg.ClientID != "" {
		return cfg.TokenSource(ctx, token)
	}
	return oauth2.StaticTokenSource(token)
}
