package domain

import (
	"strings"
	"time"

	"github.com/driftworks/syncbridge/pkg/errors"
)

// Provider identifies an external file provider. Stored and compared in its
// canonical lower-case form.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderAzure   Provider = "azure"
	ProviderDropbox Provider = "dropbox"
	ProviderNotion  Provider = "notion"
	ProviderGitHub  Provider = "github"
)

const (
	// ErrNoSyncFound is returned when a listing is requested for a sync id
	// that resolves to no usable provider handler.
	ErrNoSyncFound = errors.Sentinel("no sync found")

	// ErrNotionClientRequired is returned when a notion listing is dispatched
	// without a notion client. That is a caller-contract violation, not a
	// user-input problem.
	ErrNotionClientRequired = errors.Sentinel("notion client is required for notion sync")
)

// Canonical returns the lower-case form a provider is stored and matched
// under.
func (p Provider) Canonical() Provider {
	return Provider(strings.ToLower(string(p)))
}

func (p Provider) String() string {
	return string(p)
}

// Known reports whether the canonical form names a supported provider.
func (p Provider) Known() bool {
	switch p.Canonical() {
	case ProviderGoogle, ProviderAzure, ProviderDropbox, ProviderNotion, ProviderGitHub:
		return true
	}
	return false
}

// ParseProvider canonicalizes raw and rejects names outside the supported
// set.
func ParseProvider(raw string) (Provider, error) {
	p := Provider(raw).Canonical()
	if !p.Known() {
		return "", errors.New("unsupported provider %q", raw)
	}
	return p, nil
}

// SyncFile describes one entry returned by a provider listing. The
// dispatcher aggregates these without inspecting them.
type SyncFile struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	IsFolder       bool      `json:"is_folder"`
	MimeType       string    `json:"mime_type,omitempty"`
	Size           int64     `json:"size,omitempty"`
	LastModifiedAt time.Time `json:"last_modified_at,omitempty"`
	WebViewURL     string    `json:"web_view_url,omitempty"`
}

// FileListing is the envelope a dispatch call resolves to.
type FileListing struct {
	Files []SyncFile `json:"files"`
}
