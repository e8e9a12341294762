package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/driftworks/syncbridge/internal/domain"
	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/driftworks/syncbridge/pkg/errors"
	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// GitHubRepos lists repository contents through the GitHub API. An empty
// folder id lists the authenticated user's repositories as folders; a
// folder id of the form owner/repo[/path] lists that repository path.
type GitHubRepos struct {
	log   zerolog.Logger
	oauth *oauth2.Config

	// BaseURL and HTTPClient override the GitHub endpoint in tests.
	BaseURL    string
	HTTPClient *http.Client
}

func NewGitHubRepos(log logger.Logger, oauthCfg *oauth2.Config) *GitHubRepos {
	return &GitHubRepos{
		log:   log.With().Str("provider", domain.ProviderGitHub.String()).Logger(),
		oauth: oauthCfg,
	}
}

func (g *GitHubRepos) ListFiles(ctx context.Context, credentials json.RawMessage, opts ListOptions) ([]domain.SyncFile, error) {
	token, err := tokenFromCredentials(credentials)
	if err != nil {
		return nil, err
	}

	client := g.newClient(ctx, token)

	if opts.FolderID == "" {
		return g.listRepositories(ctx, client)
	}

	owner, repo, path, err := splitRepoPath(opts.FolderID)
	if err != nil {
		return nil, err
	}
	return g.listContents(ctx, client, owner, repo, path, opts.Recursive)
}

func (g *GitHubRepos) newClient(ctx context.Context, token *oauth2.Token) *github.Client {
	httpClient := g.HTTPClient
	if httpClient == nil {
		httpClient = oauth2.NewClient(ctx, tokenSource(ctx, g.oauth, token))
	}

	client := github.NewClient(httpClient)
	if g.BaseURL != "" {
		if base, err := url.Parse(g.BaseURL + "/"); err == nil {
			client.BaseURL = base
		}
	}
	return client
}

// listRepositories returns the user's repositories, each presented as a
// folder that can be listed by its full name.
func (g *GitHubRepos) listRepositories(ctx context.Context, client *github.Client) ([]domain.SyncFile, error) {
	var files []domain.SyncFile

	listOpts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		repos, res, err := client.Repositories.List(ctx, "", listOpts)
		if err != nil {
			g.log.Error().Err(err).Msg("GitHub repository listing failed")
			return nil, errors.Wrap(err, "failed to list github repositories")
		}

		for _, repo := range repos {
			files = append(files, domain.SyncFile{
				ID:             repo.GetFullName(),
				Name:           repo.GetName(),
				IsFolder:       true,
				LastModifiedAt: repo.GetUpdatedAt().Time,
				WebViewURL:     repo.GetHTMLURL(),
			})
		}

		if res == nil || res.NextPage == 0 {
			break
		}
		listOpts.Page = res.NextPage
	}

	g.log.Debug().Int("count", len(files)).Msg("Listed github repositories")
	return files, nil
}

func (g *GitHubRepos) listContents(ctx context.Context, client *github.Client, owner, repo, path string, recursive bool) ([]domain.SyncFile, error) {
	var files []domain.SyncFile
	pending := []string{path}

	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		fileContent, dirContent, _, err := client.Repositories.GetContents(ctx, owner, repo, current, nil)
		if err != nil {
			g.log.Error().Err(err).Str("repo", owner+"/"+repo).Str("path", current).Msg("GitHub contents listing failed")
			return nil, errors.Wrap(err, "failed to list github contents")
		}

		// A file path resolves to a single entry instead of a directory.
		if fileContent != nil {
			files = append(files, githubSyncFile(owner, repo, fileContent))
			continue
		}

		for _, entry := range dirContent {
			files = append(files, githubSyncFile(owner, repo, entry))
			if recursive && entry.GetType() == "dir" {
				pending = append(pending, entry.GetPath())
			}
		}
	}

	g.log.Debug().Int("count", len(files)).Str("repo", owner+"/"+repo).Msg("Listed github contents")
	return files, nil
}

func githubSyncFile(owner, repo string, content *github.RepositoryContent) domain.SyncFile {
	return domain.SyncFile{
		ID:         owner + "/" + repo + "/" + content.GetPath(),
		Name:       content.GetName(),
		IsFolder:   content.GetType() == "dir",
		Size:       int64(content.GetSize()),
		WebViewURL: content.GetHTMLURL(),
	}
}

// splitRepoPath breaks owner/repo[/path] into its parts.
func splitRepoPath(folderID string) (owner, repo, path string, err error) {
	parts := strings.SplitN(strings.Trim(folderID, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", errors.New("github folder id must be owner/repo or owner/repo/path, got %q", folderID)
	}

	owner, repo = parts[0], parts[1]
	if len(parts) == 3 {
		path = parts[2]
	}
	return owner, repo, path, nil
}
