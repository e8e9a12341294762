// Package version knows how to compare release versions and fetch the
// newest published release from GitHub.
package version

import (
	"context"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/google/go-github/v60/github"

	"github.com/driftworks/syncbridge/pkg/errors"
)

// Release is the subset of a GitHub release the application cares about.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	URL         string    `json:"url"`
	Body        *string   `json:"body"`
}

// Checker fetches the latest release of a repository and compares it
// against a running version.
type Checker struct {
	Owner string
	Repo  string

	client *github.Client
}

func NewChecker(owner, repo string) *Checker {
	return &Checker{
		Owner:  owner,
		Repo:   repo,
		client: github.NewClient(nil),
	}
}

// Latest returns the newest published release of the repository.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	rel, _, err := c.client.Repositories.GetLatestRelease(ctx, c.Owner, c.Repo)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch latest release for %s/%s", c.Owner, c.Repo)
	}

	return &Release{
		TagName:     rel.GetTagName(),
		PublishedAt: rel.GetPublishedAt().Time,
		URL:         rel.GetHTMLURL(),
		Body:        rel.Body,
	}, nil
}

// CheckNewVersion reports whether the latest release is newer than the
// supplied version. Development builds ("dev", empty) never trigger.
func (c *Checker) CheckNewVersion(ctx context.Context, current string) (bool, *Release, error) {
	if current == "" || current == "dev" {
		return false, nil, nil
	}

	release, err := c.Latest(ctx)
	if err != nil {
		return false, nil, err
	}

	newer, err := release.NewerThan(current)
	if err != nil {
		return false, nil, err
	}
	if !newer {
		return false, nil, nil
	}

	return true, release, nil
}

// NewerThan reports whether the release tag is a strictly higher semantic
// version than current. Leading "v" prefixes are accepted on both sides.
func (r *Release) NewerThan(current string) (bool, error) {
	currentVersion, err := goversion.NewVersion(current)
	if err != nil {
		return false, errors.Wrap(err, "could not parse current version %q", current)
	}

	releaseVersion, err := goversion.NewVersion(r.TagName)
	if err != nil {
		return false, errors.Wrap(err, "could not parse release tag %q", r.TagName)
	}

	return releaseVersion.GreaterThan(currentVersion), nil
}
