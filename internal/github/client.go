// internal/github/client.go
package github

import (
	"context"
	"log/slog"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// RemoteRepository is the repository metadata we read from the GitHub API.
type RemoteRepository struct {
	GithubID      int64
	Name          string
	FullName      string
	Description   string
	URL           string
	DefaultBranch string
	Private       bool
	Fork          bool
	Language      string
	StarsCount    int32
	ForksCount    int32
}

// CommitStats carries the line-level stats a push payload does not include.
type CommitStats struct {
	SHA          string
	Additions    int32
	Deletions    int32
	ChangedFiles int32
}

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// SetBaseURL points the client at a different API host. Used by tests.
func (c *Client) SetBaseURL(url string) error {
	ghc, err := github.NewClient(nil).WithEnterpriseURLs(url, url)
	if err != nil {
		return err
	}
	c.gh = ghc
	return nil
}

// ListUserRepositories fetches all repositories visible to the
// authenticated user, most recently updated first. Handles API pagination
// transparently.
func (c *Client) ListUserRepositories(ctx context.Context) ([]RemoteRepository, error) {
	var all []RemoteRepository

	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Sort: "updated",
		ListOptions: github.ListOptions{
			PerPage: 100, // Max per page
		},
	}

	for {
		c.logger.Debug("Fetching repositories page", "page", opts.Page)

		repos, resp, err := c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, err
		}

		for _, repo := range repos {
			all = append(all, toRemoteRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetCommitStats fetches line stats for a single commit.
func (c *Client) GetCommitStats(ctx context.Context, owner, name, sha string) (CommitStats, error) {
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return CommitStats{}, err
	}
	return CommitStats{
		SHA:          commit.GetSHA(),
		Additions:    int32(commit.GetStats().GetAdditions()),
		Deletions:    int32(commit.GetStats().GetDeletions()),
		ChangedFiles: int32(len(commit.Files)),
	}, nil
}

// toRemoteRepository translates a github.Repository object to our internal shape.
func toRemoteRepository(r *github.Repository) RemoteRepository {
	defaultBranch := r.GetDefaultBranch()
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	return RemoteRepository{
		GithubID:      r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		DefaultBranch: defaultBranch,
		Private:       r.GetPrivate(),
		Fork:          r.GetFork(),
		Language:      r.GetLanguage(),
		StarsCount:    int32(r.GetStargazersCount()),
		ForksCount:    int32(r.GetForksCount()),
	}
}
