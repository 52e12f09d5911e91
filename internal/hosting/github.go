package hosting

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/branchflow/internal/config"
)

// GitHub implements Provider over the GitHub pull-request API.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub creates a GitHub provider with token authentication.
func NewGitHub(cfg config.GitHubConfig) (*GitHub, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}
	if !cfg.Token.IsSet() {
		return nil, fmt.Errorf("github token not set")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token.Value()})
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base URL %q: %w", cfg.BaseURL, err)
		}
		client.BaseURL = base
	}

	return &GitHub{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
}

// CreateMergeRequest opens a pull request from source into target.
func (g *GitHub) CreateMergeRequest(ctx context.Context, source, target, title, body string) (RequestID, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(source),
		Base:  github.String(target),
		Body:  github.String(body),
	})
	if err != nil {
		return RequestID{}, fmt.Errorf("creating pull request: %w", err)
	}
	return RequestID{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// FindOpen returns the open pull request from source to target, if any.
func (g *GitHub) FindOpen(ctx context.Context, source, target string) (RequestID, bool, error) {
	prs, _, err := g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  g.owner + ":" + source,
		Base:  target,
	})
	if err != nil {
		return RequestID{}, false, fmt.Errorf("listing pull requests: %w", err)
	}
	if len(prs) == 0 {
		return RequestID{}, false, nil
	}
	pr := prs[0]
	return RequestID{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, true, nil
}

// IsMerged reports whether the pull request merged.
func (g *GitHub) IsMerged(ctx context.Context, id RequestID) (bool, error) {
	merged, _, err := g.client.PullRequests.IsMerged(ctx, g.owner, g.repo, id.Number)
	if err != nil {
		return false, fmt.Errorf("checking merge state of %s: %w", id, err)
	}
	return merged, nil
}

// MergeRequestState returns the pull request's lifecycle state.
func (g *GitHub) MergeRequestState(ctx context.Context, id RequestID) (State, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, id.Number)
	if err != nil {
		return "", fmt.Errorf("fetching pull request %s: %w", id, err)
	}
	switch {
	case pr.GetMerged():
		return StateMerged, nil
	case pr.GetState() == "open":
		return StateOpen, nil
	default:
		return StateClosed, nil
	}
}
