package hosting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/branchflow/internal/config"
)

const azureAPIVersion = "7.0"

// AzureDevOps implements Provider over the Azure DevOps pull-request REST
// API. Azure calls them pull requests too; "completed" status means merged.
type AzureDevOps struct {
	httpClient *http.Client
	baseURL    string
	org        string
	project    string
	repo       string
	token      config.Secret
}

// NewAzureDevOps creates an Azure DevOps provider with PAT authentication.
func NewAzureDevOps(cfg config.AzureDevOpsConfig) (*AzureDevOps, error) {
	if cfg.Organization == "" || cfg.Project == "" || cfg.Repository == "" {
		return nil, fmt.Errorf("azure devops organization, project and repository are required")
	}
	if !cfg.Token.IsSet() {
		return nil, fmt.Errorf("azure devops token not set")
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://dev.azure.com"
	}
	return &AzureDevOps{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(base, "/"),
		org:        cfg.Organization,
		project:    cfg.Project,
		repo:       cfg.Repository,
		token:      cfg.Token,
	}, nil
}

// azurePullRequest is the subset of the PR resource this provider reads.
type azurePullRequest struct {
	PullRequestID int    `json:"pullRequestId"`
	Status        string `json:"status"` // active, completed, abandoned
}

type azurePullRequestList struct {
	Count int                `json:"count"`
	Value []azurePullRequest `json:"value"`
}

// CreateMergeRequest opens a pull request from source into target.
func (a *AzureDevOps) CreateMergeRequest(ctx context.Context, source, target, title, body string) (RequestID, error) {
	payload := map[string]string{
		"sourceRefName": "refs/heads/" + source,
		"targetRefName": "refs/heads/" + target,
		"title":         title,
		"description":   body,
	}
	var pr azurePullRequest
	if err := a.do(ctx, http.MethodPost, a.prCollectionURL(), payload, &pr); err != nil {
		return RequestID{}, fmt.Errorf("creating pull request: %w", err)
	}
	return RequestID{Number: pr.PullRequestID, URL: a.prWebURL(pr.PullRequestID)}, nil
}

// FindOpen returns the active pull request from source to target, if any.
func (a *AzureDevOps) FindOpen(ctx context.Context, source, target string) (RequestID, bool, error) {
	query := url.Values{
		"searchCriteria.sourceRefName": {"refs/heads/" + source},
		"searchCriteria.targetRefName": {"refs/heads/" + target},
		"searchCriteria.status":        {"active"},
	}
	var list azurePullRequestList
	if err := a.do(ctx, http.MethodGet, a.prCollectionURL()+"&"+query.Encode(), nil, &list); err != nil {
		return RequestID{}, false, fmt.Errorf("listing pull requests: %w", err)
	}
	if list.Count == 0 || len(list.Value) == 0 {
		return RequestID{}, false, nil
	}
	pr := list.Value[0]
	return RequestID{Number: pr.PullRequestID, URL: a.prWebURL(pr.PullRequestID)}, true, nil
}

// IsMerged reports whether the pull request completed.
func (a *AzureDevOps) IsMerged(ctx context.Context, id RequestID) (bool, error) {
	state, err := a.MergeRequestState(ctx, id)
	if err != nil {
		return false, err
	}
	return state == StateMerged, nil
}

// MergeRequestState returns the pull request's lifecycle state.
func (a *AzureDevOps) MergeRequestState(ctx context.Context, id RequestID) (State, error) {
	var pr azurePullRequest
	if err := a.do(ctx, http.MethodGet, a.prResourceURL(id.Number), nil, &pr); err != nil {
		return "", fmt.Errorf("fetching pull request %s: %w", id, err)
	}
	switch pr.Status {
	case "completed":
		return StateMerged, nil
	case "active":
		return StateOpen, nil
	default:
		return StateClosed, nil
	}
}

func (a *AzureDevOps) prCollectionURL() string {
	return fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s/pullrequests?api-version=%s",
		a.baseURL, url.PathEscape(a.org), url.PathEscape(a.project), url.PathEscape(a.repo), azureAPIVersion)
}

func (a *AzureDevOps) prResourceURL(number int) string {
	return fmt.Sprintf("%s/%s/%s/_apis/git/repositories/%s/pullrequests/%d?api-version=%s",
		a.baseURL, url.PathEscape(a.org), url.PathEscape(a.project), url.PathEscape(a.repo), number, azureAPIVersion)
}

func (a *AzureDevOps) prWebURL(number int) string {
	return fmt.Sprintf("%s/%s/%s/_git/%s/pullrequest/%d",
		a.baseURL, url.PathEscape(a.org), url.PathEscape(a.project), url.PathEscape(a.repo), number)
}

// do issues one API call with PAT auth and decodes the JSON response.
func (a *AzureDevOps) do(ctx context.Context, method, rawURL string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	pat := base64.StdEncoding.EncodeToString([]byte(":" + a.token.Value()))
	req.Header.Set("Authorization", "Basic "+pat)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling azure devops: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("azure devops returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
