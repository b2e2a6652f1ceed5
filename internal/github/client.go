package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"
	"github.com/cli/go-gh/v2/pkg/auth"
	"github.com/cli/go-gh/v2/pkg/repository"
)

// ErrNoToken is returned when no credential could be found for the host.
var ErrNoToken = errors.New("no GitHub token found (set GITHUB_TOKEN or run 'gh auth login')")

const (
	apiVersion = "2022-11-28"
	// pageSize is the largest page the list endpoints accept.
	pageSize = 100
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Repo is "owner/name" or "host/owner/name".
	Repo string
	// Host overrides the host parsed from Repo.
	Host      string
	AuthToken string
	// Timeout bounds each individual HTTP request.
	Timeout time.Duration
	Retry   RetryConfig
	// Transport is the base round tripper under the retry layer.
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// Client talks to the GitHub REST API for a single repository.
type Client struct {
	rest  *api.RESTClient
	owner string
	repo  string
}

// ListRunsOptions selects one page of workflow runs.
type ListRunsOptions struct {
	// Workflow is a workflow file name or id; empty lists runs of every workflow.
	Workflow string
	Status   RunStatus
	Page     int
	PerPage  int
}

// NewClient creates a REST client bound to opts.Repo.
func NewClient(opts ClientOptions) (*Client, error) {
	repo, err := repository.Parse(opts.Repo)
	if err != nil {
		return nil, fmt.Errorf("invalid repository %q: %w", opts.Repo, err)
	}

	host := opts.Host
	if host == "" {
		host = repo.Host
	}

	token := opts.AuthToken
	if token == "" {
		token, _ = auth.TokenForHost(host)
	}
	if token == "" {
		return nil, ErrNoToken
	}

	rest, err := api.NewRESTClient(api.ClientOptions{
		Host:      host,
		AuthToken: token,
		Timeout:   opts.Timeout,
		Transport: NewRetryTransport(opts.Transport, opts.Retry, opts.Logger),
		Headers: map[string]string{
			"X-GitHub-Api-Version": apiVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create REST client: %w", err)
	}

	return &Client{rest: rest, owner: repo.Owner, repo: repo.Name}, nil
}

// Owner returns the repository owner.
func (c *Client) Owner() string { return c.owner }

// Repo returns the repository name.
func (c *Client) Repo() string { return c.repo }

// ListWorkflowRuns fetches one page of workflow runs.
func (c *Client) ListWorkflowRuns(ctx context.Context, opts ListRunsOptions) (*RunsResponse, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", string(opts.Status))
	}
	if opts.PerPage > 0 {
		query.Set("per_page", strconv.Itoa(opts.PerPage))
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}

	path := fmt.Sprintf("repos/%s/%s/actions/runs", c.owner, c.repo)
	if opts.Workflow != "" {
		path = fmt.Sprintf("repos/%s/%s/actions/workflows/%s/runs", c.owner, c.repo, url.PathEscape(opts.Workflow))
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp RunsResponse
	if err := c.rest.DoWithContext(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list workflow runs (status=%s page=%d): %w", opts.Status, opts.Page, err)
	}
	return &resp, nil
}

// GetWorkflowRun fetches a single workflow run.
func (c *Client) GetWorkflowRun(ctx context.Context, runID int64) (*WorkflowRun, error) {
	path := fmt.Sprintf("repos/%s/%s/actions/runs/%d", c.owner, c.repo, runID)
	var run WorkflowRun
	if err := c.rest.DoWithContext(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, fmt.Errorf("failed to get workflow run %d: %w", runID, err)
	}
	return &run, nil
}

// GetWorkflowRunJobs fetches every job of a workflow run.
func (c *Client) GetWorkflowRunJobs(ctx context.Context, runID int64) ([]Job, error) {
	var jobs []Job
	for page := 1; ; page++ {
		path := pagedPath(fmt.Sprintf("repos/%s/%s/actions/runs/%d/jobs", c.owner, c.repo, runID), page)

		var resp JobsResponse
		if err := c.rest.DoWithContext(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list jobs for run %d: %w", runID, err)
		}
		jobs = append(jobs, resp.Jobs...)
		if len(resp.Jobs) < pageSize {
			return jobs, nil
		}
	}
}

// CancelWorkflowRun asks the provider to cancel a run.
func (c *Client) CancelWorkflowRun(ctx context.Context, runID int64) error {
	path := fmt.Sprintf("repos/%s/%s/actions/runs/%d/cancel", c.owner, c.repo, runID)
	if err := c.post(ctx, path); err != nil {
		return fmt.Errorf("failed to cancel run %d: %w", runID, err)
	}
	return nil
}

// RerunFailedJobs asks the provider to re-run the failed jobs of a run.
func (c *Client) RerunFailedJobs(ctx context.Context, runID int64) error {
	path := fmt.Sprintf("repos/%s/%s/actions/runs/%d/rerun-failed-jobs", c.owner, c.repo, runID)
	if err := c.post(ctx, path); err != nil {
		return fmt.Errorf("failed to rerun failed jobs of run %d: %w", runID, err)
	}
	return nil
}

// ListCheckRuns lists every check run of the check suite at checkSuiteURL.
func (c *Client) ListCheckRuns(ctx context.Context, checkSuiteURL string) ([]CheckRun, error) {
	if checkSuiteURL == "" {
		return nil, errors.New("run has no check suite URL")
	}
	var checkRuns []CheckRun
	for page := 1; ; page++ {
		var resp CheckRunsResponse
		if err := c.rest.DoWithContext(ctx, http.MethodGet, pagedPath(checkSuiteURL+"/check-runs", page), nil, &resp); err != nil {
			return nil, fmt.Errorf("failed to list check runs (page=%d): %w", page, err)
		}
		checkRuns = append(checkRuns, resp.CheckRuns...)
		if len(resp.CheckRuns) < pageSize {
			return checkRuns, nil
		}
	}
}

// ListAnnotations lists every annotation at annotationsURL.
func (c *Client) ListAnnotations(ctx context.Context, annotationsURL string) ([]Annotation, error) {
	var annotations []Annotation
	for page := 1; ; page++ {
		var batch []Annotation
		if err := c.rest.DoWithContext(ctx, http.MethodGet, pagedPath(annotationsURL, page), nil, &batch); err != nil {
			return nil, fmt.Errorf("failed to list annotations (page=%d): %w", page, err)
		}
		annotations = append(annotations, batch...)
		if len(batch) < pageSize {
			return annotations, nil
		}
	}
}

// pagedPath appends per_page and page to path, which may be relative or an
// absolute API URL.
func pagedPath(path string, page int) string {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(pageSize))
	query.Set("page", strconv.Itoa(page))

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + query.Encode()
}

// post issues a body-less POST whose response body is ignored. The action
// endpoints answer 202 with an empty or trivial body.
func (c *Client) post(ctx context.Context, path string) error {
	resp, err := c.rest.RequestWithContext(ctx, http.MethodPost, path, nil)
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	return err
}
