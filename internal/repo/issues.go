package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// Issue is a create-issue request.
type Issue struct {
	// Repository is "owner/name".
	Repository string
	Title      string
	Body       string
	Labels     []string
}

// IssueTrackerClient creates issues through a GitHub-compatible REST API.
type IssueTrackerClient struct {
	endpoint jsonEndpoint
	labels   []string
}

// NewIssueTrackerClient constructs a client. defaultLabels are merged into every issue.
func NewIssueTrackerClient(baseURL, token string, defaultLabels []string, timeout time.Duration) *IssueTrackerClient {
	ep := newJSONEndpoint(baseURL, timeout)
	ep.headers.Set("Accept", "application/vnd.github+json")
	if token != "" {
		ep.headers.Set("Authorization", "Bearer "+token)
	}
	return &IssueTrackerClient{endpoint: ep, labels: defaultLabels}
}

// CreateIssue files the issue and returns its URL.
func (c *IssueTrackerClient) CreateIssue(ctx context.Context, issue Issue) (string, error) {
	if c == nil || c.endpoint.baseURL == "" {
		return "", utils.NewAppError("issues.Create", "issue tracker not configured", nil)
	}
	owner, name, ok := strings.Cut(strings.Trim(issue.Repository, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", utils.NewAppError("issues.Create", fmt.Sprintf("invalid repository %q", issue.Repository), nil)
	}

	payload := map[string]any{
		"title":  issue.Title,
		"body":   issue.Body,
		"labels": mergeLabels(c.labels, issue.Labels),
	}
	var response struct {
		HTMLURL string `json:"html_url"`
		URL     string `json:"url"`
	}
	endpoint := c.endpoint.resolvePath(fmt.Sprintf("/repos/%s/%s/issues", owner, name))
	if err := c.endpoint.postJSON(ctx, endpoint, payload, &response); err != nil {
		return "", utils.NewAppError("issues.Create", "create issue failed", err)
	}
	if response.HTMLURL != "" {
		return response.HTMLURL, nil
	}
	if response.URL != "" {
		return response.URL, nil
	}
	return "", utils.NewAppError("issues.Create", "issue tracker returned no URL", errors.New("empty response"))
}

func mergeLabels(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, l := range append(append([]string{}, base...), extra...) {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
