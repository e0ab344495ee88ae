package repo

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestCreateIssue(t *testing.T) {
	client := NewIssueTrackerClient("https://api.github.example", "secret", []string{"incident"}, time.Second)
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/repos/acme/checkout/issues" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		body := decodeBody(t, req)
		labels, _ := body["labels"].([]any)
		if len(labels) != 2 || labels[0] != "incident" || labels[1] != "bug" {
			t.Fatalf("unexpected labels: %v", body["labels"])
		}
		return jsonResponse(t, http.StatusCreated, map[string]any{"html_url": "https://github.example/acme/checkout/issues/7"}), nil
	}))

	url, err := client.CreateIssue(context.Background(), Issue{Repository: "acme/checkout", Title: "t", Body: "b", Labels: []string{"bug", "incident"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://github.example/acme/checkout/issues/7" {
		t.Fatalf("unexpected url: %s", url)
	}
}

func TestCreateIssueRejectsBadRepository(t *testing.T) {
	client := NewIssueTrackerClient("https://api.github.example", "", nil, time.Second)
	client.endpoint.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	}))
	for _, repo := range []string{"", "acme", "acme/a/b", "/checkout"} {
		if _, err := client.CreateIssue(context.Background(), Issue{Repository: repo}); err == nil {
			t.Fatalf("expected error for %q", repo)
		}
	}
}
