// Command mock-collaborators stands in for the log-query service, the
// remediation webhook and the issue tracker during local development.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

type logQueryRequest struct {
	Source string `json:"source"`
	Query  string `json:"query"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Limit  int    `json:"limit"`
}

type issueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With(slog.String("component", "mock-collaborators"))
	var issueSeq atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/v1/logs/query", func(w http.ResponseWriter, r *http.Request) {
		var req logQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Queries mentioning "fail" simulate a rejected query so degraded
		// analysis can be exercised end to end.
		if strings.Contains(strings.ToLower(req.Query), "fail") {
			http.Error(w, "query rejected", http.StatusBadRequest)
			return
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			end = time.Now().UTC()
		}
		records := sampleRecords(end)
		if req.Limit > 0 && len(records) > req.Limit {
			records = records[:req.Limit]
		}
		writeJSON(w, map[string]any{
			"records":           records,
			"record_count":      len(records),
			"execution_time_ms": 42.0,
		})
	})

	mux.HandleFunc("POST /hooks/remediate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Info("remediation requested", slog.Any("incident_id", req["incident_id"]), slog.Any("action", req["action"]))
		writeJSON(w, map[string]string{"status": "accepted", "message": "queued for execution"})
	})

	mux.HandleFunc("POST /repos/{owner}/{name}/issues", func(w http.ResponseWriter, r *http.Request) {
		var req issueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := issueSeq.Add(1)
		url := fmt.Sprintf("http://localhost:8080/%s/%s/issues/%d", r.PathValue("owner"), r.PathValue("name"), n)
		logger.Info("issue created", slog.String("title", req.Title), slog.Any("labels", req.Labels), slog.String("url", url))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, map[string]any{"number": n, "html_url": url})
	})

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", slog.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
}

// sampleRecords returns a quiet baseline followed by a burst of timeouts in
// the last few minutes before end.
func sampleRecords(end time.Time) []map[string]string {
	var records []map[string]string
	for i := 20; i > 4; i -= 4 {
		records = append(records, map[string]string{
			"@timestamp": end.Add(-time.Duration(i) * time.Minute).Format(time.RFC3339),
			"@message":   "GET /healthz 200 3ms",
		})
	}
	for i := 0; i < 12; i++ {
		records = append(records, map[string]string{
			"@timestamp": end.Add(-3*time.Minute + time.Duration(i)*10*time.Second).Format(time.RFC3339),
			"@message":   fmt.Sprintf("ERROR payment gateway timeout after %dms request_id=%08x", 3000+i*17, 0xbeef00+i),
		})
	}
	return records
}

func writeJSON(w http.ResponseWriter, payload any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("encode error", slog.Any("error", err))
	}
}

func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Duration("duration", time.Since(start)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
