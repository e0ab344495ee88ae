package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// ErrLogQueryDisabled is returned when no log-query service is configured.
var ErrLogQueryDisabled = errors.New("log query service not configured")

// LogQuery is one request to the log-query service.
type LogQuery struct {
	Source string
	Query  string
	Start  time.Time
	End    time.Time
	Limit  int
}

// LogQueryResponse is what the log-query service returned for one query.
type LogQueryResponse struct {
	Records         []map[string]string
	RecordCount     int
	ExecutionTimeMS *float64
}

// LogQueryClient executes log queries against the log-query service.
type LogQueryClient struct {
	endpoint  jsonEndpoint
	queryPath string
	cache     cache.Provider
	cacheTTL  time.Duration
}

// NewLogQueryClient constructs a client. cacheProvider may be nil.
func NewLogQueryClient(baseURL, queryPath string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration) *LogQueryClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &LogQueryClient{
		endpoint:  newJSONEndpoint(baseURL, timeout),
		queryPath: queryPath,
		cache:     cacheProvider,
		cacheTTL:  cacheTTL,
	}
}

// Enabled reports whether a base URL is configured.
func (c *LogQueryClient) Enabled() bool {
	return c != nil && c.endpoint.baseURL != ""
}

// Query runs q. Identical queries over the same window are served from cache.
func (c *LogQueryClient) Query(ctx context.Context, q LogQuery) (LogQueryResponse, error) {
	if !c.Enabled() {
		return LogQueryResponse{}, ErrLogQueryDisabled
	}
	if q.Query == "" {
		return LogQueryResponse{}, utils.NewAppError("logquery.Query", "empty query", nil)
	}

	key := c.cacheKey(q)
	if payload, err := c.cache.Get(ctx, key); err == nil {
		var cached LogQueryResponse
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	}

	payload := map[string]any{
		"source": q.Source,
		"query":  q.Query,
		"start":  q.Start.UTC().Format(time.RFC3339),
		"end":    q.End.UTC().Format(time.RFC3339),
	}
	if q.Limit > 0 {
		payload["limit"] = q.Limit
	}

	var response struct {
		Records         []map[string]any `json:"records"`
		RecordCount     *int             `json:"record_count"`
		ExecutionTimeMS *float64         `json:"execution_time_ms"`
	}
	if err := c.endpoint.postJSON(ctx, c.endpoint.resolvePath(c.queryPath), payload, &response); err != nil {
		return LogQueryResponse{}, utils.NewAppError("logquery.Query", "log query request failed", err)
	}

	out := LogQueryResponse{
		Records:         make([]map[string]string, 0, len(response.Records)),
		ExecutionTimeMS: response.ExecutionTimeMS,
	}
	for _, rec := range response.Records {
		flat := make(map[string]string, len(rec))
		for k, v := range rec {
			flat[k] = fieldText(v)
		}
		out.Records = append(out.Records, flat)
	}
	out.RecordCount = len(out.Records)
	if response.RecordCount != nil {
		out.RecordCount = *response.RecordCount
	}

	if data, err := json.Marshal(out); err == nil {
		_ = c.cache.Set(ctx, key, data, c.cacheTTL)
	}
	return out, nil
}

func (c *LogQueryClient) cacheKey(q LogQuery) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00%d\x00%d", q.Source, q.Query, q.Start.Unix(), q.End.Unix(), q.Limit)
	return "logq:" + hex.EncodeToString(h.Sum(nil))
}

func fieldText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}
