package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// Store abstracts persistence for mined signatures.
type Store interface {
	StoreSignatures(ctx context.Context, service string, signatures []Signature) error
}

// Signature is a normalised error-message template and how often it occurred.
type Signature struct {
	Template  string    `json:"template"`
	Count     int       `json:"count"`
	Example   string    `json:"example"`
	FirstSeen time.Time `json:"first_seen,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

// Miner mines frequency-based error signatures from log-query records.
type Miner struct {
	store    Store
	logger   *slog.Logger
	minCount int
	limit    int
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger, minCount: 1, limit: 10}
}

var messageFields = []string{"@message", "message", "msg", "log", "error"}
var timestampFields = []string{"@timestamp", "timestamp", "time", "ts"}

var (
	uuidPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	ipPattern     = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`)
	hexPattern    = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b|\b[0-9a-fA-F]{12,}\b`)
	quotedPattern = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?(?:ms|s|m|h|%)?\b`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// Template reduces a log message to its stable shape by replacing identifiers,
// addresses, quoted values and numbers with placeholders.
func Template(message string) string {
	t := strings.TrimSpace(message)
	t = uuidPattern.ReplaceAllString(t, "<uuid>")
	t = ipPattern.ReplaceAllString(t, "<ip>")
	t = hexPattern.ReplaceAllString(t, "<hex>")
	t = quotedPattern.ReplaceAllString(t, "<str>")
	t = numberPattern.ReplaceAllString(t, "<n>")
	t = spacePattern.ReplaceAllString(t, " ")
	return utils.Truncate(t, 240)
}

// Mine groups records by message template and returns the most frequent
// signatures first. Records without a message field are ignored. A failed
// store write is returned together with the mined signatures.
func (m *Miner) Mine(ctx context.Context, service string, records []map[string]string) ([]Signature, error) {
	if len(records) == 0 {
		return nil, nil
	}

	aggregates := make(map[string]*Signature)
	for _, rec := range records {
		msg := firstField(rec, messageFields)
		if msg == "" {
			continue
		}
		key := Template(msg)
		agg, ok := aggregates[key]
		if !ok {
			agg = &Signature{Template: key, Example: utils.Truncate(msg, 240)}
			aggregates[key] = agg
		}
		agg.Count++
		if ts := firstField(rec, timestampFields); ts != "" {
			if at, err := utils.ParseTimestamp(ts, time.Time{}); err == nil {
				if agg.FirstSeen.IsZero() || at.Before(agg.FirstSeen) {
					agg.FirstSeen = at
				}
				if at.After(agg.LastSeen) {
					agg.LastSeen = at
				}
			}
		}
	}

	signatures := make([]Signature, 0, len(aggregates))
	for _, agg := range aggregates {
		if agg.Count < m.minCount {
			continue
		}
		signatures = append(signatures, *agg)
	}
	sort.Slice(signatures, func(i, j int) bool {
		if signatures[i].Count != signatures[j].Count {
			return signatures[i].Count > signatures[j].Count
		}
		return signatures[i].Template < signatures[j].Template
	})
	if len(signatures) > m.limit {
		signatures = signatures[:m.limit]
	}

	if m.store != nil && len(signatures) > 0 {
		if err := m.store.StoreSignatures(ctx, service, signatures); err != nil {
			return signatures, fmt.Errorf("store signatures for %s: %w", service, err)
		}
		m.logger.Debug("signatures stored", slog.String("service", service), slog.Int("count", len(signatures)))
	}

	return signatures, nil
}

func firstField(rec map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(rec[k]); v != "" {
			return v
		}
	}
	return ""
}
