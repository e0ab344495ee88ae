package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

var investigateCmd = &cobra.Command{
	Use:   "investigate <event-file>",
	Short: "Investigate incidents from a JSON or YAML file",
	Long: `Run investigations in-process. The file holds one incident event or a list
of events; lists run concurrently up to workers.maxConcurrent. Use "-" to
read from stdin. Results are stored and printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runInvestigate,
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	incidents, err := readIncidents(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if len(incidents) == 1 {
		result, err := a.service.Investigate(ctx, incidents[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	}

	results := a.runner.RunBatch(ctx, incidents)
	for _, r := range results {
		if err := a.store.SaveResult(ctx, r); err != nil {
			logger.Warn("failed to persist result", slog.String("incident_id", r.IncidentID), slog.Any("error", err))
		}
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

// readIncidents decodes one event or a list of events. YAML is a superset of
// JSON, so both formats go through the YAML decoder.
func readIncidents(stdin io.Reader, path string) ([]models.IncidentEvent, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return decodeIncidents(data)
}

func decodeIncidents(data []byte) ([]models.IncidentEvent, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	// Round-trip through JSON so nested YAML maps become map[string]any.
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	var generic any
	if err := json.Unmarshal(encoded, &generic); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	var docs []any
	switch v := generic.(type) {
	case map[string]any:
		docs = []any{v}
	case []any:
		docs = v
	default:
		return nil, fmt.Errorf("events file must hold an object or a list of objects")
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("events file is empty")
	}

	incidents := make([]models.IncidentEvent, 0, len(docs))
	for i, d := range docs {
		m, ok := d.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("event %d: not an object", i)
		}
		s, err := structpb.NewStruct(m)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		incident, err := api.IncidentFromStruct(s)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		incidents = append(incidents, incident)
	}
	return incidents, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
