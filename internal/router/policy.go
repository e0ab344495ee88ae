package router

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Policy is the data half of the routing decision table.
type Policy struct {
	// AutoExecuteActions are the normalised action types that may run unattended.
	AutoExecuteActions []string `yaml:"autoExecuteActions"`
	// CodeFixCategories are diagnosis categories that warrant a code change.
	CodeFixCategories []string `yaml:"codeFixCategories"`
	// Repositories maps service names to "owner/name" repositories.
	Repositories  map[string]string `yaml:"repositories"`
	DefaultRegion string            `yaml:"defaultRegion"`
}

// DefaultPolicy is used when no policy file is configured.
func DefaultPolicy() Policy {
	return Policy{
		AutoExecuteActions: []string{"restart", "scale", "clear_cache", "reset_connections", "toggle_feature_flag"},
		CodeFixCategories: []string{
			models.CategoryBug,
			models.CategoryLogicError,
			models.CategoryHandling,
			models.CategoryTimeout,
			models.CategoryErrorHandling,
		},
		Repositories: map[string]string{},
	}
}

// LoadPolicy reads a YAML policy. A missing path yields DefaultPolicy; list
// fields omitted from the file keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy.normalised(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return policy.normalised(), nil
		}
		return Policy{}, fmt.Errorf("read routing policy: %w", err)
	}
	return parsePolicy(data)
}

func parsePolicy(data []byte) (Policy, error) {
	policy := DefaultPolicy()
	var file Policy
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Policy{}, fmt.Errorf("parse routing policy: %w", err)
	}
	if len(file.AutoExecuteActions) > 0 {
		policy.AutoExecuteActions = file.AutoExecuteActions
	}
	if len(file.CodeFixCategories) > 0 {
		policy.CodeFixCategories = file.CodeFixCategories
	}
	if file.Repositories != nil {
		policy.Repositories = file.Repositories
	}
	policy.DefaultRegion = file.DefaultRegion
	return policy.normalised(), nil
}

func (p Policy) normalised() Policy {
	out := Policy{DefaultRegion: strings.TrimSpace(p.DefaultRegion), Repositories: make(map[string]string, len(p.Repositories))}
	for _, a := range p.AutoExecuteActions {
		if n := NormaliseActionType(a); n != "" {
			out.AutoExecuteActions = append(out.AutoExecuteActions, n)
		}
	}
	for _, c := range p.CodeFixCategories {
		if n := normaliseCategory(c); n != "" {
			out.CodeFixCategories = append(out.CodeFixCategories, n)
		}
	}
	for svc, repo := range p.Repositories {
		svc, repo = strings.ToLower(strings.TrimSpace(svc)), strings.TrimSpace(repo)
		if svc != "" && repo != "" {
			out.Repositories[svc] = repo
		}
	}
	sort.Strings(out.AutoExecuteActions)
	sort.Strings(out.CodeFixCategories)
	return out
}

func (p Policy) allowsAction(actionType string) bool {
	i := sort.SearchStrings(p.AutoExecuteActions, actionType)
	return i < len(p.AutoExecuteActions) && p.AutoExecuteActions[i] == actionType
}

func (p Policy) codeFixCategory(category string) bool {
	i := sort.SearchStrings(p.CodeFixCategories, category)
	return i < len(p.CodeFixCategories) && p.CodeFixCategories[i] == category
}

func (p Policy) repository(service string) (string, bool) {
	repo, ok := p.Repositories[strings.ToLower(strings.TrimSpace(service))]
	return repo, ok && repo != ""
}

// NormaliseActionType lower-cases an action type and joins words with underscores,
// so "Clear-Cache" and "clear cache" both become "clear_cache".
func NormaliseActionType(actionType string) string {
	s := strings.ToLower(strings.TrimSpace(actionType))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return strings.Trim(s, "_")
}

func normaliseCategory(category string) string {
	s := strings.ToUpper(strings.TrimSpace(category))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
