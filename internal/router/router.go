// Package router classifies a proposed remediation into an execution path.
package router

import (
	"strings"
	"sync/atomic"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Router evaluates the execution decision table against the current policy.
// The table order is fixed: AUTO_EXECUTE, then CODE_FIX, then ESCALATE.
type Router struct {
	policy atomic.Pointer[Policy]
}

// New constructs a Router with policy.
func New(policy Policy) *Router {
	r := &Router{}
	r.SetPolicy(policy)
	return r
}

// SetPolicy swaps the active policy. In-flight classifications finish on the old one.
func (r *Router) SetPolicy(policy Policy) {
	p := policy.normalised()
	r.policy.Store(&p)
}

// Policy returns the active policy.
func (r *Router) Policy() Policy {
	return *r.policy.Load()
}

// Classify assigns an execution type and path-specific metadata. Missing or
// malformed inputs never guess: they fall through to ESCALATE.
func (r *Router) Classify(action *models.RemediationAction, diagnosis *models.DiagnosisResult, incident models.IncidentEvent) (models.ExecutionType, map[string]any) {
	policy := r.policy.Load()
	service := strings.TrimSpace(incident.Service)

	if action == nil {
		return escalate(service, "no remediation action was proposed")
	}

	actionType := NormaliseActionType(action.ActionType)
	risk := models.RiskLevel(strings.ToUpper(strings.TrimSpace(string(action.RiskLevel))))
	if service != "" && policy.allowsAction(actionType) && risk == models.RiskLow && action.Reversible {
		region := incident.Region()
		if region == "" {
			region = policy.DefaultRegion
		}
		return models.ExecutionAutoExecute, map[string]any{
			"target_service": service,
			"region":         region,
			"action_type":    actionType,
			"steps":          append([]string{}, action.Steps...),
		}
	}

	if diagnosis == nil {
		return escalate(service, "no diagnosis available to justify a code fix")
	}
	category := normaliseCategory(diagnosis.Category)
	if policy.codeFixCategory(category) {
		if repo, ok := policy.repository(service); ok && service != "" {
			return models.ExecutionCodeFix, map[string]any{
				"repository": repo,
				"service":    service,
				"category":   category,
				"root_cause": diagnosis.RootCause,
				"component":  diagnosis.Component,
			}
		}
		return escalate(service, "category "+category+" needs a code fix but no repository is mapped for service "+quoted(service))
	}

	return escalate(service, escalationReason(service, actionType, risk, action.Reversible, category, policy))
}

func escalate(service, reason string) (models.ExecutionType, map[string]any) {
	return models.ExecutionEscalate, map[string]any{
		"service": service,
		"reason":  reason,
	}
}

func escalationReason(service, actionType string, risk models.RiskLevel, reversible bool, category string, policy *Policy) string {
	var parts []string
	if service == "" {
		parts = append(parts, "incident has no service")
	}
	switch {
	case actionType == "":
		parts = append(parts, "action type is missing")
	case !policy.allowsAction(actionType):
		parts = append(parts, "action "+quoted(actionType)+" is not auto-executable")
	}
	if risk != models.RiskLow {
		if risk == "" {
			risk = "unknown"
		}
		parts = append(parts, "risk is "+string(risk))
	}
	if !reversible {
		parts = append(parts, "action is not reversible")
	}
	if category == "" {
		category = models.CategoryUnknown
	}
	parts = append(parts, "category "+category+" is not a code-fix category")
	return strings.Join(parts, "; ")
}

func quoted(s string) string {
	if s == "" {
		return `""`
	}
	return `"` + s + `"`
}
