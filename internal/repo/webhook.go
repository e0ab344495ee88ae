package repo

import (
	"context"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// ExecutionRequest asks the remediation runner to carry out an action.
type ExecutionRequest struct {
	IncidentID string                   `json:"incident_id"`
	Service    string                   `json:"service"`
	Region     string                   `json:"region,omitempty"`
	Action     models.RemediationAction `json:"action"`
	Metadata   map[string]any           `json:"metadata,omitempty"`
}

// ExecutionReceipt is the runner's acknowledgement.
type ExecutionReceipt struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WebhookExecutor posts auto-executable remediations to an external runner.
type WebhookExecutor struct {
	endpoint jsonEndpoint
}

// NewWebhookExecutor constructs an executor targeting url.
func NewWebhookExecutor(url string, timeout time.Duration) *WebhookExecutor {
	return &WebhookExecutor{endpoint: newJSONEndpoint(url, timeout)}
}

// Enabled reports whether a webhook URL is configured.
func (w *WebhookExecutor) Enabled() bool {
	return w != nil && w.endpoint.baseURL != ""
}

// Execute posts req and returns the runner's receipt.
func (w *WebhookExecutor) Execute(ctx context.Context, req ExecutionRequest) (ExecutionReceipt, error) {
	if !w.Enabled() {
		return ExecutionReceipt{}, utils.NewAppError("webhook.Execute", "remediation webhook not configured", nil)
	}
	var receipt ExecutionReceipt
	if err := w.endpoint.postJSON(ctx, w.endpoint.baseURL, req, &receipt); err != nil {
		return ExecutionReceipt{}, utils.NewAppError("webhook.Execute", "remediation webhook failed", err)
	}
	if receipt.Status == "" {
		receipt.Status = "accepted"
	}
	return receipt, nil
}
