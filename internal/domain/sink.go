package domain

import "context"

// AlertSink delivers fraud alerts and recommendation pushes to a specific
// terminal or basket's live listeners. Fire-and-forget: failures are logged
// by callers, never retried.
type AlertSink interface {
	PushToGroup(ctx context.Context, group string, payload map[string]any) error
}

// Realtime push group names.
func FraudAlertGroup(terminalID string) string {
	return "fraud_alerts_" + terminalID
}

func RecommendationGroup(basketID string) string {
	return "recommendations_" + basketID
}
