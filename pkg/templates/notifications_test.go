package templates

import (
	"strings"
	"testing"
	"time"
)

func TestNotificationTemplate_CostAlert(t *testing.T) {
	registry := Get()

	data := map[string]interface{}{
		"Message":   "Daily cost \\(150\\.25 USD\\) above threshold \\(100 USD\\)",
		"Severity":  "high",
		"Timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	output, err := registry.Render("notifications/cost_alert", data)
	if err != nil {
		t.Fatalf("Failed to render cost alert template: %v", err)
	}

	if output == "" {
		t.Fatal("Rendered output is empty")
	}

	required := []string{
		"Cost alert",
		"150\\.25 USD",
		"Severity: high",
	}
	for _, fragment := range required {
		if !strings.Contains(output, fragment) {
			t.Errorf("Missing fragment: %s", fragment)
		}
	}
}

func TestNotificationTemplate_CostTrend(t *testing.T) {
	registry := Get()

	data := map[string]interface{}{
		"Message":   "Cost spike detected: today 40 USD vs 10 USD average over the previous 7 days",
		"Severity":  "medium",
		"Timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	output, err := registry.Render("notifications/cost_trend", data)
	if err != nil {
		t.Fatalf("Failed to render cost trend template: %v", err)
	}

	for _, fragment := range []string{"Cost trend", "Cost spike detected", "Severity: medium"} {
		if !strings.Contains(output, fragment) {
			t.Errorf("Missing fragment: %s", fragment)
		}
	}
}

func TestNotificationTemplates_Listed(t *testing.T) {
	registry := Get()

	ids := registry.List()
	listed := make(map[string]bool, len(ids))
	for _, id := range ids {
		listed[id] = true
	}

	for _, id := range []string{"notifications/cost_alert", "notifications/cost_trend"} {
		if !listed[id] {
			t.Errorf("Template %s not loaded from embedded assets", id)
		}
	}
}
