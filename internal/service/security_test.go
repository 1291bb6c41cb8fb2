package service

import (
	"testing"

	"github.com/credentia/certportal-backend/internal/model"
)

func findingFor(findings []SecurityFinding, eventType model.SecurityEventType) *SecurityFinding {
	for i := range findings {
		if findings[i].EventType == eventType {
			return &findings[i]
		}
	}
	return nil
}

func TestEvaluateHeartbeatThresholds(t *testing.T) {
	tests := []struct {
		name            string
		telemetry       model.HeartbeatRequest
		wantForceSubmit bool
	}{
		{"clean heartbeat", model.HeartbeatRequest{}, false},
		{"tab switches below threshold", model.HeartbeatRequest{TabSwitchCount: 7}, false},
		{"tab switches at threshold", model.HeartbeatRequest{TabSwitchCount: 8}, true},
		{"fullscreen exits below threshold", model.HeartbeatRequest{FullscreenExitCount: 4}, false},
		{"fullscreen exits at threshold", model.HeartbeatRequest{FullscreenExitCount: 5}, true},
		{"copy paste below threshold", model.HeartbeatRequest{CopyPasteCount: 3}, false},
		{"copy paste at threshold", model.HeartbeatRequest{CopyPasteCount: 4}, true},
		{"devtools always forces", model.HeartbeatRequest{DevToolsOpen: true}, true},
		{"multiple faces always forces", model.HeartbeatRequest{MultipleFaceDetected: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			force, _ := EvaluateHeartbeat(tt.telemetry)
			if force != tt.wantForceSubmit {
				t.Errorf("forceSubmit = %v, want %v", force, tt.wantForceSubmit)
			}
		})
	}
}

func TestEvaluateHeartbeatRiskScores(t *testing.T) {
	tests := []struct {
		name      string
		telemetry model.HeartbeatRequest
		eventType model.SecurityEventType
		wantRisk  int
	}{
		{"tab switch scales with count", model.HeartbeatRequest{TabSwitchCount: 4}, model.EventTabSwitch, 3},
		{"tab switch capped at 6", model.HeartbeatRequest{TabSwitchCount: 20}, model.EventTabSwitch, 6},
		{"fullscreen exit scales", model.HeartbeatRequest{FullscreenExitCount: 2}, model.EventFullscreenExit, 3},
		{"fullscreen exit capped at 8", model.HeartbeatRequest{FullscreenExitCount: 30}, model.EventFullscreenExit, 8},
		{"copy paste scales", model.HeartbeatRequest{CopyPasteCount: 2}, model.EventCopyPaste, 3},
		{"copy paste capped at 7", model.HeartbeatRequest{CopyPasteCount: 15}, model.EventCopyPaste, 7},
		{"devtools is max risk", model.HeartbeatRequest{DevToolsOpen: true}, model.EventDevToolsOpen, 10},
		{"multiple faces is max risk", model.HeartbeatRequest{MultipleFaceDetected: true}, model.EventMultipleFaceDetected, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, findings := EvaluateHeartbeat(tt.telemetry)
			f := findingFor(findings, tt.eventType)
			if f == nil {
				t.Fatalf("no finding of type %s", tt.eventType)
			}
			if f.RiskScore != tt.wantRisk {
				t.Errorf("RiskScore = %d, want %d", f.RiskScore, tt.wantRisk)
			}
		})
	}
}

func TestEvaluateHeartbeatZeroCountersProduceNoFindings(t *testing.T) {
	_, findings := EvaluateHeartbeat(model.HeartbeatRequest{})
	if len(findings) != 0 {
		t.Errorf("got %d findings for a clean heartbeat, want 0", len(findings))
	}
}

func TestFingerprintFindings(t *testing.T) {
	tests := []struct {
		name       string
		attemptIP  string
		attemptUA  string
		clientIP   string
		clientUA   string
		wantEvents []model.SecurityEventType
	}{
		{"matching fingerprint", "10.0.0.1", "agent-a", "10.0.0.1", "agent-a", nil},
		{"ip changed", "10.0.0.1", "agent-a", "10.0.0.2", "agent-a",
			[]model.SecurityEventType{model.EventIPMismatch}},
		{"user agent changed", "10.0.0.1", "agent-a", "10.0.0.1", "agent-b",
			[]model.SecurityEventType{model.EventUserAgentMismatch}},
		{"both changed", "10.0.0.1", "agent-a", "10.0.0.2", "agent-b",
			[]model.SecurityEventType{model.EventIPMismatch, model.EventUserAgentMismatch}},
		{"missing baseline skipped", "", "", "10.0.0.2", "agent-b", nil},
		{"missing client values skipped", "10.0.0.1", "agent-a", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := FingerprintFindings(tt.attemptIP, tt.attemptUA, tt.clientIP, tt.clientUA)
			if len(findings) != len(tt.wantEvents) {
				t.Fatalf("got %d findings, want %d", len(findings), len(tt.wantEvents))
			}
			for i, want := range tt.wantEvents {
				if findings[i].EventType != want {
					t.Errorf("finding[%d] = %s, want %s", i, findings[i].EventType, want)
				}
				if findings[i].RiskScore != 8 {
					t.Errorf("mismatch risk = %d, want 8", findings[i].RiskScore)
				}
			}
		})
	}
}

func TestIsSevereEvent(t *testing.T) {
	severe := []model.SecurityEventType{
		model.EventDevToolsOpen,
		model.EventMultipleFaceDetected,
		model.EventIPMismatch,
		model.EventUserAgentMismatch,
	}
	for _, e := range severe {
		if !IsSevereEvent(e) {
			t.Errorf("IsSevereEvent(%s) = false, want true", e)
		}
	}

	mild := []model.SecurityEventType{
		model.EventTabSwitch,
		model.EventFullscreenExit,
		model.EventCopyPaste,
		model.EventAutoSubmit,
	}
	for _, e := range mild {
		if IsSevereEvent(e) {
			t.Errorf("IsSevereEvent(%s) = true, want false", e)
		}
	}
}

func TestDefaultRiskScore(t *testing.T) {
	if got := DefaultRiskScore(model.EventDevToolsOpen); got != 10 {
		t.Errorf("severe default = %d, want 10", got)
	}
	if got := DefaultRiskScore(model.EventTabSwitch); got != 5 {
		t.Errorf("counter default = %d, want 5", got)
	}
	if got := DefaultRiskScore(model.EventAutoSubmit); got != 3 {
		t.Errorf("other default = %d, want 3", got)
	}
}
