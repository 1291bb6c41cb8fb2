package service

import (
	"encoding/json"

	"github.com/credentia/certportal-backend/internal/model"
)

// Auto-submit thresholds for heartbeat telemetry counters.
const (
	TabSwitchAutoSubmitThreshold      = 8
	FullscreenExitAutoSubmitThreshold = 5
	CopyPasteAutoSubmitThreshold      = 4
)

// SecurityFinding is one event the evaluator wants appended to the
// attempt's security log.
type SecurityFinding struct {
	EventType model.SecurityEventType
	RiskScore int
	EventData map[string]any
}

// EvaluateHeartbeat inspects telemetry counters and decides whether the
// attempt must be force-submitted. Each non-zero counter yields its own
// finding with a count-scaled, capped risk score.
func EvaluateHeartbeat(t model.HeartbeatRequest) (forceSubmit bool, findings []SecurityFinding) {
	if t.TabSwitchCount > 0 {
		findings = append(findings, SecurityFinding{
			EventType: model.EventTabSwitch,
			RiskScore: capRisk(t.TabSwitchCount/2+1, 6),
			EventData: map[string]any{"tab_switch_count": t.TabSwitchCount},
		})
	}

	if t.FullscreenExitCount > 0 {
		findings = append(findings, SecurityFinding{
			EventType: model.EventFullscreenExit,
			RiskScore: capRisk(t.FullscreenExitCount/2+2, 8),
			EventData: map[string]any{"fullscreen_exit_count": t.FullscreenExitCount},
		})
	}

	if t.CopyPasteCount > 0 {
		findings = append(findings, SecurityFinding{
			EventType: model.EventCopyPaste,
			RiskScore: capRisk(t.CopyPasteCount/2+2, 7),
			EventData: map[string]any{"copy_paste_count": t.CopyPasteCount},
		})
	}

	if t.DevToolsOpen {
		findings = append(findings, SecurityFinding{
			EventType: model.EventDevToolsOpen,
			RiskScore: 10,
			EventData: map[string]any{"devtools_open": true},
		})
	}

	if t.MultipleFaceDetected {
		findings = append(findings, SecurityFinding{
			EventType: model.EventMultipleFaceDetected,
			RiskScore: 10,
			EventData: map[string]any{"multiple_face_detected": true},
		})
	}

	forceSubmit = t.DevToolsOpen ||
		t.MultipleFaceDetected ||
		t.TabSwitchCount >= TabSwitchAutoSubmitThreshold ||
		t.FullscreenExitCount >= FullscreenExitAutoSubmitThreshold ||
		t.CopyPasteCount >= CopyPasteAutoSubmitThreshold

	return forceSubmit, findings
}

// FingerprintFindings compares the attempt's start-time fingerprint against
// the current client context. A mismatch is logged (risk 8) but does not by
// itself force submission when surfaced through the heartbeat path.
func FingerprintFindings(attemptIP, attemptUA, clientIP, clientUA string) []SecurityFinding {
	var findings []SecurityFinding

	if attemptIP != "" && clientIP != "" && attemptIP != clientIP {
		findings = append(findings, SecurityFinding{
			EventType: model.EventIPMismatch,
			RiskScore: 8,
			EventData: map[string]any{"expected_ip": attemptIP, "current_ip": clientIP},
		})
	}

	if attemptUA != "" && clientUA != "" && attemptUA != clientUA {
		findings = append(findings, SecurityFinding{
			EventType: model.EventUserAgentMismatch,
			RiskScore: 8,
			EventData: map[string]any{"expected_user_agent": attemptUA, "current_user_agent": clientUA},
		})
	}

	return findings
}

// IsSevereEvent reports whether a discretely reported event type forces an
// immediate auto-submit of an in-progress attempt.
func IsSevereEvent(t model.SecurityEventType) bool {
	switch t {
	case model.EventDevToolsOpen,
		model.EventMultipleFaceDetected,
		model.EventIPMismatch,
		model.EventUserAgentMismatch:
		return true
	}
	return false
}

// DefaultRiskScore is used when a reported event carries no caller-supplied
// risk score.
func DefaultRiskScore(t model.SecurityEventType) int {
	if IsSevereEvent(t) {
		return 10
	}
	switch t {
	case model.EventTabSwitch, model.EventFullscreenExit, model.EventCopyPaste:
		return 5
	}
	return 3
}

func capRisk(score, cap int) int {
	if score > cap {
		return cap
	}
	return score
}

func marshalEventData(data map[string]any) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return raw
}
