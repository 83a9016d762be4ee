package agent

import "testing"

func TestParseSafetyMode(t *testing.T) {
	if m, err := ParseSafetyMode("observe"); err != nil || m != SafetyObserve {
		t.Fatalf("ParseSafetyMode(observe) = %v, %v", m, err)
	}
	if m, err := ParseSafetyMode("execute"); err != nil || m != SafetyExecute {
		t.Fatalf("ParseSafetyMode(execute) = %v, %v", m, err)
	}
	if _, err := ParseSafetyMode("yolo"); err == nil {
		t.Fatal("expected error for invalid safety mode")
	}
}

func TestParseApprovalMode(t *testing.T) {
	if m, err := ParseApprovalMode("true"); err != nil || m != ApprovalOn {
		t.Fatalf("ParseApprovalMode(true) = %v, %v", m, err)
	}
	if m, err := ParseApprovalMode("false"); err != nil || m != ApprovalOff {
		t.Fatalf("ParseApprovalMode(false) = %v, %v", m, err)
	}
	if _, err := ParseApprovalMode("on"); err == nil {
		t.Fatal("expected error for non-boolean approval mode")
	}
}
