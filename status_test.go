package offline

import (
	"strings"
	"testing"
)

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name      string
		quality   ConnectionQuality
		pending   int
		syncing   bool
		paused    bool
		wantState StatusState
		wantColor string
	}{
		{"online empty", QualityGood, 0, false, false, StatusOnline, colorOnline},
		{"online with pending", QualityGood, 3, false, false, StatusOnline, colorOnline},
		{"offline", QualityOffline, 5, false, false, StatusOffline, colorOffline},
		{"poor connectivity is still online", QualityPoor, 0, false, false, StatusOnline, colorOnline},
		{"syncing", QualityGood, 5, true, false, StatusSyncing, colorSyncing},
		{"above warning threshold", QualityGood, 51, false, false, StatusWarning, colorWarning},
		{"at warning threshold stays online", QualityGood, 50, false, false, StatusOnline, colorOnline},
		{"breaker engaged", QualityGood, 120, false, true, StatusWarning, colorEmergency},
		{"breaker outranks offline", QualityOffline, 120, false, true, StatusWarning, colorEmergency},
		{"offline outranks syncing", QualityOffline, 5, true, false, StatusOffline, colorOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStatus(tt.quality, tt.pending, tt.syncing, tt.paused, 50)
			if got.State != tt.wantState {
				t.Errorf("state = %s, want %s", got.State, tt.wantState)
			}
			if got.Color != tt.wantColor {
				t.Errorf("color = %s, want %s", got.Color, tt.wantColor)
			}
			if got.Pending != tt.pending {
				t.Errorf("pending = %d, want %d", got.Pending, tt.pending)
			}
		})
	}
}

func TestComputeStatusMessages(t *testing.T) {
	if got := ComputeStatus(QualityGood, 0, false, false, 50); got.Message != "connected" {
		t.Errorf("empty online message = %q", got.Message)
	}

	got := ComputeStatus(QualityGood, 3, false, false, 50)
	if !strings.Contains(got.Message, "3") || !strings.Contains(got.Message, "pending") {
		t.Errorf("pending message should surface the count, got %q", got.Message)
	}

	got = ComputeStatus(QualityOffline, 7, false, false, 50)
	if !strings.Contains(got.Message, "7") || !strings.Contains(got.Message, "sync") {
		t.Errorf("offline message should promise a later sync, got %q", got.Message)
	}
}

func TestComputeStatusIsPure(t *testing.T) {
	a := ComputeStatus(QualityGood, 10, false, false, 50)
	b := ComputeStatus(QualityGood, 10, false, false, 50)
	if a != b {
		t.Errorf("same inputs must yield the same status: %+v vs %+v", a, b)
	}
}
