package offline

import (
	"testing"
	"time"
)

func TestActionValidate(t *testing.T) {
	payload := map[string]interface{}{"titre": "Match"}

	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"valid create", NewAction(KindCreate, "", "", payload), false},
		{"create without payload", NewAction(KindCreate, "", "", nil), true},
		{"create with event id", NewAction(KindCreate, "e1", "", payload), true},
		{"valid join", NewAction(KindJoin, "e1", "u1", nil), false},
		{"join without user", NewAction(KindJoin, "e1", "", nil), true},
		{"join without event", NewAction(KindJoin, "", "u1", nil), true},
		{"valid leave", NewAction(KindLeave, "e1", "u1", nil), false},
		{"leave without user", NewAction(KindLeave, "e1", "", nil), true},
		{"valid update", NewAction(KindUpdate, "e1", "", payload), false},
		{"update without event", NewAction(KindUpdate, "", "", payload), true},
		{"update without payload", NewAction(KindUpdate, "e1", "", nil), true},
		{"valid delete", NewAction(KindDelete, "e1", "", nil), false},
		{"delete without event", NewAction(KindDelete, "", "", nil), true},
		{"unknown kind", NewAction(Kind("bogus"), "e1", "", nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestActionValidateRejectsFutureSchema(t *testing.T) {
	a := NewAction(KindDelete, "e1", "", nil)
	a.SchemaVersion = SchemaVersion + 1

	if a.Validate() == nil {
		t.Error("expected future schema version to be rejected")
	}
}

func TestActionValidateAcceptsLegacySchema(t *testing.T) {
	a := NewAction(KindDelete, "e1", "", nil)
	a.SchemaVersion = 0

	if err := a.Validate(); err != nil {
		t.Errorf("legacy schema version should be accepted, got %v", err)
	}
}

func TestActionOlderThan(t *testing.T) {
	now := time.Now()
	a := NewAction(KindJoin, "e1", "u1", nil)
	a.EnqueuedAt = now.Add(-25 * time.Hour)

	if !a.OlderThan(now, 24*time.Hour) {
		t.Error("25h old action should be older than the 24h window")
	}
	if a.OlderThan(now, 48*time.Hour) {
		t.Error("25h old action should be within the 48h window")
	}
}

func TestNewActionStampsDefaults(t *testing.T) {
	before := time.Now()
	a := NewAction(KindJoin, "e1", "u1", nil)

	if a.ID == "" {
		t.Error("expected a generated ID")
	}
	if a.SchemaVersion != SchemaVersion {
		t.Errorf("schema version = %d, want %d", a.SchemaVersion, SchemaVersion)
	}
	if a.EnqueuedAt.Before(before) {
		t.Error("enqueued timestamp should not predate construction")
	}
	if a.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", a.Attempts)
	}
}
