package policy

import (
	"testing"
	"time"
)

func TestExemptions_Defaults(t *testing.T) {
	e := DefaultExemptions()
	if e.SelfID() != DefaultSelfID {
		t.Errorf("expected self id '%s', got '%s'", DefaultSelfID, e.SelfID())
	}
	if e.NeutralID() != DefaultNeutralID {
		t.Errorf("expected neutral id '%s', got '%s'", DefaultNeutralID, e.NeutralID())
	}
}

func TestExemptions_IsExempt(t *testing.T) {
	e := NewExemptions("helpme", "launcher", "com.android.launcher", " ")

	tests := []struct {
		id     string
		exempt bool
	}{
		{"", true},
		{"helpme", true},
		{"launcher", true},
		{"com.android.launcher3", true},
		{"camera", false},
		{SentinelSubject, false},
		{"helpme2", false},
	}

	for _, tt := range tests {
		if got := e.IsExempt(tt.id); got != tt.exempt {
			t.Errorf("IsExempt(%q) = %v, want %v", tt.id, got, tt.exempt)
		}
	}
}

func TestExemptions_SelfIsNotNeutral(t *testing.T) {
	e := NewExemptions("helpme", "launcher")
	if e.IsNeutral("helpme") {
		t.Error("self id must not count as the neutral surface")
	}
	if e.IsSelf("launcher") {
		t.Error("neutral id must not count as self")
	}
}

func TestOverwritePolicy_Deadline(t *testing.T) {
	now := time.Unix(1000, 0)
	prev := now.Add(time.Hour)

	got := OverwritePolicy{}.Deadline(prev, now, time.Minute)
	if !got.Equal(now.Add(time.Minute)) {
		t.Errorf("expected overwrite to ignore previous deadline, got %v", got)
	}
}

func TestExtendPolicy_Deadline(t *testing.T) {
	now := time.Unix(1000, 0)

	if got := (ExtendPolicy{}).Deadline(time.Time{}, now, time.Minute); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("expected fresh block to start at now, got %v", got)
	}
	if got := (ExtendPolicy{}).Deadline(now.Add(time.Hour), now, time.Minute); !got.Equal(now.Add(time.Hour + time.Minute)) {
		t.Errorf("expected active block to be extended, got %v", got)
	}
	if got := (ExtendPolicy{}).Deadline(now.Add(-time.Hour), now, time.Minute); !got.Equal(now.Add(time.Minute)) {
		t.Errorf("expected expired block to restart at now, got %v", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()

	p, err := r.Lookup("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID() != DefaultDurationPolicyID {
		t.Errorf("expected default policy, got '%s'", p.ID())
	}

	if _, err := r.Lookup("extend"); err != nil {
		t.Errorf("expected extend policy to be registered: %v", err)
	}
	if _, err := r.Lookup("max"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestRegistry_List(t *testing.T) {
	ids := NewRegistry().List()
	if len(ids) != 2 || ids[0] != "extend" || ids[1] != "overwrite" {
		t.Errorf("unexpected policy ids: %v", ids)
	}

	custom := NewRegistryWithPolicies(ExtendPolicy{})
	if _, ok := custom.Get("overwrite"); ok {
		t.Error("custom registry should only contain registered policies")
	}
}
