package logger

import (
	"testing"
	"time"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %s", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %s", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamps enabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}

	cfg = Config{Level: "info", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFields_BuildsMapFromPairs(t *testing.T) {
	m := Fields("guard", "payments", "attempt", 2)

	if m["guard"] != "payments" {
		t.Errorf("expected guard=payments, got %v", m["guard"])
	}
	if m["attempt"] != 2 {
		t.Errorf("expected attempt=2, got %v", m["attempt"])
	}
}

func TestFields_IgnoresDanglingKey(t *testing.T) {
	m := Fields("guard", "payments", "dangling")

	if len(m) != 1 {
		t.Errorf("expected 1 entry, got %d", len(m))
	}
}

func TestTransitionFields(t *testing.T) {
	m := TransitionFields("payments", "closed", "open")

	if m[FieldGuard] != "payments" || m[FieldFromState] != "closed" || m[FieldToState] != "open" {
		t.Errorf("unexpected transition fields: %v", m)
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("probe", 1500*time.Millisecond)

	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}

func TestWithGuard_ReturnsNewLogger(t *testing.T) {
	base := NewDefault("faultkit")
	tagged := base.WithGuard("payments")

	if tagged == base {
		t.Error("WithGuard must return a derived logger")
	}
}

func TestGetGlobalLogger_CreatesDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Error("expected a default global logger")
	}
}
