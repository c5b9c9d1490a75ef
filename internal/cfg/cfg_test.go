package cfg

import (
	"flag"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		PollSeconds:           300,
		RunTimeoutSeconds:     600,
		Workers:               4,
		PortalURL:             "https://www.arcgis.com",
		LayerURL:              "https://services.example.com/arcgis/rest/services/Survey/FeatureServer/0",
		ObjectIDField:         "objectid",
		NoteField:             "note_text",
		StatusField:           "ai_flag",
		ClaudeAPIKey:          "sk-test-key",
		ClaudeModel:           "claude-sonnet-4-20250514",
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.PollSeconds != 300 {
		t.Errorf("PollSeconds = %d, want 300", c.PollSeconds)
	}
	if c.Workers != 4 {
		t.Errorf("Workers = %d, want 4", c.Workers)
	}
	if c.ObjectIDField != "objectid" {
		t.Errorf("ObjectIDField = %q, want %q", c.ObjectIDField, "objectid")
	}
	if c.StatusField != "ai_flag" {
		t.Errorf("StatusField = %q, want %q", c.StatusField, "ai_flag")
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q, want %q", c.ClaudeModel, "claude-sonnet-4-20250514")
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-poll-seconds", "60",
		"-workers", "8",
		"-layer-url", "https://example.org/FeatureServer/0",
		"-status-field", "triage_status",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if c.PollSeconds != 60 {
		t.Errorf("PollSeconds = %d, want 60", c.PollSeconds)
	}
	if c.Workers != 8 {
		t.Errorf("Workers = %d, want 8", c.Workers)
	}
	if c.LayerURL != "https://example.org/FeatureServer/0" {
		t.Errorf("LayerURL = %q", c.LayerURL)
	}
	if c.StatusField != "triage_status" {
		t.Errorf("StatusField = %q, want %q", c.StatusField, "triage_status")
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	c := validBase()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate_PollDisabledIsValid(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.PollSeconds = 0
	if err := c.Validate(); err != nil {
		t.Errorf("Validate with PollSeconds=0: %v", err)
	}
}

func TestValidate_NoClaudeKeyIsValid(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.ClaudeAPIKey = ""
	c.ClaudeModel = ""
	if err := c.Validate(); err != nil {
		t.Errorf("Validate without claude credentials: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"missing layer url", func(c *Config) { c.LayerURL = "" }, "LAYER_URL"},
		{"missing portal url", func(c *Config) { c.PortalURL = "" }, "PORTAL_URL"},
		{"missing note field", func(c *Config) { c.NoteField = "" }, "NOTE_FIELD"},
		{"missing status field", func(c *Config) { c.StatusField = "" }, "STATUS_FIELD"},
		{"missing objectid field", func(c *Config) { c.ObjectIDField = "" }, "OBJECTID_FIELD"},
		{"negative poll", func(c *Config) { c.PollSeconds = -1 }, "POLL_SECONDS"},
		{"poll too large", func(c *Config) { c.PollSeconds = 90000 }, "POLL_SECONDS"},
		{"zero run timeout", func(c *Config) { c.RunTimeoutSeconds = 0 }, "RUN_TIMEOUT_SECONDS"},
		{"too many workers", func(c *Config) { c.Workers = 100 }, "WORKERS"},
		{"bad port", func(c *Config) { c.APIPort = 70000 }, "HTTP_PORT"},
		{"zero drain", func(c *Config) { c.DrainSeconds = 0 }, "DRAIN_SECONDS"},
		{"budget below drain", func(c *Config) { c.ShutdownBudgetSeconds = 30 }, "SHUTDOWN_BUDGET_SECONDS"},
		{"key without model", func(c *Config) { c.ClaudeModel = "" }, "CLAUDE_MODEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validBase()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := validBase()
	c.LayerURL = ""
	c.Workers = 0

	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "LAYER_URL") || !strings.Contains(msg, "WORKERS") {
		t.Errorf("error %q should mention both LAYER_URL and WORKERS", msg)
	}
}
