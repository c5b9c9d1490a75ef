// Package cfg holds the fieldtriage application configuration.
package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	PollSeconds       int
	RunTimeoutSeconds int
	Workers           int

	PortalURL    string
	LayerURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	ObjectIDField string
	NoteField     string
	StatusField   string

	VocabularyFile string

	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL     string
	SlackWebhookURL string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token protecting the run API (empty = unauthenticated)")
	fs.IntVar(&c.PollSeconds, "poll-seconds", 300, "seconds between triage passes (0 = manual trigger only, max 86400)")
	fs.IntVar(&c.RunTimeoutSeconds, "run-timeout-seconds", 600, "deadline for a single triage pass (1..3600)")
	fs.IntVar(&c.Workers, "workers", 4, "max concurrent record classifications per pass (1..64)")
	fs.StringVar(&c.PortalURL, "portal-url", "https://www.arcgis.com", "feature service portal root URL")
	fs.StringVar(&c.LayerURL, "layer-url", "", "REST URL of the survey feature layer (required)")
	fs.StringVar(&c.ClientID, "store-client-id", "", "app client ID for feature store authentication")
	fs.StringVar(&c.ClientSecret, "store-client-secret", "", "app client secret for feature store authentication")
	fs.StringVar(&c.Username, "store-username", "", "username for feature store authentication (fallback)")
	fs.StringVar(&c.Password, "store-password", "", "password for feature store authentication (fallback)")
	fs.StringVar(&c.ObjectIDField, "objectid-field", "objectid", "name of the layer's unique identifier field")
	fs.StringVar(&c.NoteField, "note-field", "note_text", "name of the layer field holding the free-text note")
	fs.StringVar(&c.StatusField, "status-field", "ai_flag", "name of the layer field receiving the triage status")
	fs.StringVar(&c.VocabularyFile, "vocabulary-file", "", "YAML file overriding the emergency keyword vocabulary")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude semantic classifier (empty = keyword stage only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for run reports (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for pass notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Poll interval of 0 disables the scheduler entirely
	if c.PollSeconds < 0 || c.PollSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid POLL_SECONDS %d (must be 0..86400)", c.PollSeconds))
	}

	if c.RunTimeoutSeconds <= 0 || c.RunTimeoutSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid RUN_TIMEOUT_SECONDS %d (must be 1..3600)", c.RunTimeoutSeconds))
	}

	if c.Workers <= 0 || c.Workers > 64 {
		errs = append(errs, fmt.Errorf("invalid WORKERS %d (must be 1..64)", c.Workers))
	}

	// The layer is the system of record; nothing works without it
	if c.LayerURL == "" {
		errs = append(errs, errors.New("LAYER_URL is required"))
	}
	if c.PortalURL == "" {
		errs = append(errs, errors.New("PORTAL_URL is required"))
	}

	if c.ObjectIDField == "" {
		errs = append(errs, errors.New("OBJECTID_FIELD is required"))
	}
	if c.NoteField == "" {
		errs = append(errs, errors.New("NOTE_FIELD is required"))
	}
	if c.StatusField == "" {
		errs = append(errs, errors.New("STATUS_FIELD is required"))
	}

	// Claude API key is optional (the pipeline degrades to keyword-only),
	// but a key without a model is a misconfiguration
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
