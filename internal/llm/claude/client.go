// Package claude implements the triage.Semantic interface on the Claude
// Messages API.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// responseTokens caps the completion: the decision prompt constrains
	// the model to a single label, so anything longer is waste.
	responseTokens = 16

	// callTimeout bounds one inference call. An unresponsive backend must
	// not stall the whole pass; the record degrades to no semantic signal.
	callTimeout = 30 * time.Second

	emergencyMarker = "EMERGENCY"
	okMarker        = "OK"
)

// systemPrompt is the fixed decision instruction. The closed label set and
// zero temperature keep the stage deterministic for a given note.
const systemPrompt = `You are an emergency triage system. Your task is to identify immediate, ` +
	`life-threatening emergencies OR situations requiring urgent medical attention. ` +
	`Respond with the single word 'EMERGENCY' if the text mentions things like being trapped, ` +
	`fire, serious injury, can't breathe, heart attack, stroke, or a critical need for medical ` +
	`equipment/treatment like dialysis or oxygen. For all other cases, respond with the single word 'OK'.`

// Client classifies note text with one Claude call per invocation.
type Client struct {
	client     anthropic.Client
	model      string
	configured bool
}

// New creates a Claude-backed semantic classifier. An empty API key yields
// an unconfigured client: Configured reports false and Classify never
// issues a call. SDK retries are disabled so one Classify invocation is at
// most one request; replays belong to the next pass. Extra request options
// are for tests (base URL override).
func New(apiKey, model string, opts ...option.RequestOption) *Client {
	c := &Client{
		model:      model,
		configured: apiKey != "" && model != "",
	}
	if c.configured {
		c.client = anthropic.NewClient(append([]option.RequestOption{
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		}, opts...)...)
	}
	return c
}

// Configured reports whether the client has credentials to call the API.
func (c *Client) Configured() bool {
	return c.configured
}

// Classify sends one single-turn request carrying the fixed instruction and
// the raw note text, and maps the returned label to a boolean: a response
// containing the emergency marker is an emergency, one containing OK is a
// negative, anything else is an error. There is no retry; a failed call is
// the caller's signal to degrade.
func (c *Client) Classify(ctx context.Context, text string) (bool, error) {
	if !c.configured {
		return false, fmt.Errorf("claude: no API key configured")
	}
	if strings.TrimSpace(text) == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   responseTokens,
		Temperature: anthropic.Float(0),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return false, fmt.Errorf("claude: message request: %w", err)
	}

	label := labelFromContent(msg.Content)
	switch {
	case label == "":
		return false, fmt.Errorf("claude: empty response from model %s", c.model)
	case strings.Contains(label, emergencyMarker):
		return true, nil
	case strings.Contains(label, okMarker):
		return false, nil
	default:
		// Off-vocabulary answers are unusable, not negatives. The caller
		// records the record as unverified instead of cleared.
		return false, fmt.Errorf("claude: unexpected label %q from model %s", label, c.model)
	}
}

func labelFromContent(content []anthropic.ContentBlockUnion) string {
	var b strings.Builder
	for _, block := range content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.ToUpper(strings.TrimSpace(b.String()))
}
