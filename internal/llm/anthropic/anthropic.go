// Package anthropic implements internal/llm.Client over
// github.com/anthropics/anthropic-sdk-go, using an env-key fallback and a
// bounded-retry call loop.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"dbxmigrate/internal/llm"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when no key is supplied and
// ANTHROPIC_API_KEY is unset.
var ErrAPIKeyRequired = errors.New("anthropic: API key required")

// Client wraps the Anthropic SDK to implement llm.Client.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	maxRetries     int
	initialBackoff time.Duration
}

// New constructs a Client. apiKey takes precedence; otherwise
// ANTHROPIC_API_KEY from the environment is used.
func New(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          anthropic.Model(model),
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// ProposeMapping asks the model for a table mapping and parses its JSON
// response into an llm.MappingResponse. Failed API calls are retried with
// exponential backoff up to maxRetries attempts; the returned mapping itself
// is not validated here (internal/propose checks it against canon's target
// grammar and re-asks with feedback on violation).
func (c *Client) ProposeMapping(ctx context.Context, req llm.MappingRequest) (*llm.MappingResponse, error) {
	prompt := buildPrompt(req)

	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("anthropic: propose mapping: %w", err)
	}

	var resp llm.MappingResponse
	if err := json.Unmarshal([]byte(extractJSON(text)), &resp); err != nil {
		return nil, fmt.Errorf("anthropic: parse mapping response: %w", err)
	}
	return &resp, nil
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	backoff := c.initialBackoff
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: 1024,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if err == nil {
			return concatText(msg), nil
		}

		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return "", fmt.Errorf("exhausted %d retries: %w", c.maxRetries, lastErr)
}

func concatText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String()
}

func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func buildPrompt(req llm.MappingRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Propose a MySQL column mapping for table %q.\n", req.SourceTable)
	sb.WriteString("Respond with a single JSON object: {\"targetTable\":string,\"columns\":[{\"source\":string,\"target\":string,\"targetType\":string,\"transformHint\":string}]}.\n")
	sb.WriteString("Columns:\n")
	for _, col := range req.Columns {
		fmt.Fprintf(&sb, "- %s (raw type %s, canonical %s, nullable=%v, role=%s)\n",
			col.Name, col.SourceTypeRaw, col.CanonicalType, col.Nullable, col.Role)
	}
	if req.TargetHints != "" {
		fmt.Fprintf(&sb, "Hints: %s\n", req.TargetHints)
	}
	return sb.String()
}
