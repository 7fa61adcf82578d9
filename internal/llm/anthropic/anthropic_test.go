package anthropic

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbxmigrate/internal/llm"
)

func TestNewRequiresAPIKey(t *testing.T) {
	old, had := os.LookupEnv("ANTHROPIC_API_KEY")
	os.Unsetenv("ANTHROPIC_API_KEY")
	defer func() {
		if had {
			os.Setenv("ANTHROPIC_API_KEY", old)
		}
	}()

	_, err := New("", "")
	assert.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestNewFallsBackToDefaultModel(t *testing.T) {
	c, err := New("sk-test", "")
	require.NoError(t, err)
	assert.Equal(t, defaultModel, string(c.model))
}

func TestNewAcceptsExplicitKeyAndModelWhileEnvKeySet(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "sk-env")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	c, err := New("sk-explicit", "custom-model")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", string(c.model))
}

func TestExtractJSONFindsOuterBraces(t *testing.T) {
	in := "here is your answer:\n{\"targetTable\":\"orders\"}\nthanks"
	assert.Equal(t, `{"targetTable":"orders"}`, extractJSON(in))
}

func TestExtractJSONReturnsInputWhenNoBraces(t *testing.T) {
	assert.Equal(t, "no json here", extractJSON("no json here"))
}

func TestBuildPromptIncludesTableAndColumns(t *testing.T) {
	req := llm.MappingRequest{
		SourceTable: "orders",
		Columns: []llm.ColumnDescriptor{
			{Name: "id", SourceTypeRaw: "bigint", CanonicalType: "INT8", Role: "primary_key"},
		},
		TargetHints: "retry: fix types",
	}
	prompt := buildPrompt(req)
	assert.Contains(t, prompt, "orders")
	assert.Contains(t, prompt, "id")
	assert.Contains(t, prompt, "retry: fix types")
}
