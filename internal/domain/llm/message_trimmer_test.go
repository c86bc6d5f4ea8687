package llm_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"openchat/server/internal/domain/llm"
)

func TestTrimToFitContextKeepsShortHistories(t *testing.T) {
	messages := []llm.ChatMessage{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: "Hi."},
	}

	result := llm.TrimToFitContext(messages, 128000)
	assert.Equal(t, 0, result.TrimmedCount)
	assert.Equal(t, 2, len(result.Messages))
}

func TestTrimToFitContextRemovesToolResultsFirst(t *testing.T) {
	long := strings.Repeat("x", 4000)
	messages := []llm.ChatMessage{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: long},
		{Role: "assistant", Content: long, ToolCalls: []llm.ToolCall{{ID: "call_1"}}},
		{Role: "tool", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: long},
	}

	result := llm.TrimToFitContext(messages, 4000)
	assert.Greater(t, result.TrimmedCount, 0)

	for _, m := range result.Messages {
		assert.NotEqual(t, "tool", m.Role, "tool results should be trimmed before anything else")
	}
}

func TestTrimToFitContextNeverRemovesUserMessages(t *testing.T) {
	long := strings.Repeat("x", 8000)
	messages := []llm.ChatMessage{
		{Role: "system", Content: "You are helpful."},
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: long},
	}

	result := llm.TrimToFitContext(messages, 2000)

	users := 0
	for _, m := range result.Messages {
		if m.Role == "user" {
			users++
		}
	}
	assert.Equal(t, 2, users)
	assert.Equal(t, "system", result.Messages[0].Role)
}
