package llm

import (
	"encoding/json"
	"unicode/utf8"
)

const (
	// DefaultContextLength is used when model context length is unknown.
	DefaultContextLength = 128000

	// TokenEstimateRatio estimates ~4 characters per token.
	TokenEstimateRatio = 4

	// MinMessagesToKeep ensures we always keep the system prompt plus at
	// least one user message.
	MinMessagesToKeep = 2

	// SafetyMarginRatio reserves space for the response and overhead.
	SafetyMarginRatio = 0.80
)

// EstimateTokenCount provides a rough estimate of token count for a message.
func EstimateTokenCount(content interface{}) int {
	var text string
	switch v := content.(type) {
	case string:
		text = v
	case nil:
		return 0
	default:
		bytes, _ := json.Marshal(v)
		text = string(bytes)
	}
	return utf8.RuneCountInString(text) / TokenEstimateRatio
}

// EstimateMessagesTokenCount estimates total tokens across all messages.
func EstimateMessagesTokenCount(messages []ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += 10 // role and framing overhead
		total += EstimateTokenCount(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += 20
			total += EstimateTokenCount(tc.Function.Name)
			total += EstimateTokenCount(tc.Function.Arguments)
		}
	}
	return total
}

// TrimResult contains the result of trimming a history.
type TrimResult struct {
	Messages        []ChatMessage
	TrimmedCount    int
	EstimatedTokens int
}

// TrimToFitContext removes oldest tool results and assistant messages until
// the history fits within the context limit. Removal priority, oldest first:
// tool results, assistant messages with tool calls, plain assistant messages.
// System prompts and user messages are never removed.
func TrimToFitContext(messages []ChatMessage, contextLength int) TrimResult {
	if contextLength <= 0 {
		contextLength = DefaultContextLength
	}

	maxTokens := int(float64(contextLength) * SafetyMarginRatio)

	currentTokens := EstimateMessagesTokenCount(messages)
	if currentTokens <= maxTokens {
		return TrimResult{Messages: messages, EstimatedTokens: currentTokens}
	}

	result := make([]ChatMessage, len(messages))
	copy(result, messages)
	trimmedCount := 0

	for currentTokens > maxTokens && len(result) > MinMessagesToKeep {
		removedIdx := -1

		for i := 1; i < len(result); i++ {
			if result[i].Role == "tool" {
				removedIdx = i
				break
			}
		}
		if removedIdx == -1 {
			for i := 1; i < len(result); i++ {
				if result[i].Role == "assistant" && len(result[i].ToolCalls) > 0 {
					removedIdx = i
					break
				}
			}
		}
		if removedIdx == -1 {
			for i := 1; i < len(result); i++ {
				if result[i].Role == "assistant" {
					removedIdx = i
					break
				}
			}
		}
		if removedIdx == -1 {
			break
		}

		result = append(result[:removedIdx], result[removedIdx+1:]...)
		trimmedCount++
		currentTokens = EstimateMessagesTokenCount(result)
	}

	return TrimResult{
		Messages:        result,
		TrimmedCount:    trimmedCount,
		EstimatedTokens: currentTokens,
	}
}
