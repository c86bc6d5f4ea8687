package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/llm"
)

const titleInstructions = `Generate a short title for the conversation below. Respond with the title only: no quotes, no trailing punctuation, at most six words.`

const maxTitleLength = 120

// Titler produces thread titles by streaming a summarization completion over
// the opening turn's text. Each incremental snapshot extends the previous one,
// so consumers can render the latest value as it refines.
type Titler struct {
	provider llm.Provider
	modelID  string
	log      zerolog.Logger
}

func NewTitler(provider llm.Provider, modelID string, log zerolog.Logger) *Titler {
	return &Titler{
		provider: provider,
		modelID:  modelID,
		log:      log.With().Str("component", "titler").Logger(),
	}
}

// Summarize streams a title for the given turn text, invoking emit with each
// refined snapshot. The final title is returned after the stream completes.
func (t *Titler) Summarize(ctx context.Context, turnText string, emit func(title string)) (string, error) {
	if strings.TrimSpace(turnText) == "" {
		return "", fmt.Errorf("empty turn text")
	}

	stream, err := t.provider.CreateChatCompletionStream(ctx, llm.ChatCompletionRequest{
		Model: t.modelID,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: titleInstructions},
			{Role: "user", Content: turnText},
		},
		Stream: true,
	})
	if err != nil {
		return "", fmt.Errorf("open title stream: %w", err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("title stream: %w", err)
		}
		for _, choice := range delta.Choices {
			text, ok := choice.Delta.Content.(string)
			if !ok || text == "" {
				continue
			}
			b.WriteString(text)
			if snapshot := cleanTitle(b.String()); snapshot != "" && emit != nil {
				emit(snapshot)
			}
		}
	}

	title := cleanTitle(b.String())
	if title == "" {
		return "", fmt.Errorf("model produced an empty title")
	}
	t.log.Debug().Str("title", title).Msg("title generated")
	return title, nil
}

// cleanTitle strips quoting and whitespace the model tends to wrap titles in.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	if len(s) > maxTitleLength {
		// Back off to a rune boundary so the cut never leaves invalid UTF-8.
		cut := maxTitleLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimSpace(s[:cut])
	}
	return s
}
