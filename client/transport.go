package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"openchat/server/internal/domain/chat"
	"openchat/server/internal/domain/thread"
)

// TurnSubmission is the request body for the streaming chat endpoint.
type TurnSubmission struct {
	ThreadID         string           `json:"threadId"`
	Messages         []thread.Message `json:"messages"`
	Trigger          string           `json:"trigger,omitempty"`
	MessageID        string           `json:"messageId,omitempty"`
	ModelID          string           `json:"modelId,omitempty"`
	WebSearchEnabled bool             `json:"webSearchEnabled,omitempty"`
}

// Transport opens event streams against the chat server.
type Transport struct {
	baseURL    string
	httpClient *http.Client
}

// NewTransport builds a transport for the given server base URL.
func NewTransport(baseURL string, httpClient *http.Client) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Submit POSTs a turn and returns the decoded event stream. A non-2xx
// response means the turn was rejected before streaming began; its JSON error
// body is surfaced as the returned error.
func (t *Transport) Submit(ctx context.Context, sub TurnSubmission) (*EventStream, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit turn: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var payload struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Error != "" {
			return nil, fmt.Errorf("turn rejected (status %d): %s", resp.StatusCode, payload.Error)
		}
		return nil, fmt.Errorf("turn rejected (status %d)", resp.StatusCode)
	}

	return &EventStream{
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// EventStream decodes SSE records into StreamEvents.
type EventStream struct {
	resp   *http.Response
	reader *bufio.Reader
}

// Recv returns the next event. io.EOF signals a clean end of stream.
func (s *EventStream) Recv() (chat.StreamEvent, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return chat.StreamEvent{}, io.EOF
			}
			return chat.StreamEvent{}, fmt.Errorf("read line: %w", err)
		}

		line = strings.TrimSpace(line)

		// The event name is also carried in the JSON payload, so only data
		// lines need decoding.
		if line == "" || strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event: ") {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev chat.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		return ev, nil
	}
}

// Close releases the underlying response body.
func (s *EventStream) Close() error {
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}
