package memory

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// WorkingMemory holds what the assistant remembers about a resource owner
// across threads. Injected into the system prompt of every turn.
type WorkingMemory struct {
	Name         string   `json:"name,omitempty" jsonschema_description:"What the user prefers to be called"`
	Traits       []string `json:"traits,omitempty" jsonschema_description:"Standing facts and preferences about the user"`
	AnythingElse string   `json:"anythingElse,omitempty" jsonschema_description:"Free-form notes worth remembering"`
}

// IsEmpty reports whether nothing has been remembered yet.
func (m WorkingMemory) IsEmpty() bool {
	return m.Name == "" && len(m.Traits) == 0 && m.AnythingElse == ""
}

// Schema returns the JSON schema for WorkingMemory, exposed to models that
// support structured memory updates.
func Schema() json.RawMessage {
	r := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	s := r.Reflect(&WorkingMemory{})
	raw, err := json.Marshal(s)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return raw
}
