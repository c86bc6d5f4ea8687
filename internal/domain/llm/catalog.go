package llm

// Model describes one selectable chat model.
type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Catalog holds the configured model list and the fallback default.
// An unknown model id always resolves to the default: model selection must
// never fail a turn.
type Catalog struct {
	models    []Model
	defaultID string
}

// DefaultModels is the built-in catalog used when none is configured.
var DefaultModels = []Model{
	{ID: "openrouter/openai/gpt-5.2", Name: "GPT-5.2", Provider: "openai"},
	{ID: "openrouter/anthropic/claude-sonnet-4.5", Name: "Claude 4.5 Sonnet", Provider: "anthropic"},
	{ID: "openrouter/google/gemini-3-flash-preview", Name: "Gemini 3 Flash", Provider: "google"},
	{ID: "openrouter/moonshotai/kimi-k2.5", Name: "Kimi K2.5", Provider: "moonshotai"},
}

// NewCatalog builds a catalog. An empty model list falls back to
// DefaultModels; a default id not present in the list falls back to the
// last listed model.
func NewCatalog(models []Model, defaultID string) *Catalog {
	if len(models) == 0 {
		models = DefaultModels
	}
	c := &Catalog{models: models}
	if c.contains(defaultID) {
		c.defaultID = defaultID
	} else {
		c.defaultID = models[len(models)-1].ID
	}
	return c
}

// Models returns the configured model list.
func (c *Catalog) Models() []Model {
	out := make([]Model, len(c.models))
	copy(out, c.models)
	return out
}

// DefaultID returns the fallback model id.
func (c *Catalog) DefaultID() string {
	return c.defaultID
}

// Resolve maps a requested model id onto a known one. Unrecognized or empty
// ids resolve to the default model rather than failing.
func (c *Catalog) Resolve(modelID string) string {
	if c.contains(modelID) {
		return modelID
	}
	return c.defaultID
}

func (c *Catalog) contains(id string) bool {
	if id == "" {
		return false
	}
	for _, m := range c.models {
		if m.ID == id {
			return true
		}
	}
	return false
}
