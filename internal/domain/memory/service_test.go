package memory_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"openchat/server/internal/domain/memory"
)

type fakeRepo struct {
	stored map[string]memory.WorkingMemory
}

func (r *fakeRepo) Get(_ context.Context, resourceOwner string) (memory.WorkingMemory, error) {
	return r.stored[resourceOwner], nil
}

func (r *fakeRepo) Upsert(_ context.Context, resourceOwner string, m memory.WorkingMemory) error {
	r.stored[resourceOwner] = m
	return nil
}

func newService() (*memory.Service, *fakeRepo) {
	repo := &fakeRepo{stored: make(map[string]memory.WorkingMemory)}
	return memory.NewService(repo, zerolog.Nop()), repo
}

func TestPromptContextEmptyMemoryRendersNothing(t *testing.T) {
	svc, _ := newService()

	got, err := svc.PromptContext(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("prompt context: %v", err)
	}
	if got != "" {
		t.Errorf("empty memory should render empty, got %q", got)
	}
}

func TestPromptContextRendersRememberedFacts(t *testing.T) {
	svc, repo := newService()
	repo.stored["owner-1"] = memory.WorkingMemory{
		Name:         "Sam",
		Traits:       []string{"prefers concise answers", "writes Go"},
		AnythingElse: "working on a chat app",
	}

	got, err := svc.PromptContext(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("prompt context: %v", err)
	}
	for _, want := range []string{
		"What you remember about the user:",
		"Sam",
		"prefers concise answers",
		"writes Go",
		"working on a chat app",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered context missing %q:\n%s", want, got)
		}
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	svc, _ := newService()
	want := memory.WorkingMemory{Name: "Sam"}

	if err := svc.Update(context.Background(), "owner-1", want); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := svc.Get(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Sam" {
		t.Errorf("stored name: %q", got.Name)
	}
}

func TestSchemaDescribesAllFields(t *testing.T) {
	raw := string(memory.Schema())
	for _, field := range []string{"name", "traits", "anythingElse"} {
		if !strings.Contains(raw, field) {
			t.Errorf("schema missing field %q", field)
		}
	}
}
