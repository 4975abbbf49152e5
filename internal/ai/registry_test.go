package ai

import (
	"context"
	"testing"
)

type staticProvider struct{ opts Options }

func (p *staticProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.opts.Model, nil
}

func TestRegistry_GetIsCaseInsensitive(t *testing.T) {
	reg := NewRegistry()
	reg.Register(" Fake ", func(ctx context.Context, opts Options) (Provider, error) {
		return &staticProvider{opts: opts}, nil
	})

	p, err := reg.Get(context.Background(), "FAKE", Options{Model: "m1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	out, _ := p.Chat(context.Background(), nil)
	if out != "m1" {
		t.Fatalf("factory did not receive options, got %q", out)
	}

	if _, err := reg.Get(context.Background(), "other", Options{}); err == nil {
		t.Fatal("expected unknown provider error")
	}
	if names := reg.Names(); len(names) != 1 || names[0] != "fake" {
		t.Fatalf("unexpected names %v", names)
	}
}
