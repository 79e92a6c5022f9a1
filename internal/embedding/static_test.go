package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestStaticEmbedder(t *testing.T) {
	ctx := context.Background()
	e, err := NewStaticEmbedder(2, map[string][]float32{"x": {3, 4}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(ctx, "x")
	if err != nil {
		t.Fatal(err)
	}
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("expected normalized [0.6 0.8], got %v", v)
	}
	v[0] = 9
	again, _ := e.Embed(ctx, "x")
	if again[0] != 0.6 {
		t.Error("Embed must return a copy")
	}

	if _, err := e.Embed(ctx, "y"); !errors.Is(err, ErrUnknownText) {
		t.Errorf("expected ErrUnknownText, got %v", err)
	}
	if _, err := e.EmbedBatch(ctx, []string{"x", "y"}); err == nil {
		t.Error("expected batch to fail on unknown text")
	}
}

func TestStaticEmbedder_Fallback(t *testing.T) {
	e, err := NewStaticEmbedder(2, nil, []float32{0, 2})
	if err != nil {
		t.Fatal(err)
	}
	v, err := e.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if v[0] != 0 || v[1] != 1 {
		t.Errorf("fallback = %v", v)
	}
}

func TestStaticEmbedder_Validation(t *testing.T) {
	tests := []struct {
		name     string
		dims     int
		table    map[string][]float32
		fallback []float32
	}{
		{"zero dimensions", 0, nil, nil},
		{"short vector", 3, map[string][]float32{"a": {1, 2}}, nil},
		{"short fallback", 3, nil, []float32{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStaticEmbedder(tt.dims, tt.table, tt.fallback); err == nil {
				t.Error("expected error")
			}
		})
	}
}
