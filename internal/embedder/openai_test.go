package embedder

import (
	"context"
	"testing"
)

func TestGetModelConfig(t *testing.T) {
	tests := []struct {
		model     string
		dimension int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			cfg := GetModelConfig(tt.model)
			if cfg.Dimension != tt.dimension {
				t.Errorf("expected dimension %d, got %d", tt.dimension, cfg.Dimension)
			}
			if cfg.MaxChars != 32000 {
				t.Errorf("expected 32000 char cap, got %d", cfg.MaxChars)
			}
		})
	}
}

func TestNewOpenAIEmbedder_NoKeyDegrades(t *testing.T) {
	e, err := NewOpenAIEmbedder("")
	if err != nil {
		t.Fatalf("missing api key must not prevent construction: %v", err)
	}

	vec, err := e.Embed(context.Background(), "Confidential information shall not be disclosed.")
	if err != nil {
		t.Fatalf("degraded Embed should not error: %v", err)
	}
	if vec != nil {
		t.Errorf("degraded Embed should return absent embedding, got %d dims", len(vec))
	}

	batch, err := e.EmbedBatch(context.Background(), []string{"first clause", "second clause"})
	if err != nil {
		t.Fatalf("degraded EmbedBatch should not error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(batch))
	}
	for i, v := range batch {
		if v != nil {
			t.Errorf("position %d should be absent", i)
		}
	}
}

func TestEmbed_EmptyTextAbsent(t *testing.T) {
	e, err := NewOpenAIEmbedder("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty and whitespace text never reach the API.
	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(context.Background(), text)
		if err != nil {
			t.Errorf("Embed(%q) unexpected error: %v", text, err)
		}
		if vec != nil {
			t.Errorf("Embed(%q) expected nil vector, got %d dims", text, len(vec))
		}
	}
}

func TestEmbedBatch_AllEmpty(t *testing.T) {
	e, err := NewOpenAIEmbedder("sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := e.EmbedBatch(context.Background(), []string{"", "  ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(result))
	}
	for i, v := range result {
		if v != nil {
			t.Errorf("position %d should be nil", i)
		}
	}
}

func TestEmbedder_Metadata(t *testing.T) {
	e, err := NewOpenAIEmbedder("sk-test", WithModel("text-embedding-3-large"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ModelName() != "text-embedding-3-large" {
		t.Errorf("unexpected model name %s", e.ModelName())
	}
	if e.Dimension() != 3072 {
		t.Errorf("expected dimension 3072, got %d", e.Dimension())
	}
}

func TestToFloat32(t *testing.T) {
	out := toFloat32([]float64{0.1, -0.5, 1.0})
	if len(out) != 3 {
		t.Fatalf("expected 3 values, got %d", len(out))
	}
	if out[2] != 1.0 {
		t.Errorf("expected 1.0, got %f", out[2])
	}
}
