package vectorstore

import (
	"testing"
)

func TestCollectionName(t *testing.T) {
	got := CollectionName("2b1e0c1a-55aa-4f3e-9a66-0c9f3b1e2d4f")
	want := "workspace_2b1e0c1a-55aa-4f3e-9a66-0c9f3b1e2d4f"
	if got != want {
		t.Errorf("CollectionName() = %s, expected %s", got, want)
	}
}

func TestCleanMetadata(t *testing.T) {
	in := map[string]any{
		"workspace_id": "ws-1",
		"page_number":  7,
		"score":        0.5,
		"indexed":      true,
		"coordinates":  map[string]any{"x0": 1.0, "y0": 2.0},
		"tags":         []any{"a", "b"},
		"missing":      nil,
	}

	out := CleanMetadata(in)

	if _, ok := out["missing"]; ok {
		t.Error("nil values must be dropped")
	}
	if out["workspace_id"] != "ws-1" {
		t.Errorf("unexpected workspace_id %q", out["workspace_id"])
	}
	if out["page_number"] != "7" {
		t.Errorf("unexpected page_number %q", out["page_number"])
	}
	if out["score"] != "0.5" {
		t.Errorf("unexpected score %q", out["score"])
	}
	if out["indexed"] != "true" {
		t.Errorf("unexpected indexed %q", out["indexed"])
	}
	if out["coordinates"] == "" || out["coordinates"][0] != '{' {
		t.Errorf("composite values should be JSON encoded, got %q", out["coordinates"])
	}
	if out["tags"] != `["a","b"]` {
		t.Errorf("unexpected tags %q", out["tags"])
	}
}

func TestSearchCacheKey_Stable(t *testing.T) {
	s := &ChromemStore{}

	k1 := s.searchCacheKey("ws-1", "termination terms", 10, map[string]string{"a": "1", "b": "2"})
	k2 := s.searchCacheKey("ws-1", "termination terms", 10, map[string]string{"b": "2", "a": "1"})
	if k1 != k2 {
		t.Error("cache key should not depend on filter map iteration order")
	}

	k3 := s.searchCacheKey("ws-1", "payment terms", 10, nil)
	if k1 == k3 {
		t.Error("different queries must produce different cache keys")
	}

	k4 := s.searchCacheKey("ws-2", "termination terms", 10, map[string]string{"a": "1", "b": "2"})
	if k1 == k4 {
		t.Error("different workspaces must produce different cache keys")
	}
}
