package main

import (
	"encoding/json"
	"testing"
)

func TestGenerateUsesConfigKeys(t *testing.T) {
	data, err := generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if schema.Title != "DittoVault Configuration" {
		t.Errorf("unexpected title %q", schema.Title)
	}
	for _, key := range []string{"logging", "api", "metrics", "metadata", "content", "chunks", "uploads", "events", "gc"} {
		if _, ok := schema.Properties[key]; !ok {
			t.Errorf("schema missing top-level key %q", key)
		}
	}
}
