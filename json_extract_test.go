package main

import (
	"testing"
)

func TestExtractJsonData(t *testing.T) {
	body := []byte(`{"service":{"name":"api","replicas":3},"tags":["a","b"]}`)

	t.Run("extracts nested field", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), ".service.name", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != `"api"` {
			t.Errorf("expected extracted name, got %q", got)
		}
	})

	t.Run("extracts number", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), ".service.replicas", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "3" {
			t.Errorf("expected 3, got %q", got)
		}
	})

	t.Run("extracts array element", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), ".tags[1]", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != `"b"` {
			t.Errorf("expected second tag, got %q", got)
		}
	})

	t.Run("missing field yields null", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), ".nope", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "null" {
			t.Errorf("expected null for a missing field, got %q", got)
		}
	})

	t.Run("empty expression is a no-op", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), "", body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty result, got %q", got)
		}
	})

	t.Run("non-json body is a no-op", func(t *testing.T) {
		got, err := extractJsonData(t.Context(), ".service", []byte("<html></html>"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty result, got %q", got)
		}
	})

	t.Run("invalid expression errors", func(t *testing.T) {
		if _, err := extractJsonData(t.Context(), ".[broken", body); err == nil {
			t.Error("expected a parse error")
		}
	})
}
