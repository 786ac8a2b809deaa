package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"autobot/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a       []float32
		b       []float32
		want    float64
		wantErr bool
	}{
		{name: "Identical", a: []float32{1, 0, 0}, b: []float32{1, 0, 0}, want: 1.0},
		{name: "Orthogonal", a: []float32{1, 0, 0}, b: []float32{0, 1, 0}, want: 0.0},
		{name: "Opposite", a: []float32{1, 0, 0}, b: []float32{-1, 0, 0}, want: -1.0},
		{name: "Zero vector", a: []float32{0, 0, 0}, b: []float32{1, 1, 1}, want: 0.0},
		{name: "Length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d) > 1e-9 {
		t.Errorf("distance of identical vectors = %v, want 0", d)
	}

	d, err = CosineDistance([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-1) > 1e-9 {
		t.Errorf("distance of orthogonal vectors = %v, want 1", d)
	}
}

func TestNewEngine_UnsupportedProvider(t *testing.T) {
	_, err := NewEngine(config.EmbeddingConfig{Provider: "chroma"})
	if err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestOllamaEngine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "embeddinggemma" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	engine, err := NewOllamaEngine(server.URL, "")
	if err != nil {
		t.Fatal(err)
	}

	if engine.Name() != "ollama:embeddinggemma" {
		t.Errorf("Name = %q", engine.Name())
	}

	vec, err := engine.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("vector length = %d", len(vec))
	}

	batch, err := engine.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(batch) != 2 {
		t.Errorf("batch length = %d", len(batch))
	}
}

func TestOllamaEngine_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	engine, _ := NewOllamaEngine(server.URL, "")
	if _, err := engine.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on server failure")
	}
}

func TestGenAIEngine_RequiresKey(t *testing.T) {
	if _, err := NewGenAIEngine("", "", ""); err == nil {
		t.Fatal("expected error without API key")
	}
}
