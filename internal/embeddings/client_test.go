package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty base URL",
			config:  Config{BaseURL: "", Model: "test-model"},
			wantErr: true,
		},
		{
			name:    "empty model",
			config:  Config{BaseURL: "http://localhost:8080/v1", Model: ""},
			wantErr: true,
		},
		{
			name:    "valid config",
			config:  Config{BaseURL: "http://localhost:8080/v1", Model: "test-model"},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_DefaultDimension(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost/v1", Model: "m"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if client.Dimension() != 768 {
		t.Errorf("Dimension() = %d, want 768", client.Dimension())
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, dimension int) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		BaseURL:   server.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		Dimension: dimension,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestEmbed_Success(t *testing.T) {
	mockEmbedding := []float32{0.1, 0.2, 0.3, 0.4, 0.5}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/embeddings" {
			t.Errorf("expected /embeddings path, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Dimensions != 5 {
			t.Errorf("request dimensions = %d, want 5", req.Dimensions)
		}

		resp := embeddingResponse{}
		resp.Data = append(resp.Data, struct {
			Embedding []float32 `json:"embedding"`
		}{Embedding: mockEmbedding})

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}, 5)

	embedding, err := client.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(embedding) != len(mockEmbedding) {
		t.Fatalf("Embed() returned %d dimensions, want %d", len(embedding), len(mockEmbedding))
	}
	for i, v := range embedding {
		if v != mockEmbedding[i] {
			t.Errorf("embedding[%d] = %v, want %v", i, v, mockEmbedding[i])
		}
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for empty input")
	}, 8)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := client.Embed(context.Background(), text); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Embed(%q) error = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestEmbed_QuotaFallbackDeterministic(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}, 16)

	first, err := client.Embed(context.Background(), "some interesting article")
	if err != nil {
		t.Fatalf("Embed() under quota error = %v, want fallback vector", err)
	}
	if len(first) != 16 {
		t.Fatalf("fallback dimension = %d, want 16", len(first))
	}

	second, err := client.Embed(context.Background(), "some interesting article")
	if err != nil {
		t.Fatalf("Embed() second call error = %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("fallback vector not deterministic at index %d: %v != %v", i, first[i], second[i])
		}
	}
}

func TestEmbed_QuotaFallbackVariesByText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("rate limit"))
	}, 16)

	a, err := client.Embed(context.Background(), "text a")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := client.Embed(context.Background(), "text b")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("fallback vectors for different texts should differ")
	}
}

func TestEmbed_NonQuotaErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	}, 8)

	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable", err)
	}
}

func TestEmbed_WrongDimensionRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3,0.4,0.5,0.6]}]}`))
	}, 4)

	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Embed() error = %v, want ErrUnavailable for a 6-dim vector against dimension 4", err)
	}
}

func TestEmbed_RealAndFallbackDimensionsAgree(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3,0.4]}]}`))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("quota exceeded"))
	}, 4)

	direct, err := client.Embed(context.Background(), "first text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	degraded, err := client.Embed(context.Background(), "second text")
	if err != nil {
		t.Fatalf("Embed() under quota error = %v", err)
	}
	if len(direct) != len(degraded) {
		t.Errorf("provider vector has %d dimensions, fallback %d; they must agree", len(direct), len(degraded))
	}
}

func TestEmbed_NoEmbeddingReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	}, 8)

	_, err := client.Embed(context.Background(), "text")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Embed() error = %v, want ErrUnavailable", err)
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"ascii cut", "hello", 3, "hel"},
		{"multi-byte rune kept whole", "héllo", 2, "h"},
		{"cut lands inside rune", "日本語", 4, "日"},
		{"cut on rune boundary", "日本語", 6, "日本"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    bool
	}{
		{"429 status", 429, "", true},
		{"quota message", 403, "You exceeded your current quota", true},
		{"rate limit message", 400, "Rate limit reached for requests", true},
		{"plain server error", 500, "internal error", false},
		{"ok", 200, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isQuotaError(tt.status, tt.message); got != tt.want {
				t.Errorf("isQuotaError(%d, %q) = %v, want %v", tt.status, tt.message, got, tt.want)
			}
		})
	}
}
