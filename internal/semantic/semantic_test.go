package semantic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"smartquote/internal/logging"
)

func TestParseMapping(t *testing.T) {
	got, err := ParseMapping("```json\n{\"Vit D\": \"25 Hidroxivitamina D\", \"xx\": \"\", \"n\": 3}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Vit D": "25 Hidroxivitamina D"}, got)

	_, err = ParseMapping("not json")
	assert.Error(t, err)
}

func TestGeminiNormalizeBatch(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		assert.Contains(t, r.URL.Path, "models/gemini-test")
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		blob, _ := json.Marshal(req)
		prompt = string(blob)

		reply := map[string]any{"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": "```json\n{\"Hemagroma\": \"Hemograma\"}\n```"}},
			},
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "key", "gemini-test", logging.Nop(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	got, err := g.NormalizeBatch(context.Background(), []string{"Hemagroma", "K", "TGO"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Hemagroma": "Hemograma"}, got)
	assert.Contains(t, prompt, "Hemagroma")
	assert.NotContains(t, prompt, `\"TGO\"`)
	assert.Contains(t, prompt, "application/json")
}

func TestGeminiSkipsShortBatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "key", "", logging.Nop(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	got, err := g.NormalizeBatch(context.Background(), []string{"TSH", "K"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGeminiServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"bad request"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(), "key", "gemini-test", logging.Nop(),
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = g.NormalizeBatch(context.Background(), []string{"Hemagroma"})
	assert.Error(t, err)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "", nil)
	assert.Error(t, err)
	got, err := Noop{}.NormalizeBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
