package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/pkg/circuitbreaker"
)

func TestOpenAIGeneratorRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `[{"title": "Plan", "priority": "high"}]`}},
			},
		})
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL, "sk-test", "gpt-4o-mini")
	out, err := gen.Generate(context.Background(), "make a plan")
	require.NoError(t, err)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "make a plan", gotBody.Messages[0].Content)
	assert.JSONEq(t, `[{"title": "Plan", "priority": "high"}]`, out)
}

func TestOpenAIGeneratorErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL, "sk-test", "gpt-4o-mini")
	_, err := gen.Generate(context.Background(), "make a plan")
	assert.ErrorContains(t, err, "5xx: 500")

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv2.Close()

	gen2 := NewOpenAIGenerator(srv2.URL, "sk-test", "gpt-4o-mini")
	_, err = gen2.Generate(context.Background(), "make a plan")
	assert.ErrorContains(t, err, "status 429")
}

func TestOpenAIGeneratorTripsBreakerAfterRepeatedFailures(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL, "sk-test", "gpt-4o-mini")
	for i := 0; i < 3; i++ {
		_, err := gen.Generate(context.Background(), "make a plan")
		assert.ErrorContains(t, err, "5xx: 500")
	}
	require.Equal(t, 3, hits)

	// Breaker is open now; the backend is not called again.
	_, err := gen.Generate(context.Background(), "make a plan")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, 3, hits)
}

func TestOpenAIGeneratorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "model overloaded"},
		})
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL, "sk-test", "gpt-4o-mini")
	_, err := gen.Generate(context.Background(), "make a plan")
	assert.ErrorContains(t, err, "model overloaded")
}

func TestOpenAIGeneratorNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(srv.URL, "sk-test", "gpt-4o-mini")
	_, err := gen.Generate(context.Background(), "make a plan")
	assert.ErrorContains(t, err, "no choices")
}
