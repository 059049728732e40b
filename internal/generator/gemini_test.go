package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reel-recipe-go/internal/recipe"
)

func newTestClient(srv *httptest.Server) *Client {
	l, _ := logtest.NewNullLogger()
	return New(Config{BaseURL: srv.URL, MaxRetryTime: 2 * time.Second},
		WithHTTPClient(srv.Client()), WithLogger(logrus.NewEntry(l)))
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestGenerateSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemini-2.0-flash", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "make a recipe", req.Messages[0].Content)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])

		fmt.Fprint(w, chatBody("```json\n{\"title\":\"Pasta\"}\n```"))
	}))
	defer srv.Close()

	text, err := newTestClient(srv).Generate(context.Background(), "make a recipe", "gemini-2.0-flash", "secret")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Pasta"}`, text)
}

func TestGenerateKeepsNonJSONContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatBody("not json at all"))
	}))
	defer srv.Close()

	text, err := newTestClient(srv).Generate(context.Background(), "p", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, "not json at all", text)
}

func TestGenerateNotConfigured(t *testing.T) {
	c := New(Config{})
	_, err := c.Generate(context.Background(), "p", "", "k")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Generate(context.Background(), "p", "m", " ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Generate(context.Background(), "p", "m", "k")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateRetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{name: "client error is permanent", statuses: []int{http.StatusUnauthorized}, wantCalls: 1, wantErr: true},
		{name: "server error then success", statuses: []int{http.StatusServiceUnavailable, http.StatusOK}, wantCalls: 2},
		{name: "rate limited then success", statuses: []int{http.StatusTooManyRequests, http.StatusOK}, wantCalls: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				code := tt.statuses[len(tt.statuses)-1]
				if n < len(tt.statuses) {
					code = tt.statuses[n]
				}
				if code != http.StatusOK {
					http.Error(w, "nope", code)
					return
				}
				fmt.Fprint(w, chatBody(`{"ok":true}`))
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Generate(context.Background(), "p", "m", "k")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGenerateRetriesTruncatedBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := chatBody(`{"title":"Suppe"}`)
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", fmt.Sprint(len(body)+50))
			fmt.Fprint(w, body[:10])
			return
		}
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	text, err := newTestClient(srv).Generate(context.Background(), "p", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Suppe"}`, text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).Generate(ctx, "p", "m", "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseModel(t *testing.T) {
	m, err := ParseModel("")
	require.NoError(t, err)
	assert.Equal(t, ModelGemini20Flash, m)

	m, err = ParseModel("gemini-2.5-flash-lite")
	require.NoError(t, err)
	assert.Equal(t, ModelGemini25FlashLite, m)

	_, err = ParseModel("gpt-4")
	assert.ErrorContains(t, err, "gemini-2.0-flash, gemini-2.5-flash-lite")
}

func TestMockRecipeDecodes(t *testing.T) {
	r, err := recipe.Decode([]byte(MockRecipe))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Portions)
	assert.Len(t, r.Ingredients, 4)

	text, err := Mock{Text: MockRecipe}.Generate(context.Background(), "p", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, MockRecipe, text)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("  {\"a\":1}  "))
	assert.Equal(t, "x ```", stripFences("x ```"))
}
