package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pt-planner/internal/apperr"
	"pt-planner/pkg"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(Config{
		Enabled:              true,
		APIKey:               "test-key",
		BaseURL:              srv.URL + "/v1",
		Model:                "test-model",
		Timeout:              2 * time.Second,
		StreamTimeout:        2 * time.Second,
		MaxRetries:           2,
		RetryInitialInterval: time.Millisecond,
	}, zerolog.Nop())
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"message":%q,"type":"test_error"}}`, msg)
}

func writeChunk(w http.ResponseWriter, content string) {
	chunk, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": content}}},
	})
	_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
	w.(http.Flusher).Flush()
}

func collect(ch <-chan string) []string {
	var out []string
	for s := range ch {
		out = append(out, s)
	}
	return out
}

func TestComplete_ReturnsReplyAndSendsPrompt(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeCompletion(w, `{"diagnosis":"strain"}`)
	})

	reply, err := c.Complete(context.Background(), Request{Purpose: "diagnosis", System: "sys", Prompt: "knee hurts", MaxTokens: 123})
	require.NoError(t, err)
	assert.Equal(t, `{"diagnosis":"strain"}`, reply)

	assert.Equal(t, "test-model", got["model"])
	assert.EqualValues(t, 123, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "knee hurts", msgs[1].(map[string]any)["content"])
}

func TestComplete_RetriesRateLimit(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeError(w, http.StatusTooManyRequests, "slow down")
			return
		}
		writeCompletion(w, "ok")
	})

	reply, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestComplete_DoesNotRetryUnauthorized(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusUnauthorized, "bad key")
	})

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "bad key")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestComplete_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeError(w, http.StatusBadGateway, "upstream down")
	})

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestComplete_MissingKeyIsUnavailable(t *testing.T) {
	c := NewOpenAIClient(Config{Enabled: true}, zerolog.Nop())
	assert.False(t, c.Enabled())

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestComplete_DisabledIsUnavailable(t *testing.T) {
	c := NewOpenAIClient(Config{Enabled: false, APIKey: "k"}, zerolog.Nop())
	assert.False(t, c.Enabled())

	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
}

func TestStream_RelaysFragmentsInOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, true, body["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		for _, s := range []string{"Keep ", "your ", "knee ", "warm."} {
			writeChunk(w, s)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	})

	got := collect(c.Stream(context.Background(), []pkg.ChatMessage{{Role: pkg.RoleUser, Content: "tips?"}}))
	assert.Equal(t, []string{"Keep ", "your ", "knee ", "warm."}, got)
}

func TestStream_OpenFailureEndsWithApology(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusInternalServerError, "exploded")
	})

	got := collect(c.Stream(context.Background(), []pkg.ChatMessage{{Role: pkg.RoleUser, Content: "hi"}}))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], apologyPrefix))
	assert.Contains(t, got[0], "exploded")
}

func TestStream_BrokenStreamEndsWithApology(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "Hello")
		panic(http.ErrAbortHandler)
	})

	got := collect(c.Stream(context.Background(), []pkg.ChatMessage{{Role: pkg.RoleUser, Content: "hi"}}))
	require.Len(t, got, 2)
	assert.Equal(t, "Hello", got[0])
	assert.True(t, strings.HasPrefix(got[1], "\n\n"+apologyPrefix))
}

func TestStream_DisabledYieldsSingleApology(t *testing.T) {
	c := NewOpenAIClient(Config{Enabled: false}, zerolog.Nop())
	got := collect(c.Stream(context.Background(), nil))
	require.Len(t, got, 1)
	assert.Equal(t, apologyPrefix+"AI features are disabled", got[0])
}

func TestStream_CancellationClosesChannel(t *testing.T) {
	released := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "first")
		<-r.Context().Done()
		close(released)
	})

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Stream(ctx, []pkg.ChatMessage{{Role: pkg.RoleUser, Content: "hi"}})
	assert.Equal(t, "first", <-ch)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel not closed after cancel")
	}
	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("provider connection not released")
	}
}

func TestToOpenAIMessages_CoercesUnknownRole(t *testing.T) {
	out := toOpenAIMessages([]pkg.ChatMessage{{Role: "therapist", Content: "x"}, {Role: pkg.RoleAssistant, Content: "y"}})
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
}
