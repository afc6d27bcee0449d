package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-haiku-4-5",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 10, "output_tokens": 10},
	}
}

func testClaude(t *testing.T, handler http.HandlerFunc, opts ...ClaudeOption) *Claude {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("test", option.WithBaseURL(srv.URL))
	opts = append([]ClaudeOption{WithRetries(2, time.Millisecond)}, opts...)
	return NewClaude(&client, NewLimiter(0, 0), opts...)
}

func TestClaudeComplete(t *testing.T) {
	var body map[string]any
	c := testClaude(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messageResponse(`{"score":7,"explanation":"ok"}`))
	})

	out, err := c.Complete(context.Background(), Request{
		Stage:  StageRelevance,
		System: "system",
		Prompt: "prompt",
		Schema: relevanceSchema,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":7,"explanation":"ok"}`, out)
	assert.Equal(t, string(anthropic.ModelClaudeHaiku4_5), body["model"])
	assert.NotNil(t, body["output_format"])
}

func TestClaudeComplete_RetriesRateLimits(t *testing.T) {
	var (
		hits     atomic.Int32
		observed []error
	)
	c := testClaude(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		json.NewEncoder(w).Encode(messageResponse(`{"keywords":[]}`))
	}, WithObserver(func(stage Stage, took time.Duration, err error) {
		observed = append(observed, err)
	}))

	out, err := c.Complete(context.Background(), Request{Stage: StageKeywords, Schema: keywordsSchema})
	require.NoError(t, err)
	assert.Equal(t, `{"keywords":[]}`, out)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, []error{nil}, observed)
}

func TestClaudeComplete_DoesNotRetryBadRequests(t *testing.T) {
	var hits atomic.Int32
	c := testClaude(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad schema"}}`))
	})

	_, err := c.Complete(context.Background(), Request{Stage: StageKeywords, Schema: keywordsSchema})
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestClaudeComplete_GivesUp(t *testing.T) {
	var hits atomic.Int32
	c := testClaude(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	})

	_, err := c.Complete(context.Background(), Request{Stage: StageSummary, Schema: summarySchema})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), hits.Load())
}

func TestClaudeComplete_EveryAttemptTakesAToken(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	t.Cleanup(srv.Close)

	// Asking the SDK for its own retries doesn't sneak past the limiter
	client := NewClient("test", option.WithBaseURL(srv.URL), option.WithMaxRetries(5))
	limiter := NewLimiter(60, 3)
	c := NewClaude(&client, limiter, WithRetries(2, time.Millisecond))

	_, err := c.Complete(context.Background(), Request{Stage: StageRelevance, Schema: relevanceSchema})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, int32(3), hits.Load())
	assert.Less(t, limiter.Tokens(), 1.0)
}

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(60, 2)
	assert.Equal(t, 2, l.Burst())
	assert.InDelta(t, 1.0, float64(l.Limit()), 0.0001)

	// Burst is spent right away, the next token takes a second.
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
