package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleDiff = QuoteDiff{
	QuoteID:   "q-1",
	Category:  "deck_building",
	Original:  []LineItem{{Name: "Composite decking", Amount: 4000}},
	Corrected: []LineItem{{Name: "Composite decking", Amount: 4600}},
	EditNote:  "material prices went up",
}

func claudeReply(text string) []byte {
	resp := map[string]any{
		"id":   "msg_1",
		"type": "message",
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
	}
	data, _ := json.Marshal(resp)
	return data
}

func testAnthropicConfig(url string) Config {
	return Config{
		Provider:    ProviderAnthropic,
		APIKey:      "sk-ant-test123",
		BaseURL:     url,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		RateLimit:   1000,
		Burst:       10,
	}
}

func TestNewAnthropicExtractor(t *testing.T) {
	_, err := NewAnthropicExtractor(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	a, err := NewAnthropicExtractor(Config{APIKey: "sk-ant-test123"}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAnthropicModel, a.model)
	assert.Equal(t, defaultAnthropicBaseURL, a.baseURL)
	assert.Equal(t, defaultMaxRetries, a.maxRetries)
	assert.Equal(t, ProviderAnthropic, a.Name())
}

func TestAnthropicExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test123", r.Header.Get("X-API-Key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("Anthropic-Version"))

		var req anthropicRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, deltaPrompt, req.System)
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "Composite decking")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(claudeReply("```json\n" + `[{"item_type":"composite decking","original_value":4000,"corrected_value":4600,"reason":"material prices went up","learning":"Charge 15% more for composite decking."},{"item_type":"","original_value":1,"corrected_value":2}]` + "\n```"))
	}))
	defer server.Close()

	a, err := NewAnthropicExtractor(testAnthropicConfig(server.URL), nil)
	require.NoError(t, err)

	deltas, err := a.Extract(context.Background(), sampleDiff)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, Delta{
		ItemType:       "composite decking",
		OriginalValue:  4000,
		CorrectedValue: 4600,
		Reason:         "material prices went up",
		Learning:       "Charge 15% more for composite decking.",
	}, deltas[0])
}

func TestAnthropicExtractor_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write(claudeReply(`[]`))
		}
	}))
	defer server.Close()

	a, err := NewAnthropicExtractor(testAnthropicConfig(server.URL), nil)
	require.NoError(t, err)

	deltas, err := a.Extract(context.Background(), sampleDiff)
	require.NoError(t, err)
	assert.Empty(t, deltas)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnthropicExtractor_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantCalls int32
	}{
		{
			name: "client error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
			},
			wantCalls: 1,
		},
		{
			name: "retries exhausted",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantCalls: 3,
		},
		{
			name: "unparseable content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write(claudeReply("the contractor raised the price"))
			},
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			a, err := NewAnthropicExtractor(testAnthropicConfig(server.URL), nil)
			require.NoError(t, err)

			_, err = a.Extract(context.Background(), sampleDiff)
			assert.ErrorIs(t, err, ErrExtractionFailed)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAnthropicExtractor_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testAnthropicConfig(server.URL)
	cfg.BaseBackoff = time.Hour
	a, err := NewAnthropicExtractor(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = a.Extract(ctx, sampleDiff)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseDeltasJSON(t *testing.T) {
	deltas, err := parseDeltasJSON(`{"item_type":" labor ","original_value":100,"corrected_value":150}`)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.Equal(t, "labor", deltas[0].ItemType)

	deltas, err = parseDeltasJSON("[]")
	require.NoError(t, err)
	assert.Empty(t, deltas)

	_, err = parseDeltasJSON("not json")
	assert.Error(t, err)
}
