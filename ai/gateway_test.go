package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"emolab/contract"
	"emolab/domain"
	"emolab/errors"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func fakeCompletion(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestGateway_Distill(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	// Given a gateway answering with a well formed facets document
	server := fakeCompletion(t, "```json\n{\"synopsis\":\"He feels unheard\",\"summary\":\"Deadlines slipped twice\",\"contention_points\":\"The word 'always' may trigger\"}\n```")
	defer server.Close()

	gateway := NewGateway(log, server.URL, "test-key", "test-model", time.Second)

	// When distilling a raw message
	facets, err := gateway.Distill(context.Background(), contract.DistillRequest{
		RawContent: "You ALWAYS miss the deadline, I'm sick of it",
	})

	// Then all three facets are populated
	assert.NoError(err)
	assert.Equal("He feels unheard", facets.Synopsis)
	assert.Equal("Deadlines slipped twice", facets.Summary)
	assert.Equal("The word 'always' may trigger", facets.Contention)
}

func TestGateway_Distill_MalformedJSON(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := fakeCompletion(t, "Sure! Here is my analysis of the message:")
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	_, err := gateway.Distill(context.Background(), contract.DistillRequest{RawContent: "raw"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}

func TestGateway_Distill_MissingFacet(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	// Given an answer missing the contention points entirely
	server := fakeCompletion(t, `{"synopsis":"short","summary":"short"}`)
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	_, err := gateway.Distill(context.Background(), contract.DistillRequest{RawContent: "raw"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}

func TestGateway_Distill_UnknownField(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := fakeCompletion(t, `{"synopsis":"a","summary":"b","contention_points":"c","mood":"angry"}`)
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	_, err := gateway.Distill(context.Background(), contract.DistillRequest{RawContent: "raw"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}

func TestGateway_Distill_GatewayDown(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	_, err := gateway.Distill(context.Background(), contract.DistillRequest{RawContent: "raw"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}

func TestGateway_Distill_Timeout(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", 20*time.Millisecond)

	_, err := gateway.Distill(context.Background(), contract.DistillRequest{RawContent: "raw"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}

func TestGateway_Whisper(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := fakeCompletion(t, "  Alice is frustrated, not hostile. Hear the deadline concern behind the tone.  ")
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	content, err := gateway.Whisper(context.Background(), contract.WhisperRequest{
		AuthorName:    "alice",
		RecipientName: "bob",
		Facets: domain.Facets{
			Synopsis:   "She feels ignored",
			Summary:    "Two deadlines slipped",
			Contention: "Accusatory tone",
		},
	})

	assert.NoError(err)
	assert.Equal("Alice is frustrated, not hostile. Hear the deadline concern behind the tone.", content)
}

func TestGateway_Whisper_Empty(t *testing.T) {
	assert := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	server := fakeCompletion(t, "   ")
	defer server.Close()

	gateway := NewGateway(log, server.URL, "", "test-model", time.Second)

	_, err := gateway.Whisper(context.Background(), contract.WhisperRequest{AuthorName: "a", RecipientName: "b"})

	assert.ErrorIs(err, errors.ErrGenerationFailure)
}
