package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"emolab/contract"
	"emolab/domain"
	"emolab/errors"

	"github.com/go-playground/validator/v10"
)

const (
	distillTemperature = 0.7
	whisperTemperature = 0.8
)

// Gateway talks to an OpenAI-compatible chat completions endpoint.
// Every transport or contract violation is reported as
// errors.ErrGenerationFailure so callers never have to distinguish
// a timeout from a malformed payload.
type Gateway struct {
	log     *slog.Logger
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	valid   *validator.Validate
}

func NewGateway(log *slog.Logger, baseURL, apiKey, model string, timeout time.Duration) *Gateway {
	return &Gateway{
		log:     log,
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		valid:   validator.New(),
	}
}

var _ contract.IDistiller = (*Gateway)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Distill turns raw content into the three facets. The response must be
// a strict facets document, unknown or missing fields fail the round.
func (g *Gateway) Distill(ctx context.Context, req contract.DistillRequest) (domain.Facets, error) {
	content, err := g.complete(ctx, distillSystem, buildDistillPrompt(req), distillTemperature)
	if err != nil {
		return domain.Facets{}, err
	}
	return g.parseFacets(content)
}

// Whisper produces one private guidance text for a single recipient.
func (g *Gateway) Whisper(ctx context.Context, req contract.WhisperRequest) (string, error) {
	content, err := g.complete(ctx, whisperSystem, buildWhisperPrompt(req), whisperTemperature)
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty whisper content", errors.ErrGenerationFailure)
	}
	return content, nil
}

func (g *Gateway) complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encoding request: %v", errors.ErrGenerationFailure, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", errors.ErrGenerationFailure, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.log.Warn("ai gateway call failed", slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", errors.ErrGenerationFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		g.log.Warn("ai gateway returned non-200",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)))
		return "", fmt.Errorf("%w: gateway status %d", errors.ErrGenerationFailure, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", errors.ErrGenerationFailure, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", errors.ErrGenerationFailure)
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseFacets enforces the facet contract strictly. Models sometimes
// wrap JSON in markdown fences, that much is tolerated; anything else
// off-contract is a generation failure.
func (g *Gateway) parseFacets(content string) (domain.Facets, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var facets domain.Facets
	dec := json.NewDecoder(strings.NewReader(content))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&facets); err != nil {
		g.log.Warn("ai gateway returned malformed facets", slog.Any("error", err))
		return domain.Facets{}, fmt.Errorf("%w: malformed facets: %v", errors.ErrGenerationFailure, err)
	}
	if err := g.valid.Struct(facets); err != nil {
		return domain.Facets{}, fmt.Errorf("%w: incomplete facets: %v", errors.ErrGenerationFailure, err)
	}
	return facets, nil
}
