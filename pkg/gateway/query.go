package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voicebridge/voicerag/pkg/rag"
)

// Answerer composes a grounded answer from the question and the retrieved
// snippets.
type Answerer interface {
	Answer(ctx context.Context, question string, snippets []rag.Hit) (string, error)
}

const answerSystemPrompt = "Answer the question using only the provided sources. " +
	"Each source starts with its name in square brackets. If the sources do not " +
	"contain the answer, say you don't know. Keep the answer short."

// ChatAnswerer composes answers through the chat-completions API.
type ChatAnswerer struct {
	client openai.Client
	model  string
}

// NewChatAnswerer builds an answerer with the given API key and model.
// BaseURL may be empty for the default endpoint.
func NewChatAnswerer(apiKey, model, baseURL string) (*ChatAnswerer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gateway: answerer API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("gateway: answerer model is required")
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &ChatAnswerer{client: openai.NewClient(reqOpts...), model: model}, nil
}

// Answer implements Answerer.
func (a *ChatAnswerer) Answer(ctx context.Context, question string, snippets []rag.Hit) (string, error) {
	var sources strings.Builder
	for _, h := range snippets {
		fmt.Fprintf(&sources, "[%s] %s\n-----\n", h.ID, h.Content)
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(answerSystemPrompt),
			openai.UserMessage("Sources:\n" + sources.String() + "\nQuestion: " + question),
		},
	})
	if err != nil {
		return "", fmt.Errorf("gateway: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gateway: chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type queryRequest struct {
	Question string `json:"question"`
}

type queryResponse struct {
	Answer  string         `json:"answer"`
	Sources []rag.Document `json:"sources"`
}

// handleQuery answers a one-shot text question against the knowledge base.
// Without an answerer it degrades to returning the top snippet verbatim.
func (g *Gateway) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	if g.index == nil {
		httpError(w, http.StatusServiceUnavailable, "no knowledge base configured")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		httpError(w, http.StatusBadRequest, "question is required")
		return
	}

	hits, err := g.index.Search(r.Context(), req.Question, rag.DefaultTopK)
	if err != nil {
		g.logger.Error("query search failed", "err", err)
		httpError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := queryResponse{Sources: make([]rag.Document, 0, len(hits))}
	for _, h := range hits {
		resp.Sources = append(resp.Sources, h.Document)
	}

	switch {
	case len(hits) == 0:
		resp.Answer = "I don't know."
	case g.answerer != nil:
		answer, err := g.answerer.Answer(r.Context(), req.Question, hits)
		if err != nil {
			g.logger.Error("query answer failed", "err", err)
			httpError(w, http.StatusBadGateway, "answer generation failed")
			return
		}
		resp.Answer = answer
	default:
		resp.Answer = hits[0].Content
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
