package rag

import (
	"context"
	"regexp"

	"github.com/voicebridge/voicerag/pkg/relay"
)

const (
	searchToolDescription = "Search the knowledge base. The knowledge base is in English, " +
		"translate to and from English if needed. Results are formatted as a source name " +
		"first in square brackets, followed by the text content, and a line with '-----' " +
		"at the end of each result."

	groundingToolName        = "report_grounding"
	groundingToolDescription = "Report use of a source from the knowledge base as part of an answer " +
		"(effectively, cite the source). Sources appear in square brackets before each " +
		"knowledge base passage. Always use this tool to cite sources when responding " +
		"with information from the knowledge base."
)

var sourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)

type searchArgs struct {
	Query string `json:"query" jsonschema:"search query"`
}

type groundingArgs struct {
	Sources []string `json:"sources" jsonschema:"list of source names from last statement actually used, do not include the ones not used to formulate a response"`
}

// AttachTools registers the knowledge-base tools on a relay registry, bound
// to the given index.
func AttachTools(reg *relay.Registry, ix *Index) {
	reg.Register(&relay.Tool{
		Schema:  relay.MustToolSchema[searchArgs](relay.SearchToolName, searchToolDescription),
		Handler: searchHandler(ix),
	})
	reg.Register(&relay.Tool{
		Schema:  relay.MustToolSchema[groundingArgs](groundingToolName, groundingToolDescription),
		Handler: groundingHandler(ix),
	})
}

// searchHandler answers the model's search call with the top matching
// chunks. Results go back to the model only.
func searchHandler(ix *Index) relay.ToolHandler {
	return func(ctx context.Context, args map[string]any) (*relay.ToolResult, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return &relay.ToolResult{
				Payload:   map[string]any{"error": "search requires a query"},
				Direction: relay.ToServer,
			}, nil
		}

		hits, err := ix.Search(ctx, query, DefaultTopK)
		if err != nil {
			return nil, err
		}

		results := make([]map[string]any, 0, len(hits))
		for _, h := range hits {
			results = append(results, map[string]any{
				"doc_id":  h.ID,
				"content": h.Content,
			})
		}
		return &relay.ToolResult{
			Payload:   map[string]any{"results": results},
			Direction: relay.ToServer,
		}, nil
	}
}

// groundingHandler collects the source citations the model reports and
// resolves them to documents for the client UI. Malformed source names are
// skipped rather than failed: citation display is best-effort.
func groundingHandler(ix *Index) relay.ToolHandler {
	return func(ctx context.Context, args map[string]any) (*relay.ToolResult, error) {
		raw, _ := args["sources"].([]any)
		ids := make([]string, 0, len(raw))
		for _, s := range raw {
			id, ok := s.(string)
			if !ok || !sourceIDPattern.MatchString(id) {
				continue
			}
			ids = append(ids, id)
		}

		docs, err := ix.Fetch(ctx, ids)
		if err != nil || docs == nil {
			docs = []Document{}
		}
		return &relay.ToolResult{
			Payload:   map[string]any{"sources": docs},
			Direction: relay.ToClient,
		}, nil
	}
}
