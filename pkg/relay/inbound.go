package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// interceptInbound transforms one upstream-origin event. The returned bytes
// (nil = nothing) are forwarded to the client; a non-nil error is fatal to
// the session.
func (r *Relay) interceptInbound(ctx context.Context, data []byte) ([]byte, error) {
	doc, ok := ParseDocument(data)
	if !ok {
		return data, nil
	}

	switch doc.Type() {
	case EventTypeResponseOutputItemDone:
		item := doc.Item()
		if t, _ := item["type"].(string); t == itemTypeFunctionCall {
			// The usual return-to-client flow is bypassed entirely: the
			// tool output is injected upstream instead.
			return nil, r.dispatchToolCall(ctx, item)
		}
		return data, nil

	case EventTypeConversationItemCreated, EventTypeResponseDone:
		// Final-answer gating: these reach the client only and are never
		// relayed onward or re-processed.
		r.safeSendText(data)
		return nil, nil
	}

	return data, nil
}

// dispatchToolCall runs the named tool and injects its output into the
// upstream conversation under the triggering call identifier.
func (r *Relay) dispatchToolCall(ctx context.Context, item map[string]any) error {
	name, _ := item["name"].(string)
	callID, _ := item["call_id"].(string)
	rawArgs, _ := item["arguments"].(string)

	args := parseToolArgs(rawArgs)
	if name == SearchToolName {
		// The relay supplies the true user query text; the model may have
		// invented or stale-paraphrased its own.
		args["query"] = r.session.LastUserUtterance()
	}
	r.logger.Info("tool call", "tool", name, "call_id", callID)

	tool, ok := r.session.tools.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q invoked by model but never advertised", ErrUnknownTool, name)
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		// A failing tool does not tear down the session; the model is told
		// the tool failed and the conversation continues.
		r.logger.Warn("tool handler failed", "tool", name, "err", err)
		result = &ToolResult{
			Payload:   map[string]any{"error": err.Error()},
			Direction: ToServer,
		}
	}

	output := result.Text()
	if max := r.session.maxToolOutput; len(output) > max {
		r.logger.Warn("tool output truncated", "tool", name, "len", len(output), "max", max)
		output = output[:max] + "…[truncated]"
	}

	if result.Direction == ToClient {
		r.sendToolResponseToClient(name, callID, output)
	}

	// The model always needs a return value for the call to continue the
	// conversation, so the function_call_output is injected regardless of
	// the result direction.
	return r.upstream.writeJSON(map[string]any{
		"event_id": generateEventID(),
		"type":     EventTypeConversationItemCreate,
		"item": map[string]any{
			"type":    itemTypeFunctionCallOutput,
			"call_id": callID,
			"output":  output,
		},
	})
}

// sendToolResponseToClient delivers a ToClient-directed tool result as a
// side-channel event, best-effort.
func (r *Relay) sendToolResponseToClient(name, callID, output string) {
	data, err := json.Marshal(map[string]any{
		"type":        EventTypeExtensionToolResponse,
		"call_id":     callID,
		"tool_name":   name,
		"tool_result": output,
	})
	if err != nil {
		r.logger.Error("encode tool response failed", "tool", name, "err", err)
		return
	}
	r.safeSendText(data)
}

// parseToolArgs parses the model's serialized argument string leniently:
// strict JSON first, then a jsonrepair pass, then an empty argument set.
// A malformed argument string never fails the relay.
func parseToolArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}
	if fixed, err := jsonrepair.JSONRepair(raw); err == nil {
		if err := json.Unmarshal([]byte(fixed), &args); err == nil && args != nil {
			return args
		}
	}
	return map[string]any{}
}
