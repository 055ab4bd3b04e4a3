package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func functionCallEvent(name, callID, args string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type": EventTypeResponseOutputItemDone,
		"item": map[string]any{
			"type":      "function_call",
			"name":      name,
			"call_id":   callID,
			"arguments": args,
		},
	})
	return data
}

// readJSON reads the next frame from a pipe end and decodes it.
func readJSON(t *testing.T, c *pipeConn) map[string]any {
	t.Helper()
	msg, ok := c.tryRead(time.Second)
	if !ok {
		t.Fatal("no message arrived")
	}
	var m map[string]any
	if err := json.Unmarshal(msg.data, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", msg.data, err)
	}
	return m
}

func TestInterceptInbound_ToolDispatch(t *testing.T) {
	var gotArgs map[string]any
	r, clientRemote, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool("lookup_order", "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				gotArgs = args
				return &ToolResult{
					Payload:   map[string]any{"status": "shipped"},
					Direction: ToServer,
				}, nil
			},
		})
	})

	in := functionCallEvent("lookup_order", "call_42", `{"order_id":"A7"}`)
	forward, err := r.interceptInbound(context.Background(), in)
	if err != nil {
		t.Fatalf("interceptInbound: %v", err)
	}
	if forward != nil {
		t.Errorf("forward = %s; a tool-call event must yield no client event", forward)
	}
	if gotArgs["order_id"] != "A7" {
		t.Errorf("handler args = %#v; want order_id A7", gotArgs)
	}

	// Exactly one function_call_output goes upstream under the same call id.
	out := readJSON(t, upstreamRemote)
	if out["type"] != EventTypeConversationItemCreate {
		t.Errorf("injected type = %v; want %v", out["type"], EventTypeConversationItemCreate)
	}
	item := out["item"].(map[string]any)
	if item["type"] != "function_call_output" {
		t.Errorf("item type = %v; want function_call_output", item["type"])
	}
	if item["call_id"] != "call_42" {
		t.Errorf("call_id = %v; want call_42", item["call_id"])
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(item["output"].(string)), &payload); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if payload["status"] != "shipped" {
		t.Errorf("output payload = %#v; want status shipped", payload)
	}
	if _, extra := upstreamRemote.tryRead(50 * time.Millisecond); extra {
		t.Error("more than one event injected upstream")
	}
	if _, leaked := clientRemote.tryRead(50 * time.Millisecond); leaked {
		t.Error("tool-call event leaked to the client")
	}
}

func TestInterceptInbound_SearchQueryOverride(t *testing.T) {
	var gotQuery any
	r, _, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool(SearchToolName, "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				gotQuery = args["query"]
				return &ToolResult{Payload: "[]", Direction: ToServer}, nil
			},
		})
	})
	r.session.setLastUserUtterance("real question")

	in := functionCallEvent(SearchToolName, "call_7", `{"query":"stale"}`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("interceptInbound: %v", err)
	}
	if gotQuery != "real question" {
		t.Errorf("dispatched query = %v; want the session's last user utterance", gotQuery)
	}
	out := readJSON(t, upstreamRemote)
	if out["item"].(map[string]any)["call_id"] != "call_7" {
		t.Error("call_id mismatch on injected output")
	}
}

func TestInterceptInbound_MalformedArgumentsYieldEmptySet(t *testing.T) {
	var gotArgs map[string]any
	r, _, _ := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool("lookup_order", "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				gotArgs = args
				return &ToolResult{Payload: "ok", Direction: ToServer}, nil
			},
		})
	})

	in := functionCallEvent("lookup_order", "call_1", `!!not json at all!!`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("malformed arguments must not fail the relay: %v", err)
	}
	if len(gotArgs) != 0 {
		t.Errorf("args = %#v; want empty set", gotArgs)
	}
}

func TestInterceptInbound_UnknownToolIsFatal(t *testing.T) {
	r, _, _ := newTestRelay(t, nil)

	in := functionCallEvent("never_registered", "call_9", `{}`)
	_, err := r.interceptInbound(context.Background(), in)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v; want ErrUnknownTool", err)
	}
}

func TestInterceptInbound_HandlerErrorKeepsSessionAlive(t *testing.T) {
	r, _, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool("lookup_order", "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				return nil, errors.New("backend unreachable")
			},
		})
	})

	in := functionCallEvent("lookup_order", "call_3", `{}`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("handler error must not be fatal: %v", err)
	}

	out := readJSON(t, upstreamRemote)
	output := out["item"].(map[string]any)["output"].(string)
	var payload map[string]any
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		t.Fatalf("error output is not JSON: %v", err)
	}
	if payload["error"] != "backend unreachable" {
		t.Errorf("error payload = %#v; the model must be told the tool failed", payload)
	}
}

func TestInterceptInbound_ToClientResultAlsoReachesClient(t *testing.T) {
	r, clientRemote, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool("report_grounding", "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				return &ToolResult{
					Payload:   map[string]any{"sources": []any{"doc_1"}},
					Direction: ToClient,
				}, nil
			},
		})
	})

	in := functionCallEvent("report_grounding", "call_5", `{"sources":["doc_1"]}`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("interceptInbound: %v", err)
	}

	ext := readJSON(t, clientRemote)
	if ext["type"] != EventTypeExtensionToolResponse {
		t.Errorf("client event type = %v; want %v", ext["type"], EventTypeExtensionToolResponse)
	}
	if ext["tool_name"] != "report_grounding" {
		t.Errorf("tool_name = %v; want report_grounding", ext["tool_name"])
	}

	// The model still gets its return value.
	out := readJSON(t, upstreamRemote)
	if out["item"].(map[string]any)["call_id"] != "call_5" {
		t.Error("upstream output missing despite ToClient direction")
	}
}

func TestInterceptInbound_OversizedOutputTruncated(t *testing.T) {
	r, _, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.MaxToolOutput = 16
		cfg.Tools.Register(&Tool{
			Schema: stubTool("lookup_order", "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				return &ToolResult{Payload: strings.Repeat("x", 100), Direction: ToServer}, nil
			},
		})
	})

	in := functionCallEvent("lookup_order", "call_8", `{}`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("interceptInbound: %v", err)
	}
	out := readJSON(t, upstreamRemote)
	output := out["item"].(map[string]any)["output"].(string)
	if !strings.HasPrefix(output, strings.Repeat("x", 16)) || !strings.HasSuffix(output, "[truncated]") {
		t.Errorf("output = %q; want 16 bytes plus truncation marker", output)
	}
}

func TestInterceptInbound_FinalAnswerGating(t *testing.T) {
	events := [][]byte{
		[]byte(`{"type":"conversation.item.created","item":{"id":"item_1"}}`),
		[]byte(`{"type":"response.done","response":{"id":"resp_1"}}`),
	}
	for _, in := range events {
		r, clientRemote, upstreamRemote := newTestRelay(t, nil)
		forward, err := r.interceptInbound(context.Background(), in)
		if err != nil {
			t.Fatalf("interceptInbound(%s): %v", in, err)
		}
		if forward != nil {
			t.Errorf("forward = %s; gated events must be consumed", forward)
		}
		msg, ok := clientRemote.tryRead(time.Second)
		if !ok {
			t.Fatalf("gated event %s never reached the client", in)
		}
		if !bytes.Equal(msg.data, in) {
			t.Errorf("client received %s; want verbatim %s", msg.data, in)
		}
		if _, leaked := upstreamRemote.tryRead(50 * time.Millisecond); leaked {
			t.Errorf("gated event %s was re-sent upstream", in)
		}
	}
}

func TestInterceptInbound_PassThrough(t *testing.T) {
	r, _, _ := newTestRelay(t, nil)
	tests := [][]byte{
		[]byte("binary-ish opaque payload"),
		[]byte(`{"type":"response.audio.delta","delta":"AAAA"}`),
		[]byte(`{"type":"response.output_item.done","item":{"type":"message","id":"m1"}}`),
		[]byte(`{"type":"some.future.event"}`),
	}
	for _, in := range tests {
		forward, err := r.interceptInbound(context.Background(), in)
		if err != nil {
			t.Fatalf("interceptInbound(%s): %v", in, err)
		}
		if !bytes.Equal(forward, in) {
			t.Errorf("forward = %s; want verbatim %s", forward, in)
		}
	}
}

func TestInterceptInbound_ClosedClientIsNotAnError(t *testing.T) {
	r, clientRemote, upstreamRemote := newTestRelay(t, func(cfg *SessionConfig) {
		cfg.Tools.Register(&Tool{
			Schema: stubTool(SearchToolName, "").Schema,
			Handler: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
				return &ToolResult{Payload: "[]", Direction: ToServer}, nil
			},
		})
	})
	clientRemote.Close()

	// A gated event to a dead client is swallowed.
	forward, err := r.interceptInbound(context.Background(), []byte(`{"type":"response.done"}`))
	if err != nil {
		t.Fatalf("send to closed client must be success-equivalent: %v", err)
	}
	if forward != nil {
		t.Errorf("forward = %s; want nil", forward)
	}

	// The upstream side keeps being serviced: tool calls still dispatch.
	in := functionCallEvent(SearchToolName, "call_11", `{}`)
	if _, err := r.interceptInbound(context.Background(), in); err != nil {
		t.Fatalf("interceptInbound after client close: %v", err)
	}
	out := readJSON(t, upstreamRemote)
	if out["item"].(map[string]any)["call_id"] != "call_11" {
		t.Error("tool output not injected after client close")
	}
}
