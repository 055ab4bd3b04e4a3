package relay

import "encoding/json"

// Event types the relay actively inspects. The type namespace is open:
// any event whose type is not listed here passes through untouched.
const (
	// Client events (client to upstream).
	EventTypeSessionUpdate          = "session.update"
	EventTypeConversationItemCreate = "conversation.item.create"

	// Server events (upstream to client).
	EventTypeConversationItemCreated = "conversation.item.created"
	EventTypeResponseOutputItemDone  = "response.output_item.done"
	EventTypeResponseDone            = "response.done"

	// Synthetic event sent to the client when a tool result is marked for
	// direct client visibility.
	EventTypeExtensionToolResponse = "extension.middle_tier_tool_response"
)

// Item types referenced inside conversation events.
const (
	itemTypeMessage            = "message"
	itemTypeFunctionCall       = "function_call"
	itemTypeFunctionCallOutput = "function_call_output"
)

// Document is a single parsed JSON event from either socket.
//
// The relay only projects the few event kinds it inspects into concrete
// shapes; everything else stays inside the generic field map and is
// re-serialized unchanged. An unmodified Document marshals back to the
// exact bytes it was parsed from, so unknown future event types survive
// the relay with full fidelity.
type Document struct {
	fields map[string]any
	raw    []byte
	dirty  bool
}

// ParseDocument parses data into a Document. The boolean result is not an
// error: false means the payload is not a JSON object and must be forwarded
// verbatim as opaque data.
func ParseDocument(data []byte) (*Document, bool) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}
	return &Document{fields: fields, raw: data}, true
}

// NewDocument creates a Document from already-structured fields.
// Used for synthetic events the relay injects itself.
func NewDocument(fields map[string]any) *Document {
	return &Document{fields: fields, dirty: true}
}

// Type returns the event type tag, or "" if absent.
func (d *Document) Type() string {
	return d.StringField("type")
}

// Field returns the raw value of a top-level field.
func (d *Document) Field(key string) any {
	return d.fields[key]
}

// StringField returns a top-level field as a string, or "" if it is absent
// or not a string.
func (d *Document) StringField(key string) string {
	s, _ := d.fields[key].(string)
	return s
}

// ObjectField returns a top-level field as a JSON object, or nil.
func (d *Document) ObjectField(key string) map[string]any {
	m, _ := d.fields[key].(map[string]any)
	return m
}

// Item returns the conversation item carried by the event, or nil.
func (d *Document) Item() map[string]any {
	return d.ObjectField("item")
}

// Set replaces a top-level field. After Set, Marshal re-serializes the
// document instead of returning the original bytes.
func (d *Document) Set(key string, value any) {
	d.fields[key] = value
	d.dirty = true
}

// Marshal returns the wire form of the document. Unmodified documents
// return their original bytes verbatim.
func (d *Document) Marshal() ([]byte, error) {
	if !d.dirty && d.raw != nil {
		return d.raw, nil
	}
	return json.Marshal(d.fields)
}
