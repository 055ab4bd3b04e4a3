package relay

// rewriteOutbound transforms one client-origin event before it is sent
// upstream. A nil result suppresses the event; the core never suppresses
// outbound traffic, it only rewrites.
func (r *Relay) rewriteOutbound(data []byte) []byte {
	doc, ok := ParseDocument(data)
	if !ok {
		// Opaque payload. The relay does not require every event to be
		// well-formed JSON to be relayable.
		return data
	}

	switch doc.Type() {
	case EventTypeConversationItemCreate:
		if text, ok := userMessageText(doc.Item()); ok {
			r.session.setLastUserUtterance(text)
			r.logger.Debug("recorded user utterance", "text", truncateForLog(text, 200))
		}
		return data

	case EventTypeSessionUpdate:
		return r.rewriteSessionUpdate(doc, data)
	}

	return data
}

// rewriteSessionUpdate enforces the server's session configuration. The
// rewrite is unconditional: a client cannot use this event to disable the
// server's tool authority or substitute its own instructions.
func (r *Relay) rewriteSessionUpdate(doc *Document, data []byte) []byte {
	session := doc.ObjectField("session")
	if session == nil {
		session = make(map[string]any)
	}

	if r.session.instructions != "" {
		session["instructions"] = r.session.instructions
	}
	session["tools"] = r.session.tools.Schemas()
	session["tool_choice"] = "auto"
	if r.session.voice != "" {
		session["voice"] = r.session.voice
	}

	doc.Set("session", session)
	out, err := doc.Marshal()
	if err != nil {
		r.logger.Error("re-encode session.update failed", "err", err)
		return data
	}
	return out
}

// userMessageText extracts the text of a user-authored message item.
// Content may be a singleton list whose first element carries the text, or
// a single content object carrying the text directly; both normalize to the
// same result.
func userMessageText(item map[string]any) (string, bool) {
	if item == nil {
		return "", false
	}
	if t, _ := item["type"].(string); t != itemTypeMessage {
		return "", false
	}
	switch content := item["content"].(type) {
	case []any:
		if len(content) == 0 {
			return "", false
		}
		first, _ := content[0].(map[string]any)
		return contentText(first)
	case map[string]any:
		return contentText(content)
	}
	return "", false
}

func contentText(content map[string]any) (string, bool) {
	if content == nil {
		return "", false
	}
	text, ok := content["text"].(string)
	return text, ok
}
