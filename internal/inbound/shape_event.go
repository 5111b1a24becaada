package inbound

// eventShape parses single-event wrappers such as WATI's. Messages live in a
// messages list at the top level or under "value"; when no list exists the
// sender and text are read from top-level fields instead.
type eventShape struct{}

func (eventShape) shape() Shape { return ShapeEvent }

func (eventShape) matches(root fields) bool {
	if root.has("messages") || root.obj("value").has("messages") {
		return true
	}
	return topLevelSender(root) != "" || topLevelText(root) != ""
}

func (eventShape) parse(root fields) []candidate {
	container := root.obj("value")
	if container == nil {
		container = root
	}
	messages := container.list("messages")
	if len(messages) == 0 {
		messages = root.list("messages")
	}
	if len(messages) > 0 {
		out := make([]candidate, 0, len(messages))
		for _, raw := range messages {
			msg := asFields(raw)
			from := msg.str("from", "wa_id", "waId", "sender")
			if from == "" {
				from = msg.obj("contact").str("wa_id", "waId")
			}
			out = append(out, candidate{
				from:       from,
				text:       messageText(msg),
				providerID: msg.str("id", "whatsappMessageId"),
				timestamp:  msg.str("timestamp"),
			})
		}
		return out
	}

	c := candidate{
		from:       topLevelSender(root),
		text:       topLevelText(root),
		providerID: root.str("id", "whatsappMessageId"),
		timestamp:  root.str("timestamp"),
	}
	if c.from == "" && c.text == "" {
		return nil
	}
	return []candidate{c}
}

// messageText reads text.body, then bare text, then body.
func messageText(msg fields) string {
	if body := msg.obj("text").str("body"); body != "" {
		return body
	}
	return msg.str("text", "body")
}

func topLevelSender(root fields) string {
	if s := root.str("waId", "contact", "customerPhone"); s != "" {
		return s
	}
	if s := root.obj("contact").str("wa_id", "waId", "phone"); s != "" {
		return s
	}
	return root.obj("customer").str("phone")
}

func topLevelText(root fields) string {
	if s := root.str("text", "message"); s != "" {
		return s
	}
	if s := root.obj("text").str("body"); s != "" {
		return s
	}
	return root.obj("message").str("body", "text")
}
