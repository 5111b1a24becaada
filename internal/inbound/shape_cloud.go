package inbound

// cloudShape parses the Meta Cloud API envelope:
//
//	{"entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"..."},"messages":[...]}}]}]}
//
// Status callbacks share the envelope but carry no messages and yield nothing.
type cloudShape struct{}

func (cloudShape) shape() Shape { return ShapeCloud }

func (cloudShape) matches(root fields) bool {
	return root.has("entry")
}

func (cloudShape) parse(root fields) []candidate {
	var out []candidate
	for _, entry := range root.list("entry") {
		for _, change := range asFields(entry).list("changes") {
			value := asFields(change).obj("value")
			channelID := value.obj("metadata").str("phone_number_id")
			if channelID == "" {
				continue
			}
			for _, raw := range value.list("messages") {
				msg := asFields(raw)
				c := candidate{
					from:       msg.str("from"),
					channelID:  channelID,
					providerID: msg.str("id"),
					timestamp:  msg.str("timestamp"),
				}
				switch msg.str("type") {
				case "text":
					c.text = msg.obj("text").str("body")
				case "audio", "voice":
					media := msg.obj("audio")
					if media == nil {
						media = msg.obj("voice")
					}
					c.media = &MediaRef{ID: media.str("id"), MimeType: media.str("mime_type")}
				default:
					continue
				}
				out = append(out, c)
			}
		}
	}
	return out
}
