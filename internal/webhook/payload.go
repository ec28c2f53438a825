package webhook

import "warelay/internal/relay"

// Payload mirrors the provider's entry/changes/value nesting. Only the
// fields the relay consumes are declared; everything else is ignored.
type Payload struct {
	Entry []Entry `json:"entry"`
}

// Entry is one account-level event batch.
type Entry struct {
	Changes []Change `json:"changes"`
}

// Change is one field change within an entry.
type Change struct {
	Value Value `json:"value"`
}

// Value carries the messages array. Status-update deliveries have no
// messages and yield nothing.
type Value struct {
	Messages []RawMessage `json:"messages"`
}

// RawMessage is a provider message before normalization.
type RawMessage struct {
	ID    string     `json:"id"`
	From  string     `json:"from"`
	Type  string     `json:"type"`
	Text  *TextBody  `json:"text,omitempty"`
	Audio *AudioBody `json:"audio,omitempty"`
}

// TextBody is the text payload of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// AudioBody references an inbound audio asset.
type AudioBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
}

// ExtractMessages walks entry[].changes[].value.messages[] and normalizes
// the text and audio messages. Messages without a sender, audio messages
// without a media id, and unsupported types are skipped.
func ExtractMessages(p Payload) []relay.Message {
	var out []relay.Message
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, raw := range change.Value.Messages {
				if raw.From == "" {
					continue
				}
				switch raw.Type {
				case "text":
					body := ""
					if raw.Text != nil {
						body = raw.Text.Body
					}
					out = append(out, relay.Message{
						ID:   raw.ID,
						From: raw.From,
						Kind: relay.KindText,
						Text: body,
					})
				case "audio":
					if raw.Audio == nil || raw.Audio.ID == "" {
						continue
					}
					out = append(out, relay.Message{
						ID:       raw.ID,
						From:     raw.From,
						Kind:     relay.KindAudio,
						MediaID:  raw.Audio.ID,
						MimeType: raw.Audio.MimeType,
					})
				}
			}
		}
	}
	return out
}
