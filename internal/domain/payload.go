package domain

// Payload key fallbacks. Producers vary in the key names they use, so
// extraction tries each candidate in order and takes the first non-empty
// value. The precedence below is part of the producer contract.
var (
	destinationKeys = []string{"chat_id", "recipient", "to", "destination"}
	textKeys        = []string{"message", "text", "body", "content"}
	formatKeys      = []string{"parse_mode", "format"}
)

// Destination extracts the delivery target (chat id, phone number,
// email address) from the payload.
func (i *QueueItem) Destination() (string, bool) {
	return i.lookup(destinationKeys)
}

// Text extracts the message body from the payload.
func (i *QueueItem) Text() (string, bool) {
	return i.lookup(textKeys)
}

// FormatHint extracts the optional formatting hint (e.g. "MarkdownV2").
// Returns the empty string when no hint is present.
func (i *QueueItem) FormatHint() string {
	hint, _ := i.lookup(formatKeys)
	return hint
}

func (i *QueueItem) lookup(keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := i.Payload[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}
