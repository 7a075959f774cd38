package domain

// PartKind discriminates what a content part carries.
type PartKind string

const (
	PartText    PartKind = "text"
	PartBlob    PartKind = "blob"
	PartUnknown PartKind = "unknown"
)

// Placeholders used when binary or unrecognized content is exposed externally.
const (
	RedactedBlob    = "[PDF Document]"
	RedactedUnknown = "[Unknown Content]"
)

// Part is one piece of a turn: plain text, an inline binary blob, or
// something the upstream returned that we don't model.
type Part struct {
	Kind     PartKind
	Text     string // PartText
	MIMEType string // PartBlob
	Data     []byte // PartBlob, raw bytes
}

func TextPart(text string) Part {
	return Part{Kind: PartText, Text: text}
}

func BlobPart(mimeType string, data []byte) Part {
	return Part{Kind: PartBlob, MIMEType: mimeType, Data: data}
}

func UnknownPart() Part {
	return Part{Kind: PartUnknown}
}

// Content is a single turn of a conversation.
type Content struct {
	Role  Role
	Parts []Part
}

// Redact converts a part to its externally safe form. Binary data never
// leaves the process verbatim; it is replaced by a fixed placeholder.
func (p Part) Redact() Part {
	switch p.Kind {
	case PartText:
		return Part{Kind: PartText, Text: p.Text}
	case PartBlob:
		return Part{Kind: PartText, Text: RedactedBlob}
	default:
		return Part{Kind: PartText, Text: RedactedUnknown}
	}
}

// Redact returns a copy of the content with every part redacted.
func (c Content) Redact() Content {
	out := Content{Role: c.Role, Parts: make([]Part, 0, len(c.Parts))}
	for _, p := range c.Parts {
		out.Parts = append(out.Parts, p.Redact())
	}
	return out
}

// RedactHistory redacts a whole conversation history.
func RedactHistory(history []Content) []Content {
	out := make([]Content, 0, len(history))
	for _, c := range history {
		out = append(out, c.Redact())
	}
	return out
}
