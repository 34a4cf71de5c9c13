package pipe

import (
	"encoding/json"
	"fmt"
)

// ChatRequest is the inbound host call: ordered role-tagged messages plus
// generation parameters. Pointer fields distinguish "caller set this" from
// "absent": absent parameters must stay absent in the upstream payload.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// System is an optional out-of-band system prompt. A leading
	// system-role message is treated the same way (and appended after
	// System when both are present).
	System string `json:"system,omitempty"`

	Stop        StopSequences `json:"stop,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// Message is one conversation turn. Content is either a plain string or an
// ordered list of typed parts.
type Message struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// MessageContent holds either plain text or content parts. Exactly one of
// the two representations is populated after unmarshalling.
type MessageContent struct {
	Text  string
	Parts []ContentPart
	// IsParts distinguishes an empty part list from plain text, so an
	// explicit `"content": []` does not read as an empty string.
	IsParts bool
}

// ContentPart is one typed unit within a multi-part message: a text span or
// an image reference.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image, either inline (data: URL with base64 payload)
// or remote (http(s) URL to be fetched).
type ImageURL struct {
	URL string `json:"url"`
}

// Part type discriminators accepted from the host.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// UnmarshalJSON accepts both content encodings the host uses: a bare string
// or an array of typed parts.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = s
		c.Parts = nil
		c.IsParts = false
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("message content must be a string or an array of parts: %w", err)
	}
	c.Text = ""
	c.Parts = parts
	c.IsParts = true
	return nil
}

// MarshalJSON emits the same encoding that came in.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.IsParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// StopSequences accepts the host's "stop" parameter as either a single
// string or a string array.
type StopSequences []string

// UnmarshalJSON normalises both encodings to a list.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = StopSequences{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}
