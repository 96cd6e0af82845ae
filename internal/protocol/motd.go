package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// FormattingMarker introduces a two-character legacy color/format code.
const FormattingMarker = '§'

// chatComponent is the rich-text form of a server description.
type chatComponent struct {
	Text  string            `json:"text"`
	Extra []json.RawMessage `json:"extra"`
}

// FlattenDescription turns a status "description" value into plain text.
// The value is either a JSON string or a chat component whose text and
// extra children are concatenated depth-first. Formatting codes are removed.
func FlattenDescription(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var sb strings.Builder
	if err := flattenComponent(raw, &sb, 0); err != nil {
		return "", err
	}
	return StripFormatting(sb.String()), nil
}

// maxComponentDepth stops runaway nesting in hostile descriptions.
const maxComponentDepth = 32

func flattenComponent(raw json.RawMessage, sb *strings.Builder, depth int) error {
	if depth > maxComponentDepth {
		return fmt.Errorf("%w: description nested deeper than %d", ErrJSONDecode, maxComponentDepth)
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: description: %v", ErrJSONDecode, err)
		}
		sb.WriteString(s)
		return nil
	case '{':
		var c chatComponent
		if err := json.Unmarshal(raw, &c); err != nil {
			return fmt.Errorf("%w: description: %v", ErrJSONDecode, err)
		}
		sb.WriteString(c.Text)
		for _, child := range c.Extra {
			child = bytes.TrimSpace(child)
			if len(child) == 0 {
				continue
			}
			if err := flattenComponent(child, sb, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		// Numbers, booleans and arrays carry no displayable text.
		return nil
	}
}

// StripFormatting removes every "§x" sequence from s.
func StripFormatting(s string) string {
	if !strings.ContainsRune(s, FormattingMarker) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	skip := false
	for _, r := range s {
		switch {
		case skip:
			skip = false
		case r == FormattingMarker:
			skip = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
