// Package llm holds what pkg localskill needs from a language model
// independent of which provider answers the call: the transient/fatal
// error split skill.Dispatcher degrades on, and decoding of the
// structured JSON a clause-review skill expects back out of a raw chat
// completion. Provider adapters (llm/openai) live underneath it.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Marker errors classifying skill-call failures. They are attached by
// Transient/Fatal below and tested with errors.Is, so classification
// survives any number of fmt.Errorf %w wrappings on the way up.
var (
	// ErrTransient marks a failure worth retrying or degrading gracefully
	// rather than failing the task outright — a model timeout or a rate
	// limit, not a malformed prompt.
	ErrTransient = errors.New("llm: transient failure")

	// ErrFatal marks a failure retrying cannot fix — a completion with no
	// recoverable JSON, for instance.
	ErrFatal = errors.New("llm: permanent failure")
)

// Transient attaches the transient marker to err.
func Transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Fatal attaches the fatal marker to err.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// IsTransient reports whether err carries the transient marker.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether err carries the fatal marker.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ErrNoJSON is returned by DecodeSkillJSON when the completion contains
// no complete JSON object at all.
var ErrNoJSON = errors.New("llm: completion contains no JSON object")

// DecodeSkillJSON locates the first complete JSON object in a chat
// completion and unmarshals it into v. Models wrap the object in prose
// or a markdown fence and sometimes emit `//` comments or a trailing
// comma; the scan below tolerates all three. A completion whose object
// is syntactically broken beyond that fails with the unmarshal error.
func DecodeSkillJSON(completion string, v any) error {
	obj, ok := scanObject(completion)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("llm: decode skill output: %w", err)
	}
	return nil
}

// scanObject walks completion once, character by character, from the
// first '{' to its balancing '}', and returns a sanitized copy of that
// span: string literals pass through untouched (escapes included),
// `//` comments outside strings are dropped to end of line, and a comma
// whose next significant character closes a brace or bracket is elided.
// Fences and surrounding prose never need special handling — anything
// outside the balanced span is simply not part of the scan.
func scanObject(completion string) (string, bool) {
	start := strings.IndexByte(completion, '{')
	if start < 0 {
		return "", false
	}

	var out strings.Builder
	depth := 0
	inString := false

	for i := start; i < len(completion); i++ {
		ch := completion[i]

		if inString {
			out.WriteByte(ch)
			switch ch {
			case '\\':
				if i+1 < len(completion) {
					i++
					out.WriteByte(completion[i])
				}
			case '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			out.WriteByte(ch)
		case '/':
			if i+1 < len(completion) && completion[i+1] == '/' {
				for i < len(completion) && completion[i] != '\n' {
					i++
				}
				if i < len(completion) {
					out.WriteByte('\n')
				}
			} else {
				out.WriteByte(ch)
			}
		case ',':
			if closerFollows(completion, i+1) {
				continue
			}
			out.WriteByte(ch)
		case '{', '[':
			depth++
			out.WriteByte(ch)
		case '}', ']':
			depth--
			out.WriteByte(ch)
			if depth == 0 {
				return out.String(), true
			}
		default:
			out.WriteByte(ch)
		}
	}
	return "", false
}

// closerFollows reports whether the next significant (non-space,
// non-comment) character at or after pos closes an object or array,
// which is what makes the comma before it trailing.
func closerFollows(s string, pos int) bool {
	for i := pos; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				continue
			}
			return false
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}
