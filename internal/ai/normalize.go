package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Source tags how a normalized reply text was obtained.
type Source string

const (
	// SourceContent means the reply carried an explicit "content" field.
	SourceContent Source = "content"

	// SourceHeuristic means the text was picked by the long-string field scan.
	SourceHeuristic Source = "heuristic"

	// SourceFallback means the whole structure was serialized back to text.
	SourceFallback Source = "fallback"

	// SourceRaw means the reply was already plain text.
	SourceRaw Source = "raw"
)

// heuristicMinLen is the exclusive length bound for the field scan: only
// string fields strictly longer than this qualify as candidate body text.
const heuristicMinLen = 100

// ErrEmptyReply indicates a null or empty generation reply.
var ErrEmptyReply = errors.New("empty generation reply")

// Normalized is the canonical form of a generation reply. Original retains
// the parsed structure for diagnostics when Source is heuristic or fallback.
type Normalized struct {
	Text     string
	Source   Source
	Original map[string]any
}

// Normalize reduces an arbitrarily-shaped generation reply to canonical text.
// The provider's reply format is not contractually fixed, so this prefers
// returning something usable over rejecting unexpected shapes; the only hard
// failure is a null or empty reply.
//
// Object fields are scanned in lexicographic key order, which makes the
// heuristic deterministic for any given reply.
func Normalize(raw json.RawMessage) (Normalized, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Normalized{}, ErrEmptyReply
	}

	var parsed any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		// Not structured data; assume it is already canonical text.
		return finish(Normalized{Text: string(trimmed), Source: SourceRaw})
	}

	switch v := parsed.(type) {
	case string:
		return normalizeString(v)
	case map[string]any:
		return normalizeObject(v)
	default:
		return serializeFallback(parsed, nil)
	}
}

func normalizeString(s string) (Normalized, error) {
	if strings.TrimSpace(s) == "" {
		return Normalized{}, ErrEmptyReply
	}

	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		// Plain text all along.
		return finish(Normalized{Text: s, Source: SourceRaw})
	}

	obj, ok := inner.(map[string]any)
	if !ok {
		return finish(Normalized{Text: s, Source: SourceRaw})
	}
	if text, ok := contentField(obj); ok {
		return finish(Normalized{Text: text, Source: SourceContent, Original: obj})
	}
	return serializeFallback(obj, obj)
}

func normalizeObject(obj map[string]any) (Normalized, error) {
	if text, ok := contentField(obj); ok {
		return finish(Normalized{Text: text, Source: SourceContent, Original: obj})
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if s, ok := obj[k].(string); ok && len(s) > heuristicMinLen {
			return finish(Normalized{Text: s, Source: SourceHeuristic, Original: obj})
		}
	}
	return serializeFallback(obj, obj)
}

func contentField(obj map[string]any) (string, bool) {
	raw, ok := obj["content"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func serializeFallback(value any, original map[string]any) (Normalized, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Normalized{}, ErrEmptyReply
	}
	return finish(Normalized{Text: string(data), Source: SourceFallback, Original: original})
}

func finish(n Normalized) (Normalized, error) {
	if strings.TrimSpace(n.Text) == "" {
		return Normalized{}, ErrEmptyReply
	}
	return n, nil
}
