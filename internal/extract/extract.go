// Package extract post-processes raw model output: it pulls structured JSON
// payloads out of markdown replies, classifies them, and scrubs payload
// blocks out of the text shown to the user.
package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
)

// Kind is the display classification of an extracted payload.
type Kind string

const (
	KindText    Kind = "text"
	KindRoadmap Kind = "roadmap"
	KindCourses Kind = "courses"
	KindHandoff Kind = "handoff"
)

// fencedJSON matches a markdown code block explicitly labeled json.
var fencedJSON = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// JSON extracts every labeled JSON block from text, in encounter order, and
// shallow-merges them into one object; on key collision the later block
// wins. A block that fails to parse is skipped, not fatal. When no fenced
// block parses, the substring from the first '{' to the last '}' is tried
// as a single object. This fallback deliberately trades precision for
// robustness against models that omit the code fence.
func JSON(text string) (map[string]any, bool) {
	merged := make(map[string]any)
	found := false

	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(m[1]), &obj); err != nil {
			slog.Debug("skipping unparseable json block", "error", err)
			continue
		}
		for k, v := range obj {
			merged[k] = v
		}
		found = true
	}
	if found {
		return merged, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		var obj map[string]any
		if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err == nil {
			return obj, true
		}
	}
	return nil, false
}

// Classify maps a payload to its display type. First match wins: a merged
// payload carrying both weeks and handoff classifies as roadmap, with the
// handoff still available in the payload for its widget.
func Classify(payload map[string]any) Kind {
	if _, ok := payload["weeks"].([]any); ok {
		return KindRoadmap
	}
	if _, ok := payload["courses"].([]any); ok {
		return KindCourses
	}
	if _, ok := payload["handoff"]; ok {
		return KindHandoff
	}
	return KindText
}

var (
	jsonFence    = regexp.MustCompile("(?s)```json.*?```")
	genericFence = regexp.MustCompile("(?s)```.*?```")

	rawHandoff = regexp.MustCompile(`(?s)\{\s*"handoff".*\}`)
	rawWeeks   = regexp.MustCompile(`(?s)\{\s*"weeks".*\}`)
	rawCourses = regexp.MustCompile(`(?s)\{\s*"courses".*\}`)
)

// Scrub removes payload blocks from a model reply before display. The
// persisted text is never scrubbed; this runs at render time only.
// Idempotent: scrubbing already-scrubbed text is a no-op. Prose that merely
// mentions weeks/courses/handoff outside a JSON-like structure survives.
func Scrub(text string, kind Kind, payload map[string]any) string {
	out := jsonFence.ReplaceAllString(text, "")

	// Unlabeled fences survive unless they carry one of our payload keys;
	// ordinary code examples stay intact.
	out = genericFence.ReplaceAllStringFunc(out, func(block string) string {
		if strings.Contains(block, `"handoff"`) ||
			strings.Contains(block, `"weeks"`) ||
			strings.Contains(block, `"courses"`) {
			return ""
		}
		return block
	})

	// Some models skip the fence entirely; strip the raw object matching
	// the classified payload.
	_, hasHandoff := payload["handoff"]
	if kind == KindHandoff || hasHandoff {
		out = rawHandoff.ReplaceAllString(out, "")
	}
	if kind == KindRoadmap {
		out = rawWeeks.ReplaceAllString(out, "")
	}
	if kind == KindCourses {
		out = rawCourses.ReplaceAllString(out, "")
	}

	return strings.TrimSpace(out)
}
