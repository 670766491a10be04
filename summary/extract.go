package summary

import (
	"encoding/json"
	"io"
	"strings"

	apperrors "github.com/nijaru/yt-summary/errors"
	"github.com/pkg/errors"
)

type ExtractorMode int

const (
	// ModeReference collapses newlines and four-space runs everywhere,
	// including inside string values.
	ModeReference ExtractorMode = iota
	// ModeOutsideStrings collapses whitespace only between tokens and escapes
	// raw control characters inside strings so they survive decoding.
	ModeOutsideStrings
)

const (
	msgNoJSON      = "No valid JSON found in response"
	msgParseFailed = "Failed to parse summary"
)

func ParseExtractorMode(s string) (ExtractorMode, error) {
	switch s {
	case "", "reference":
		return ModeReference, nil
	case "preserve":
		return ModeOutsideStrings, nil
	default:
		return ModeReference, errors.Errorf("unknown extract mode %q", s)
	}
}

// Extractor recovers a StructuredSummary from free-form model output.
type Extractor struct {
	Mode ExtractorMode
}

func (e Extractor) Extract(raw string) (StructuredSummary, error) {
	const op = "Extractor.Extract"

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return StructuredSummary{}, apperrors.New(apperrors.KindNoJSONFound, op, nil, msgNoJSON)
	}

	candidate := raw[start : end+1]
	if e.Mode == ModeOutsideStrings {
		candidate = normalizeOutsideStrings(candidate)
	} else {
		candidate = normalizeWhitespace(candidate)
	}

	obj, err := decodeObject(candidate)
	if err != nil {
		return StructuredSummary{}, apperrors.New(apperrors.KindMalformedJSON, op, err, msgParseFailed)
	}

	return StructuredSummary{
		MainTopic:        scalarField(obj["main_topic"]),
		KeyPoints:        listField(obj["key_points"]),
		ImportantDetails: listField(obj["important_details"]),
		Takeaways:        listField(obj["takeaways"]),
	}, nil
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "    ", " ")
	return strings.TrimSpace(s)
}

func normalizeOutsideStrings(s string) string {
	var (
		out      strings.Builder
		between  strings.Builder
		inString bool
		escaped  bool
	)
	out.Grow(len(s))

	for _, r := range s {
		if !inString {
			if r == '"' {
				out.WriteString(normalizeWhitespace(between.String()))
				between.Reset()
				out.WriteRune(r)
				inString = true
				continue
			}
			between.WriteRune(r)
			continue
		}

		switch {
		case escaped:
			escaped = false
			out.WriteRune(r)
		case r == '\\':
			escaped = true
			out.WriteRune(r)
		case r == '"':
			inString = false
			out.WriteRune(r)
		case r == '\n':
			out.WriteString(`\n`)
		case r == '\r':
			out.WriteString(`\r`)
		case r == '\t':
			out.WriteString(`\t`)
		default:
			out.WriteRune(r)
		}
	}
	out.WriteString(normalizeWhitespace(between.String()))
	return strings.TrimSpace(out.String())
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("expected a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("extra data after JSON object")
	}
	return obj, nil
}

func scalarField(v interface{}) string {
	if v == nil {
		return ""
	}
	return stringify(v)
}

func listField(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(t)}
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
