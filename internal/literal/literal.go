// Package literal evaluates the source text of parameter default values.
//
// Accepted literals are JSON values plus single-quoted strings and the
// keyword undefined, which evaluates to nil like null. Integral numbers
// evaluate to int64, other numbers to float64, arrays to []any and
// objects to map[string]any.
package literal

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// EvalError reports a default value source that is not a literal.
type EvalError struct {
	Source string
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Source, e.Reason)
}

// Eval evaluates src.
func Eval(src string) (any, error) {
	s := strings.TrimSpace(src)
	switch s {
	case "":
		return nil, &EvalError{Source: src, Reason: "empty literal"}
	case "undefined", "null":
		return nil, nil
	}

	js, err := normalize(s)
	if err != nil {
		return nil, &EvalError{Source: src, Reason: err.Error()}
	}
	if !gjson.Valid(js) {
		return nil, &EvalError{Source: src, Reason: "not a literal value"}
	}
	return value(gjson.Parse(js)), nil
}

// normalize rewrites single-quoted strings and bare undefined as JSON.
func normalize(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			j, err := skipString(s, i, '"')
			if err != nil {
				return "", err
			}
			b.WriteString(s[i : j+1])
			i = j
		case c == '\'':
			j, err := skipString(s, i, '\'')
			if err != nil {
				return "", err
			}
			b.WriteString(requote(s[i+1 : j]))
			i = j
		case strings.HasPrefix(s[i:], "undefined") && !identAt(s, i+len("undefined")) && (i == 0 || !identAt(s, i-1)):
			b.WriteString("null")
			i += len("undefined") - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

// skipString returns the index of the quote closing the string at s[i].
func skipString(s string, i int, quote byte) (int, error) {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j, nil
		}
	}
	return 0, fmt.Errorf("unterminated string at offset %d", i)
}

func requote(body string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body) && body[i+1] == '\'':
			b.WriteByte('\'')
			i++
		case c == '\\' && i+1 < len(body):
			b.WriteByte(c)
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func identAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	c := s[i]
	return c == '_' || c == '$' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func value(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return r.Str
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			return r.Int()
		}
		return r.Float()
	}
	if r.IsArray() {
		elems := r.Array()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = value(e)
		}
		return out
	}
	out := make(map[string]any)
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = value(v)
		return true
	})
	return out
}
