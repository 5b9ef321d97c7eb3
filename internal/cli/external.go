package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"lambdahash/internal/core"
)

// maxQueryBytes bounds stdin; external data queries are a handful of paths.
const maxQueryBytes = 1 << 20

// ReadQuery decodes one JSON object of string values from r. Anything else
// (an array, a nested or numeric value, trailing content) is MalformedQuery.
func ReadQuery(r io.Reader) (core.Query, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxQueryBytes+1))
	if err != nil {
		return nil, &core.Error{Kind: core.KindInternal, Msg: "reading query", Err: err}
	}
	if len(data) > maxQueryBytes {
		return nil, malformed("", "query exceeds %d bytes", maxQueryBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed("", "Data must be a dictionary.")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, malformed("", "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, malformed("", "unexpected content after the query object")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, malformed("", "Data must be a dictionary.")
	}

	q := make(core.Query, len(obj))
	for _, k := range sortedKeys(obj) {
		s, ok := obj[k].(string)
		if !ok {
			return nil, malformed(k, "Values must be strings. Key %q has a %s value.", k, jsonType(obj[k]))
		}
		q[k] = s
	}
	return q, nil
}

// WriteResult writes res as one compact JSON object with sorted keys.
func WriteResult(w io.Writer, res map[string]string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return &core.Error{Kind: core.KindInternal, Msg: "encoding result", Err: err}
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}

// ErrorLine renders err as the single stderr line "<Kind>: <message>".
func ErrorLine(err error) string {
	msg := strings.Join(strings.Fields(err.Error()), " ")
	return fmt.Sprintf("%s: %s", ErrorKind(err), msg)
}

func malformed(field, format string, args ...any) error {
	return &core.Error{Kind: core.KindMalformedQuery, Field: field, Msg: fmt.Sprintf(format, args...)}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
