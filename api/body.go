package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultStrippedFields never leave the client unless a call explicitly allows
// them with [AllowFields].
var DefaultStrippedFields = []string{"password", "confirmPassword", "sessionId", "token"}

// encodeBody serializes body. JSON objects are stripped of the fields in
// strip (minus allow) and have their top-level strings trimmed; other JSON
// values are sent as marshaled.
func encodeBody(body any, strip map[string]struct{}, allow map[string]struct{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}

	for name := range strip {
		if _, ok := allow[name]; ok {
			continue
		}
		delete(fields, name)
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = strings.TrimSpace(s)
		}
	}

	return json.Marshal(fields)
}

func fieldSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
