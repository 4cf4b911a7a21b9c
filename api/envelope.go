package api

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNoData is returned by Decode when the envelope carries no data.
var ErrNoData = errors.New("response has no data")

// Envelope is the uniform backend response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// HasData reports whether Data is present and not JSON null.
func (e *Envelope) HasData() bool {
	if e == nil {
		return false
	}
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// Decode unmarshals the envelope's data into a T.
func Decode[T any](env *Envelope) (T, error) {
	var out T
	if !env.HasData() {
		return out, ErrNoData
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// isJSONObject reports whether data holds a single JSON object.
func isJSONObject(data []byte) bool {
	d := bytes.TrimSpace(data)
	return len(d) > 0 && d[0] == '{' && json.Valid(d)
}

// serverMessage extracts the "message" field from an error body, if any.
func serverMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}
