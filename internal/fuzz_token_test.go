package internal

import (
	"encoding/hex"
	"testing"
)

// FuzzValidSessionToken feeds arbitrary strings to the token check. Accepted
// input must decode to SessionTokenSize bytes and re-encode unchanged.
func FuzzValidSessionToken(f *testing.F) {
	f.Add("")
	f.Add("abc")
	f.Add("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	f.Add("gggggggggggggggggggggggggggggggggggggggggggggggggggggggggggggggg")

	if token, err := NewSessionToken(); err == nil {
		f.Add(token)
	}

	f.Fuzz(func(t *testing.T, input string) {
		if !ValidSessionToken(input) {
			return
		}
		raw, err := hex.DecodeString(input)
		if err != nil {
			t.Fatalf("accepted token %q does not decode: %v", input, err)
		}
		if len(raw) != SessionTokenSize {
			t.Fatalf("decoded %d bytes", len(raw))
		}
		if hex.EncodeToString(raw) != input {
			t.Fatalf("token %q is not canonical", input)
		}
	})
}
