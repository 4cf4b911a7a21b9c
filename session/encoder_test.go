package session

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

const validToken = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestDecodeAcceptsOriginalShape(t *testing.T) {
	blob := []byte(`{"user":{"id":"7","email":"a@b.co","firstName":"A","lastName":"B"},"timestamp":1700000000000,"lastActivity":1700000060000,"sessionId":"` + validToken + `"}`)

	sess, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, "7", sess.User.ID)
	assert.Equal(t, validToken, sess.Token)
	assert.Equal(t, time.UnixMilli(1700000000000), sess.CreatedAt)
	assert.Equal(t, time.Minute, sess.LastActivity.Sub(sess.CreatedAt))
	assert.Empty(t, sess.BackendToken)
	assert.True(t, sess.BackendExpiresAt.IsZero())
}

func TestDecodeRejectsIncompleteBlobs(t *testing.T) {
	for _, blob := range []string{
		``,
		`[]`,
		`"text"`,
		`{"user":{"id":"7"},"timestamp":1,"lastActivity":1}`,
		`{"user":{},"timestamp":1,"lastActivity":1,"sessionId":"` + validToken + `"}`,
		`{"user":{"id":"7"},"sessionId":"` + validToken + `"}`,
		`{"user":{"id":"7"},"timestamp":1,"lastActivity":1,"sessionId":"abc"}`,
		`{"user":{"id":"7"},"timestamp":1,"lastActivity":1,"sessionId":"` + strings.ToUpper(validToken) + `"}`,
		`{"user":{"id":"7"},"timestamp":1,"lastActivity":1,"sessionId":"` + validToken + `0"}`,
	} {
		_, err := Decode([]byte(blob))
		assert.ErrorIs(t, err, ErrCorrupt, blob)
	}
}

func TestEncodeOmitsEmptyBackendFields(t *testing.T) {
	data, err := Encode(&Session{User: Identity{ID: "1"}, CreatedAt: time.UnixMilli(5), LastActivity: time.UnixMilli(6), Token: "t"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "backendToken")
	assert.NotContains(t, string(data), "backendExpiresAt")

	_, err = Encode(nil)
	assert.Error(t, err)
}
