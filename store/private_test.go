package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripPrivateFields_TopLevel(t *testing.T) {
	data := map[string]interface{}{"secret": "x", "public": "y"}
	out := StripPrivateFields(data, []string{"secret"})
	_, present := out["secret"]
	assert.False(t, present)
	assert.Equal(t, "y", out["public"])
	// original untouched
	assert.Equal(t, "x", data["secret"])
}

func TestStripPrivateFields_Nested(t *testing.T) {
	data := map[string]interface{}{
		"user": map[string]interface{}{"name": "alice", "ssn": "123-45-6789"},
	}
	out := StripPrivateFields(data, []string{"user.ssn"})
	user, ok := out["user"].(map[string]interface{})
	require.True(t, ok)
	_, present := user["ssn"]
	assert.False(t, present)
	assert.Equal(t, "alice", user["name"])
}

func TestStripPrivateFields_MissingPathIsNoOp(t *testing.T) {
	data := map[string]interface{}{"a": "b"}
	out := StripPrivateFields(data, []string{"missing.path"})
	assert.Equal(t, "b", out["a"])
}
