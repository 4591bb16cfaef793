package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamline_InlinesInternalFileRef(t *testing.T) {
	raw := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"photo": map[string]interface{}{"$ref": "#/$defs/Image"},
		},
	}

	schema, err := Streamline(raw)
	require.NoError(t, err)

	props := schema.Raw["properties"].(map[string]interface{})
	photo := props["photo"].(map[string]interface{})
	assert.Equal(t, "object", photo["type"])
	_, hasRef := photo["$ref"]
	assert.False(t, hasRef)
}

func TestStreamline_DropsMetadata(t *testing.T) {
	raw := map[string]interface{}{
		"type":        "object",
		"title":       "Should be dropped",
		"description": "Also dropped",
		"properties":  map[string]interface{}{},
	}

	schema, err := Streamline(raw)
	require.NoError(t, err)
	_, hasTitle := schema.Raw["title"]
	assert.False(t, hasTitle)
}

func TestStreamline_NormalizesNullability(t *testing.T) {
	raw := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"nickname": map[string]interface{}{"type": []interface{}{"string", "null"}},
		},
	}

	schema, err := Streamline(raw)
	require.NoError(t, err)
	props := schema.Raw["properties"].(map[string]interface{})
	nickname := props["nickname"].(map[string]interface{})
	_, hasType := nickname["type"]
	assert.False(t, hasType)
	anyOf, ok := nickname["anyOf"].([]interface{})
	require.True(t, ok)
	assert.Len(t, anyOf, 2)
}

func TestStreamline_CyclicRefDoesNotHang(t *testing.T) {
	raw := map[string]interface{}{
		"type": "object",
		"$defs": map[string]interface{}{
			"Node": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"next": map[string]interface{}{"$ref": "#/$defs/Node"},
				},
			},
		},
		"properties": map[string]interface{}{
			"root": map[string]interface{}{"$ref": "#/$defs/Node"},
		},
	}

	done := make(chan struct{})
	go func() {
		_, _ = Streamline(raw)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Streamline did not terminate on cyclic $ref")
	}
}
