package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputHash_StableAcrossKeyOrder(t *testing.T) {
	a := map[string]interface{}{"name": "John", "age": 30.0}
	b := map[string]interface{}{"age": 30.0, "name": "John"}

	ha, err := InputHash(a)
	require.NoError(t, err)
	hb, err := InputHash(b)
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
}

func TestInputHash_DiffersOnContent(t *testing.T) {
	ha, err := InputHash(map[string]interface{}{"name": "John"})
	require.NoError(t, err)
	hb, err := InputHash(map[string]interface{}{"name": "Jane"})
	require.NoError(t, err)

	assert.NotEqual(t, ha, hb)
}
