package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffloadFiles_ContentAddressedKeys(t *testing.T) {
	u := NewInMemoryUploader()
	files := []FileRef{
		{ContentType: "text/plain", Data: []byte("hello")},
		{ContentType: "text/plain", Data: []byte("hello")}, // duplicate content
	}
	urls, err := OffloadFiles(context.Background(), u, "runs/1", files)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, urls[0], urls[1])
	assert.Len(t, u.Objects, 1)
}

func TestOffloadFiles_PreservesOrder(t *testing.T) {
	u := NewInMemoryUploader()
	files := []FileRef{
		{Data: []byte("a")},
		{Data: []byte("b")},
	}
	urls, err := OffloadFiles(context.Background(), u, "p", files)
	require.NoError(t, err)
	assert.NotEqual(t, urls[0], urls[1])
}
