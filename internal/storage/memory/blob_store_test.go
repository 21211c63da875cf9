package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObject(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "maps/tokyo.kml", "application/vnd.google-earth.kml+xml",
		bytes.NewReader([]byte("<kml/>")))
	require.NoError(t, err)
	assert.Equal(t, "memory://maps/tokyo.kml", uri)
	assert.Equal(t, 1, store.Len())

	data, contentType, ok := store.Object("maps/tokyo.kml")
	require.True(t, ok)
	assert.Equal(t, "<kml/>", string(data))
	assert.Equal(t, "application/vnd.google-earth.kml+xml", contentType)

	data[0] = 'X'
	again, _, _ := store.Object("maps/tokyo.kml")
	assert.Equal(t, "<kml/>", string(again), "Object must return a copy")

	_, _, ok = store.Object("missing")
	assert.False(t, ok)
}
