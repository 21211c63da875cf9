package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    Target
		wantErr bool
	}{
		{name: "bare file", in: "example.kml", want: Target{Dir: ".", Object: "example.kml"}},
		{name: "nested file", in: "out/maps/tokyo.kml", want: Target{Dir: "out/maps", Object: "tokyo.kml"}},
		{name: "gcs", in: "gs://maps/lists/tokyo.kml", want: Target{Bucket: "maps", Object: "lists/tokyo.kml"}},
		{name: "gcs without object", in: "gs://maps", wantErr: true},
		{name: "gcs trailing slash", in: "gs://maps/", wantErr: true},
		{name: "gcs without bucket", in: "gs:///x.kml", wantErr: true},
		{name: "directory", in: "out/", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Bucket != "", got.Remote())
		})
	}
}

func TestOpenLocal(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "maps")
	target, err := ParseTarget(filepath.Join(dir, "tokyo.kml"))
	require.NoError(t, err)

	store, closeFn, err := Open(context.Background(), target)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn()) }()

	uri, err := store.PutObject(context.Background(), target.Object, ContentTypeKML, bytes.NewReader([]byte("<kml/>")))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "tokyo.kml"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "tokyo.kml"))
	require.NoError(t, err)
	assert.Equal(t, "<kml/>", string(data))
}
