package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	key := DocumentKey("doc-1", "/home/user/Statements/march.pdf")
	assert.Equal(t, "documents/doc-1/march.pdf", key)

	require.NoError(t, s.Put(ctx, key, []byte("%PDF-1.4"), "application/pdf"))

	data, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	p, err := s.Path(key)
	require.NoError(t, err)
	assert.FileExists(t, p)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoDirExists(t, filepath.Join(root, "documents", "doc-1"))

	require.NoError(t, s.Delete(ctx, key), "deleting twice is fine")
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{key: "documents/a/b.pdf"},
		{key: "", wantErr: true},
		{key: "../etc/passwd", wantErr: true},
		{key: "/abs/path", wantErr: true},
		{key: "documents/../../x", wantErr: true},
		{key: "documents//x.pdf", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := validateKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	err = s.Put(context.Background(), "../escape.pdf", []byte("x"), "application/pdf")
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(filepath.Dir(root), "escape.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}
