package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	folder, err := s.EnsureFolder(ctx, "u1")
	require.NoError(t, err)

	_, err = s.Create(ctx, FileMetadata{Name: "concept_a.json", MimeType: "application/json", Parent: folder}, []byte("{}"))
	require.NoError(t, err)
	_, err = s.Create(ctx, FileMetadata{Name: "c1_pose_x.png", MimeType: "image/png", Parent: folder}, []byte{1})
	require.NoError(t, err)
	_, err = s.Create(ctx, FileMetadata{Name: "concept_b.json", MimeType: "application/json", Parent: "folder-u2"}, []byte("{}"))
	require.NoError(t, err)

	files, err := s.List(ctx, ListQuery{Parent: folder, NamePrefix: "concept_"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "concept_a.json", files[0].Name)

	files, err = s.List(ctx, ListQuery{Parent: folder, MimeType: "image/png"})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "c1_pose_x.png", files[0].Name)

	files, err = s.List(ctx, ListQuery{Parent: folder, Name: "missing"})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestMemStoreUpdatePreservesID(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	id, err := s.Create(ctx, FileMetadata{Name: "f", MimeType: "image/png", Parent: "p"}, []byte("one"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateContent(ctx, id, []byte("two"), "image/jpeg"))
	content, err := s.Content(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), content)

	meta, err := s.Metadata(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, "image/jpeg", meta.MimeType, "overwrite carries the new mime")

	assert.ErrorIs(t, s.UpdateContent(ctx, "nope", nil, ""), ErrNotFound)
	_, err = s.Content(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
