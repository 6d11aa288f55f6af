package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *AttachmentResolver {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "deck.pdf"), []byte("%PDF-1.4"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0o700))
	return NewAttachmentResolver(root)
}

func TestAttachmentResolver_Resolve(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)

	got := r.Resolve(context.Background(), []string{
		"deck.pdf",
		"missing.pdf",
		"https://cdn.example.com/files/brochure.pdf",
		"",
		"../secret.txt",
		"nested",
		"HTTP://example.com/",
	})

	require.Len(t, got, 3)

	assert.Equal(t, ResolvedAttachment{
		Filename:    "deck.pdf",
		Source:      filepath.Join(r.Root, "deck.pdf"),
		ContentType: "application/pdf",
	}, got[0])

	assert.True(t, got[1].Remote)
	assert.Equal(t, "brochure.pdf", got[1].Filename)
	assert.Equal(t, "https://cdn.example.com/files/brochure.pdf", got[1].Source)
	assert.Equal(t, "application/pdf", got[1].ContentType)

	assert.True(t, got[2].Remote)
	assert.Equal(t, "attachment", got[2].Filename)
	assert.Equal(t, "application/octet-stream", got[2].ContentType)
}

func TestAttachmentResolver_RejectsTraversal(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)

	got := r.Resolve(context.Background(), []string{
		"..",
		"nested/../deck.pdf",
		filepath.Join(r.Root, "deck.pdf"),
		`..\deck.pdf`,
	})
	assert.Empty(t, got)
}

func TestAttachmentResolver_MalformedURL(t *testing.T) {
	t.Parallel()
	r := newTestResolver(t)

	assert.Empty(t, r.Resolve(context.Background(), []string{"https://", "http:///nohost.pdf"}))
}
