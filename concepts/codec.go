package concepts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/atheastudio/creative-director/models"
	"github.com/atheastudio/creative-director/store"
)

// Codec converts image fields between their inline data-URI form (what the
// UI sends and receives) and blob reference tokens (what is persisted).
type Codec struct {
	Blobs store.BlobStore
}

// Externalize uploads an inline field's payload and returns a reference
// token. When existingBlobID is non-empty the blob's content is overwritten
// in place so its identity is preserved. Values that are not well-formed data
// URIs (already-externalized tokens, plain URLs, garbage) pass through
// unchanged.
func (c *Codec) Externalize(ctx context.Context, field models.ImageField, folderID, baseName, existingBlobID string) (models.ImageField, error) {
	mime, payload, ok := field.ParseDataURI()
	if !ok {
		return field, nil
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("failed to decode image payload for %s: %w", baseName, err)
	}

	if existingBlobID != "" {
		// The new payload's mime travels with the overwrite; a slot can
		// change format between saves (PNG replaced by JPEG) and must
		// restore under the mime of its latest payload.
		if err := c.Blobs.UpdateContent(ctx, existingBlobID, raw, mime); err != nil {
			return "", fmt.Errorf("failed to overwrite blob %s: %w", existingBlobID, err)
		}
		return models.NewBlobRef(existingBlobID), nil
	}

	meta := store.FileMetadata{
		Name:     baseName + "." + mimeExtension(mime),
		MimeType: mime,
		Parent:   folderID,
	}
	id, err := c.Blobs.Create(ctx, meta, raw)
	if err != nil {
		return "", fmt.Errorf("failed to upload blob %s: %w", baseName, err)
	}
	return models.NewBlobRef(id), nil
}

// Internalize resolves a reference token back to an inline data URI. A
// broken reference degrades to absent rather than failing the caller; one
// deleted blob must not make a whole collection unloadable. Non-reference
// values are returned unchanged.
func (c *Codec) Internalize(ctx context.Context, field models.ImageField) models.ImageField {
	if !field.IsBlobRef() {
		return field
	}
	blobID := field.BlobID()

	meta, err := c.Blobs.Metadata(ctx, blobID)
	if err != nil {
		log.Printf("[Concepts] Failed to read metadata of blob %s: %v", blobID, err)
		return ""
	}
	raw, err := c.Blobs.Content(ctx, blobID)
	if err != nil {
		log.Printf("[Concepts] Failed to fetch blob %s: %v", blobID, err)
		return ""
	}

	mime := meta.MimeType
	if mime == "" {
		mime = "image/png"
	}
	return models.ImageField("data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw))
}

// mimeExtension maps an image mime type to a file extension for the blob
// name. Unknown types fall back to the subtype itself.
func mimeExtension(mime string) string {
	if i := strings.LastIndex(mime, "/"); i >= 0 && i < len(mime)-1 {
		return mime[i+1:]
	}
	return "bin"
}
