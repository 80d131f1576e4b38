package concepts

import (
	"context"

	"github.com/atheastudio/creative-director/models"
	"golang.org/x/sync/errgroup"
)

// Restorer rewrites a stored document's blob references back into inline
// data URIs for the UI. Blob reads within one document are independent and
// run concurrently.
type Restorer struct {
	codec *Codec
}

// Restore resolves every reference in the document. Broken references come
// back absent (Internalize degrades per field), so Restore itself cannot
// fail. Legacy documents stored before the input bundle existed get an empty
// one synthesized.
func (r *Restorer) Restore(ctx context.Context, stored *models.ConceptDocument) *models.ConceptDocument {
	doc := cloneDocument(stored)

	if doc.Input == nil {
		doc.Input = &models.InputBundle{ProductImages: []models.ImageSlot{}}
	}
	if doc.Input.ProductImages == nil {
		doc.Input.ProductImages = []models.ImageSlot{}
	}
	if doc.Input.FaceReference == nil {
		doc.Input.FaceReference = &models.ImageSlot{}
	}
	if doc.Input.FabricReference == nil {
		doc.Input.FabricReference = &models.ImageSlot{}
	}

	// Each goroutine writes to a distinct field, so no locking is needed.
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(field *models.ImageField) {
		if !field.IsBlobRef() {
			return
		}
		g.Go(func() error {
			*field = r.codec.Internalize(gctx, *field)
			return nil
		})
	}

	for i := range doc.Poses {
		fetch(&doc.Poses[i].GeneratedImage)
	}
	for i := range doc.Input.ProductImages {
		fetch(&doc.Input.ProductImages[i].Data)
	}
	fetch(&doc.Input.FaceReference.Data)
	fetch(&doc.Input.FabricReference.Data)

	_ = g.Wait()
	return doc
}
