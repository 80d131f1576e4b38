package concepts

import (
	"context"
	"fmt"

	"github.com/atheastudio/creative-director/models"
	"github.com/google/uuid"
)

// Reconciler rewrites a concept document full of inline images into its
// persistable form, reusing blob identities from a previously stored version
// of the same concept so updates overwrite instead of accumulating blobs.
type Reconciler struct {
	codec *Codec
}

// prevRefs indexes the blob references of a previously stored document.
// Slots that arrive with a key are matched by key only; keyless slots
// (legacy documents, clients that regenerated ids) match by array position.
type prevRefs struct {
	byKey   map[string]models.ImageField
	byIndex map[int]models.ImageField
}

func newPrevRefs() prevRefs {
	return prevRefs{
		byKey:   make(map[string]models.ImageField),
		byIndex: make(map[int]models.ImageField),
	}
}

func (p prevRefs) add(idx int, key string, field models.ImageField) {
	if !field.IsBlobRef() {
		return
	}
	if key != "" {
		p.byKey[key] = field
	}
	p.byIndex[idx] = field
}

func (p prevRefs) resolve(idx int, incomingKey string) models.ImageField {
	if incomingKey != "" {
		return p.byKey[incomingKey]
	}
	return p.byIndex[idx]
}

// Reconcile transforms newDoc so that every image field is a blob reference
// or absent. prev may be nil (first save). Externalization runs sequentially;
// the per-field blob writes are not safe to reorder against each other when
// a blob id is reused.
func (r *Reconciler) Reconcile(ctx context.Context, newDoc, prev *models.ConceptDocument, folderID string) (*models.ConceptDocument, error) {
	doc := cloneDocument(newDoc)

	prevPoses := newPrevRefs()
	prevProducts := newPrevRefs()
	var prevFace, prevFabric models.ImageField
	if prev != nil {
		for i, p := range prev.Poses {
			prevPoses.add(i, p.SlotKey, p.GeneratedImage)
		}
		if prev.Input != nil {
			for i, img := range prev.Input.ProductImages {
				prevProducts.add(i, img.SlotKey, img.Data)
			}
			if prev.Input.FaceReference != nil && prev.Input.FaceReference.Data.IsBlobRef() {
				prevFace = prev.Input.FaceReference.Data
			}
			if prev.Input.FabricReference != nil && prev.Input.FabricReference.Data.IsBlobRef() {
				prevFabric = prev.Input.FabricReference.Data
			}
		}
	}

	for i := range doc.Poses {
		pose := &doc.Poses[i]
		prevRef := prevPoses.resolve(i, pose.SlotKey)
		if pose.SlotKey == "" {
			pose.SlotKey = uuid.NewString()
		}
		baseName := fmt.Sprintf("%s_pose_%s", doc.ID, pose.SlotKey)
		field, err := r.reconcileField(ctx, pose.GeneratedImage, prevRef, folderID, baseName)
		if err != nil {
			return nil, err
		}
		pose.GeneratedImage = field
	}

	if doc.Input != nil {
		for i := range doc.Input.ProductImages {
			img := &doc.Input.ProductImages[i]
			prevRef := prevProducts.resolve(i, img.SlotKey)
			if img.SlotKey == "" {
				img.SlotKey = uuid.NewString()
			}
			baseName := fmt.Sprintf("%s_product_%s", doc.ID, img.SlotKey)
			field, err := r.reconcileField(ctx, img.Data, prevRef, folderID, baseName)
			if err != nil {
				return nil, err
			}
			img.Data = field
		}
		if doc.Input.FaceReference != nil {
			field, err := r.reconcileField(ctx, doc.Input.FaceReference.Data, prevFace, folderID, doc.ID+"_face")
			if err != nil {
				return nil, err
			}
			doc.Input.FaceReference.Data = field
		}
		if doc.Input.FabricReference != nil {
			field, err := r.reconcileField(ctx, doc.Input.FabricReference.Data, prevFabric, folderID, doc.ID+"_fabric")
			if err != nil {
				return nil, err
			}
			doc.Input.FabricReference.Data = field
		}
	}

	return doc, nil
}

// reconcileField decides one image slot: upload new, overwrite the previous
// blob, carry the previous reference forward, or leave absent.
func (r *Reconciler) reconcileField(ctx context.Context, field, prevRef models.ImageField, folderID, baseName string) (models.ImageField, error) {
	if field.IsInline() {
		return r.codec.Externalize(ctx, field, folderID, baseName, prevRef.BlobID())
	}
	if field.IsAbsent() && prevRef.IsBlobRef() {
		return prevRef, nil
	}
	// Absent with no previous image, or an opaque value (already a token,
	// a URL) that Externalize would pass through anyway.
	return field, nil
}

func cloneDocument(doc *models.ConceptDocument) *models.ConceptDocument {
	out := *doc
	out.Poses = append([]models.Pose(nil), doc.Poses...)
	if doc.Input != nil {
		in := *doc.Input
		in.ProductImages = append([]models.ImageSlot(nil), doc.Input.ProductImages...)
		if doc.Input.FaceReference != nil {
			face := *doc.Input.FaceReference
			in.FaceReference = &face
		}
		if doc.Input.FabricReference != nil {
			fabric := *doc.Input.FabricReference
			in.FabricReference = &fabric
		}
		out.Input = &in
	}
	return &out
}
