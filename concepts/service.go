package concepts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/atheastudio/creative-director/models"
	"github.com/atheastudio/creative-director/store"
	"golang.org/x/sync/errgroup"
)

// ErrMissingUserID is returned when an operation is called without a user.
var ErrMissingUserID = errors.New("userId is required")

// ErrMissingConceptID is returned when save/delete lacks a concept id.
var ErrMissingConceptID = errors.New("conceptId is required")

const metadataMimeType = "application/json"

// Service owns a user's concept folder: every metadata document in it and
// every blob those documents reference. Save/load/delete all go through here;
// the HTTP handlers are thin adapters over it.
type Service struct {
	blobs store.BlobStore
	rec   *Reconciler
	res   *Restorer
}

func NewService(blobs store.BlobStore) *Service {
	codec := &Codec{Blobs: blobs}
	return &Service{
		blobs: blobs,
		rec:   &Reconciler{codec: codec},
		res:   &Restorer{codec: codec},
	}
}

func metadataName(conceptID string) string {
	return "concept_" + conceptID + ".json"
}

// Save upserts one concept into the user's folder. It reports whether an
// existing document was updated rather than a new one created.
func (s *Service) Save(ctx context.Context, userID, conceptID string, doc *models.ConceptDocument) (isUpdate bool, err error) {
	if userID == "" {
		return false, ErrMissingUserID
	}
	if conceptID == "" {
		return false, ErrMissingConceptID
	}

	folderID, err := s.blobs.EnsureFolder(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to prepare user folder: %w", err)
	}

	doc.ID = conceptID
	existing, prev, err := s.findExisting(ctx, folderID, doc)
	if err != nil {
		return false, err
	}

	persistable, err := s.rec.Reconcile(ctx, doc, prev, folderID)
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(persistable)
	if err != nil {
		return false, fmt.Errorf("failed to encode concept %s: %w", conceptID, err)
	}

	if existing != nil {
		if err := s.blobs.UpdateContent(ctx, existing.ID, data, metadataMimeType); err != nil {
			return false, fmt.Errorf("failed to update concept %s: %w", conceptID, err)
		}
		return true, nil
	}

	meta := store.FileMetadata{
		Name:     metadataName(conceptID),
		MimeType: metadataMimeType,
		Parent:   folderID,
	}
	if _, err := s.blobs.Create(ctx, meta, data); err != nil {
		return false, fmt.Errorf("failed to create concept %s: %w", conceptID, err)
	}
	return false, nil
}

// findExisting locates the stored version of doc: first by id, then by
// display name. The name fallback recovers concepts whose client-generated
// id drifted between sessions; without it each drift would mint a duplicate
// document.
func (s *Service) findExisting(ctx context.Context, folderID string, doc *models.ConceptDocument) (*store.FileMetadata, *models.ConceptDocument, error) {
	files, err := s.blobs.List(ctx, store.ListQuery{Parent: folderID, Name: metadataName(doc.ID)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up concept %s: %w", doc.ID, err)
	}
	if len(files) > 0 {
		f := files[0]
		prev := s.readDocument(ctx, f)
		return &f, prev, nil
	}

	all, err := s.listMetadataFiles(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	for _, f := range all {
		prev := s.readDocument(ctx, f)
		if prev == nil {
			continue
		}
		vnMatch := doc.ConceptNameVn != "" && prev.ConceptNameVn == doc.ConceptNameVn
		enMatch := doc.ConceptNameEn != "" && prev.ConceptNameEn == doc.ConceptNameEn
		if vnMatch || enMatch {
			f := f
			return &f, prev, nil
		}
	}
	return nil, nil, nil
}

// readDocument fetches and parses one metadata file, returning nil for
// corrupt or unreadable documents.
func (s *Service) readDocument(ctx context.Context, f store.FileMetadata) *models.ConceptDocument {
	data, err := s.blobs.Content(ctx, f.ID)
	if err != nil {
		log.Printf("[Concepts] Failed to fetch document %s: %v", f.Name, err)
		return nil
	}
	var doc models.ConceptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[Concepts] Skipping unparseable document %s: %v", f.Name, err)
		return nil
	}
	return &doc
}

func (s *Service) listMetadataFiles(ctx context.Context, folderID string) ([]store.FileMetadata, error) {
	files, err := s.blobs.List(ctx, store.ListQuery{Parent: folderID, NamePrefix: "concept_"})
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	var docs []store.FileMetadata
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".json") {
			docs = append(docs, f)
		}
	}
	return docs, nil
}

// Load returns every readable concept in the user's folder, images restored
// to inline form, newest-first (reverse of the store's listing order).
// Documents restore independently and concurrently; a corrupt one is skipped,
// never fatal.
func (s *Service) Load(ctx context.Context, userID string) ([]*models.ConceptDocument, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	folderID, err := s.blobs.EnsureFolder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare user folder: %w", err)
	}

	files, err := s.listMetadataFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	restored := make([]*models.ConceptDocument, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if doc := s.readDocument(gctx, f); doc != nil {
				restored[i] = s.res.Restore(gctx, doc)
			}
			return nil
		})
	}
	_ = g.Wait()

	concepts := make([]*models.ConceptDocument, 0, len(restored))
	for i := len(restored) - 1; i >= 0; i-- {
		if restored[i] != nil {
			concepts = append(concepts, restored[i])
		}
	}
	return concepts, nil
}

// Delete removes a concept's metadata document and every blob it references.
// Deleting a concept that does not exist is a no-op. Per-blob failures are
// logged and swallowed; a partial delete still reports success.
func (s *Service) Delete(ctx context.Context, userID, conceptID string) error {
	if userID == "" {
		return ErrMissingUserID
	}
	if conceptID == "" {
		return ErrMissingConceptID
	}

	folderID, err := s.blobs.EnsureFolder(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to prepare user folder: %w", err)
	}

	files, err := s.blobs.List(ctx, store.ListQuery{Parent: folderID, Name: metadataName(conceptID)})
	if err != nil {
		return fmt.Errorf("failed to look up concept %s: %w", conceptID, err)
	}
	if len(files) == 0 {
		return nil
	}
	file := files[0]

	// An unparseable document still gets its metadata file removed; its
	// blobs are unreachable from here and stay orphaned.
	doc := s.readDocument(ctx, file)

	if err := s.blobs.Delete(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to delete concept %s: %w", conceptID, err)
	}

	if doc == nil {
		return nil
	}
	for _, blobID := range doc.CollectBlobRefs() {
		if err := s.blobs.Delete(ctx, blobID); err != nil {
			log.Printf("[Concepts] Failed to delete blob %s of concept %s: %v", blobID, conceptID, err)
		}
	}
	return nil
}
