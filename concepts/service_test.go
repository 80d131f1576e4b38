package concepts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/atheastudio/creative-director/models"
	"github.com/atheastudio/creative-director/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument(id string) *models.ConceptDocument {
	return &models.ConceptDocument{
		ID:            id,
		ConceptNameVn: "Đêm Tiệc",
		ConceptNameEn: "Party Night",
		SalesTarget:   "Tết collection",
		ShootLocation: "Studio A",
		Poses: []models.Pose{
			{PoseTitle: "Hero shot", PosePrompt: "full body, soft light", GeneratedImage: pngURI},
			{PoseTitle: "Detail", IsFaceLocked: true},
		},
		Input: &models.InputBundle{
			ProductImages: []models.ImageSlot{
				{Data: "data:image/jpeg;base64,AAAA", MimeType: "image/jpeg"},
			},
			FaceReference: &models.ImageSlot{Data: pngURI, MimeType: "image/png"},
		},
	}
}

// storedDocument reads the persisted metadata JSON back out of the store.
func storedDocument(t *testing.T, blobs *store.MemStore, userID, conceptID string) *models.ConceptDocument {
	t.Helper()
	ctx := context.Background()
	folderID, err := blobs.EnsureFolder(ctx, userID)
	require.NoError(t, err)

	files, err := blobs.List(ctx, store.ListQuery{Parent: folderID, Name: metadataName(conceptID)})
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := blobs.Content(ctx, files[0].ID)
	require.NoError(t, err)

	var doc models.ConceptDocument
	require.NoError(t, json.Unmarshal(data, &doc))
	return &doc
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	original := testDocument("c1")
	isUpdate, err := svc.Save(ctx, "user1", "c1", original)
	require.NoError(t, err)
	assert.False(t, isUpdate)

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	got := concepts[0]

	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "Đêm Tiệc", got.ConceptNameVn)
	assert.Equal(t, "Party Night", got.ConceptNameEn)
	assert.Equal(t, "Tết collection", got.SalesTarget)
	assert.Equal(t, "Studio A", got.ShootLocation)
	require.Len(t, got.Poses, 2)
	assert.Equal(t, "Hero shot", got.Poses[0].PoseTitle)
	assert.True(t, got.Poses[1].IsFaceLocked)

	// Every originally-inline image comes back byte-for-byte equal.
	assert.Equal(t, models.ImageField(pngURI), got.Poses[0].GeneratedImage)
	assert.True(t, got.Poses[1].GeneratedImage.IsAbsent())
	require.Len(t, got.Input.ProductImages, 1)
	assert.Equal(t, models.ImageField("data:image/jpeg;base64,AAAA"), got.Input.ProductImages[0].Data)
	assert.Equal(t, models.ImageField(pngURI), got.Input.FaceReference.Data)

	// The UI never sees a blob reference.
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), models.BlobRefPrefix)
}

func TestSaveHidesInlineDataAtRest(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	stored := storedDocument(t, blobs, "user1", "c1")
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "data:")

	assert.True(t, stored.Poses[0].GeneratedImage.IsBlobRef())
	assert.True(t, stored.Input.ProductImages[0].Data.IsBlobRef())
	assert.True(t, stored.Input.FaceReference.Data.IsBlobRef())
}

func TestUpdateReusesBlobIdentity(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	isUpdate, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)
	assert.False(t, isUpdate)

	first := storedDocument(t, blobs, "user1", "c1")
	firstRef := first.Poses[0].GeneratedImage
	require.True(t, firstRef.IsBlobRef())
	createsAfterFirst := blobs.CreateCalls

	// Same concept again with a changed image in poses[0]. The stored doc
	// carries slot keys now; the client echoes them back.
	second := testDocument("c1")
	second.Poses[0].SlotKey = first.Poses[0].SlotKey
	second.Poses[1].SlotKey = first.Poses[1].SlotKey
	second.Poses[0].GeneratedImage = "data:image/png;base64,AAAB"
	second.Input.ProductImages[0].SlotKey = first.Input.ProductImages[0].SlotKey

	isUpdate, err = svc.Save(ctx, "user1", "c1", second)
	require.NoError(t, err)
	assert.True(t, isUpdate)

	assert.Equal(t, createsAfterFirst, blobs.CreateCalls, "second save must not create new blobs")

	updated := storedDocument(t, blobs, "user1", "c1")
	assert.Equal(t, firstRef, updated.Poses[0].GeneratedImage, "blob id must survive the update")
}

func TestUpdatedSlotRestoresWithNewMime(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)
	first := storedDocument(t, blobs, "user1", "c1")

	// Replace the PNG in poses[0] with a JPEG under the same slot key. The
	// blob id is reused, but the restored field must carry the new mime.
	second := testDocument("c1")
	for i := range second.Poses {
		second.Poses[i].SlotKey = first.Poses[i].SlotKey
	}
	second.Input.ProductImages[0].SlotKey = first.Input.ProductImages[0].SlotKey
	second.Poses[0].GeneratedImage = "data:image/jpeg;base64,AAAB"

	isUpdate, err := svc.Save(ctx, "user1", "c1", second)
	require.NoError(t, err)
	assert.True(t, isUpdate)

	updated := storedDocument(t, blobs, "user1", "c1")
	assert.Equal(t, first.Poses[0].GeneratedImage, updated.Poses[0].GeneratedImage)

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)

	mime, payload, ok := concepts[0].Poses[0].GeneratedImage.ParseDataURI()
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", mime, "restored mime follows the latest payload")
	assert.Equal(t, "AAAB", payload)
}

func TestUpdateCarriesForwardAbsentFields(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)
	first := storedDocument(t, blobs, "user1", "c1")

	// Client sends the same concept with the image stripped (unchanged on
	// its side). The previous reference is carried forward untouched.
	second := testDocument("c1")
	for i := range second.Poses {
		second.Poses[i].SlotKey = first.Poses[i].SlotKey
	}
	second.Input.ProductImages[0].SlotKey = first.Input.ProductImages[0].SlotKey
	second.Poses[0].GeneratedImage = ""

	updates := blobs.UpdateCalls
	_, err = svc.Save(ctx, "user1", "c1", second)
	require.NoError(t, err)

	updated := storedDocument(t, blobs, "user1", "c1")
	assert.Equal(t, first.Poses[0].GeneratedImage, updated.Poses[0].GeneratedImage)
	// Only the inline fields and the metadata document were rewritten, not
	// the carried-forward blob.
	assert.Equal(t, updates+3, blobs.UpdateCalls, "product + face blobs + metadata doc")
}

func TestKeylessClientFallsBackToPosition(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)
	first := storedDocument(t, blobs, "user1", "c1")

	// A client that never learned the stored slot keys (or a legacy
	// document) still reconciles by array position.
	second := testDocument("c1")
	second.Poses[0].GeneratedImage = "data:image/png;base64,AAAB"
	creates := blobs.CreateCalls
	_, err = svc.Save(ctx, "user1", "c1", second)
	require.NoError(t, err)

	assert.Equal(t, creates, blobs.CreateCalls, "positional fallback must reuse the existing blobs")
	updated := storedDocument(t, blobs, "user1", "c1")
	assert.Equal(t, first.Poses[0].GeneratedImage, updated.Poses[0].GeneratedImage)
}

func TestNameFallbackMatching(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	// Fresh client-generated id, same Vietnamese name: treated as an update
	// of the existing document, no duplicate file.
	creates := blobs.CreateCalls
	drifted := testDocument("c2-drifted")
	isUpdate, err := svc.Save(ctx, "user1", "c2-drifted", drifted)
	require.NoError(t, err)
	assert.True(t, isUpdate)
	assert.Equal(t, creates, blobs.CreateCalls, "matched document's blobs are reused")

	folderID, _ := blobs.EnsureFolder(ctx, "user1")
	files, err := blobs.List(ctx, store.ListQuery{Parent: folderID, NamePrefix: "concept_"})
	require.NoError(t, err)
	require.Len(t, files, 1, "no duplicate metadata file")
	// Same file identity, new content.
	assert.Equal(t, metadataName("c1"), files[0].Name)

	data, err := blobs.Content(ctx, files[0].ID)
	require.NoError(t, err)
	var stored models.ConceptDocument
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "c2-drifted", stored.ID)
}

func TestLoadSkipsCorruptDocuments(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	folderID, _ := blobs.EnsureFolder(ctx, "user1")
	_, err = blobs.Create(ctx, store.FileMetadata{
		Name:     "concept_broken.json",
		MimeType: "application/json",
		Parent:   folderID,
	}, []byte("{not json"))
	require.NoError(t, err)

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.Equal(t, "c1", concepts[0].ID)
}

func TestLoadReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	for _, id := range []string{"c1", "c2", "c3"} {
		doc := testDocument(id)
		doc.ConceptNameVn = "Concept " + id
		doc.ConceptNameEn = ""
		_, err := svc.Save(ctx, "user1", id, doc)
		require.NoError(t, err)
	}

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 3)
	assert.Equal(t, "c3", concepts[0].ID)
	assert.Equal(t, "c1", concepts[2].ID)
}

func TestLoadSynthesizesMissingInput(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	folderID, _ := blobs.EnsureFolder(ctx, "user1")
	legacy := &models.ConceptDocument{ID: "old", ConceptNameVn: "Cũ", Poses: []models.Pose{{PoseTitle: "P1"}}}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	_, err = blobs.Create(ctx, store.FileMetadata{
		Name:     metadataName("old"),
		MimeType: "application/json",
		Parent:   folderID,
	}, data)
	require.NoError(t, err)

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)

	got := concepts[0]
	require.NotNil(t, got.Input)
	assert.NotNil(t, got.Input.ProductImages)
	assert.Empty(t, got.Input.ProductImages)
	require.NotNil(t, got.Input.FaceReference)
	assert.True(t, got.Input.FaceReference.Data.IsAbsent())
	require.NotNil(t, got.Input.FabricReference)
	assert.True(t, got.Input.FabricReference.Data.IsAbsent())
}

func TestLoadDegradesBrokenReferences(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	// Delete one blob behind the document's back.
	stored := storedDocument(t, blobs, "user1", "c1")
	require.NoError(t, blobs.Delete(ctx, stored.Poses[0].GeneratedImage.BlobID()))

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)
	assert.True(t, concepts[0].Poses[0].GeneratedImage.IsAbsent(), "broken ref degrades to no image")
	assert.True(t, concepts[0].Input.FaceReference.Data.IsInline(), "intact refs still restore")
}

func TestDeleteRemovesDocumentAndBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)
	require.Equal(t, 4, blobs.FileCount(), "metadata + 3 blobs")

	require.NoError(t, svc.Delete(ctx, "user1", "c1"))
	assert.Equal(t, 0, blobs.FileCount())
}

func TestDeleteToleratesMissingBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	// One referenced blob disappears behind the document's back. The
	// failed blob delete is logged and swallowed; the delete as a whole
	// still succeeds and removes everything else.
	stored := storedDocument(t, blobs, "user1", "c1")
	require.NoError(t, blobs.Delete(ctx, stored.Poses[0].GeneratedImage.BlobID()))

	require.NoError(t, svc.Delete(ctx, "user1", "c1"))
	assert.Equal(t, 0, blobs.FileCount())
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	require.NoError(t, svc.Delete(ctx, "user1", "never-existed"))
	assert.Equal(t, 0, blobs.DeleteCalls)
}

func TestDeleteCorruptDocumentRemovesMetadataOnly(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	folderID, _ := blobs.EnsureFolder(ctx, "user1")
	_, err := blobs.Create(ctx, store.FileMetadata{
		Name:     metadataName("bad"),
		MimeType: "application/json",
		Parent:   folderID,
	}, []byte("%%%"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "user1", "bad"))
	assert.Equal(t, 0, blobs.FileCount())
}

func TestValidationErrors(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemStore())

	_, err := svc.Save(ctx, "", "c1", testDocument("c1"))
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, err = svc.Save(ctx, "user1", "", testDocument(""))
	assert.ErrorIs(t, err, ErrMissingConceptID)

	_, err = svc.Load(ctx, "")
	assert.ErrorIs(t, err, ErrMissingUserID)

	assert.ErrorIs(t, svc.Delete(ctx, "", "c1"), ErrMissingUserID)
	assert.ErrorIs(t, svc.Delete(ctx, "user1", ""), ErrMissingConceptID)
}

func TestSlotKeysAssignedOnFirstSave(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	_, err := svc.Save(ctx, "user1", "c1", testDocument("c1"))
	require.NoError(t, err)

	stored := storedDocument(t, blobs, "user1", "c1")
	keys := map[string]bool{}
	for _, p := range stored.Poses {
		require.NotEmpty(t, p.SlotKey)
		keys[p.SlotKey] = true
	}
	for _, img := range stored.Input.ProductImages {
		require.NotEmpty(t, img.SlotKey)
		keys[img.SlotKey] = true
	}
	assert.Len(t, keys, 3, "slot keys are distinct")
}

func TestReorderedPosesKeepTheirBlobs(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	doc := testDocument("c1")
	doc.Poses[1].GeneratedImage = "data:image/png;base64,AAAB"
	_, err := svc.Save(ctx, "user1", "c1", doc)
	require.NoError(t, err)
	first := storedDocument(t, blobs, "user1", "c1")

	// Swap the two poses client-side; slot keys travel with them.
	second := testDocument("c1")
	second.Poses = []models.Pose{first.Poses[1], first.Poses[0]}
	second.Poses[0].GeneratedImage = "data:image/png;base64,AAAC"
	second.Poses[1].GeneratedImage = ""
	second.Input.ProductImages[0].SlotKey = first.Input.ProductImages[0].SlotKey

	creates := blobs.CreateCalls
	_, err = svc.Save(ctx, "user1", "c1", second)
	require.NoError(t, err)
	assert.Equal(t, creates, blobs.CreateCalls)

	updated := storedDocument(t, blobs, "user1", "c1")
	assert.Equal(t, first.Poses[1].GeneratedImage, updated.Poses[0].GeneratedImage,
		"moved pose keeps the blob that belongs to its slot key")
	assert.Equal(t, first.Poses[0].GeneratedImage, updated.Poses[1].GeneratedImage)
}

func TestScenarioSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	blobs := store.NewMemStore()
	svc := NewService(blobs)

	doc := &models.ConceptDocument{
		ID:            "c1",
		ConceptNameVn: "Đêm Tiệc",
		Poses:         []models.Pose{{GeneratedImage: pngURI}},
		Input:         &models.InputBundle{ProductImages: []models.ImageSlot{}},
	}
	isUpdate, err := svc.Save(ctx, "user1", "c1", doc)
	require.NoError(t, err)
	assert.False(t, isUpdate)

	concepts, err := svc.Load(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, concepts, 1)

	img := string(concepts[0].Poses[0].GeneratedImage)
	require.True(t, strings.HasPrefix(img, "data:image/png;base64,"))
	assert.Equal(t, "AAAA", strings.TrimPrefix(img, "data:image/png;base64,"))
}
