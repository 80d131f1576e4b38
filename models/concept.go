package models

import (
	"regexp"
	"strings"
)

// BlobRefPrefix marks an image field whose payload lives in the blob store.
// The token format is kept as-is for compatibility with documents already at
// rest.
const BlobRefPrefix = "DRIVE_FILE:"

// dataURIPattern matches inline image payloads. The mime charset is
// deliberately narrow; anything else is treated as an opaque value.
var dataURIPattern = regexp.MustCompile(`^data:([A-Za-z+/-]+);base64,(.+)$`)

// ImageField is a tagged string value: an inline data URI, a blob reference
// token, or empty (absent). Anything else is carried through untouched.
type ImageField string

// IsAbsent reports whether the field carries no image at all.
func (f ImageField) IsAbsent() bool {
	return f == ""
}

// IsBlobRef reports whether the field is a blob reference token.
func (f ImageField) IsBlobRef() bool {
	return strings.HasPrefix(string(f), BlobRefPrefix)
}

// BlobID returns the blob id inside a reference token, or "" if the field is
// not a reference.
func (f ImageField) BlobID() string {
	if !f.IsBlobRef() {
		return ""
	}
	return strings.TrimPrefix(string(f), BlobRefPrefix)
}

// ParseDataURI splits an inline field into mime type and base64 payload.
// ok is false for absent fields, blob references and unrecognized strings.
func (f ImageField) ParseDataURI() (mime, payload string, ok bool) {
	m := dataURIPattern.FindStringSubmatch(string(f))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsInline reports whether the field is a well-formed data URI.
func (f ImageField) IsInline() bool {
	_, _, ok := f.ParseDataURI()
	return ok
}

// NewBlobRef builds a reference token for a blob id.
func NewBlobRef(blobID string) ImageField {
	return ImageField(BlobRefPrefix + blobID)
}

// Pose is one shot setup within a concept.
type Pose struct {
	SlotKey         string     `json:"slotKey,omitempty"`
	PoseTitle       string     `json:"poseTitle,omitempty"`
	PoseDescription string     `json:"poseDescription,omitempty"`
	PosePrompt      string     `json:"posePrompt,omitempty"`
	IsFaceLocked    bool       `json:"isFaceLocked"`
	IsOutfitLocked  bool       `json:"isOutfitLocked"`
	GeneratedImage  ImageField `json:"generatedImage,omitempty"`
}

// ImageSlot is one image-bearing record in the input bundle.
type ImageSlot struct {
	SlotKey  string     `json:"slotKey,omitempty"`
	Data     ImageField `json:"data,omitempty"`
	MimeType string     `json:"mimeType,omitempty"`
}

// InputBundle holds the reference material a concept was generated from.
type InputBundle struct {
	ProductImages   []ImageSlot `json:"productImages"`
	FaceReference   *ImageSlot  `json:"faceReference,omitempty"`
	FabricReference *ImageSlot  `json:"fabricReference,omitempty"`
}

// ConceptDocument is one creative concept for a product shoot. At rest every
// non-absent image field must be a blob reference; in transit to the UI every
// image field must be inline or absent.
type ConceptDocument struct {
	ID            string       `json:"id"`
	ConceptNameVn string       `json:"conceptNameVn,omitempty"`
	ConceptNameEn string       `json:"conceptNameEn,omitempty"`
	SalesTarget   string       `json:"salesTarget,omitempty"`
	ShootLocation string       `json:"shootLocation,omitempty"`
	Poses         []Pose       `json:"poses"`
	Input         *InputBundle `json:"input,omitempty"`
}

// CollectBlobRefs gathers the blob ids of every reference token anywhere in
// the document.
func (d *ConceptDocument) CollectBlobRefs() []string {
	var ids []string
	add := func(f ImageField) {
		if f.IsBlobRef() {
			ids = append(ids, f.BlobID())
		}
	}
	for _, p := range d.Poses {
		add(p.GeneratedImage)
	}
	if d.Input != nil {
		for _, img := range d.Input.ProductImages {
			add(img.Data)
		}
		if d.Input.FaceReference != nil {
			add(d.Input.FaceReference.Data)
		}
		if d.Input.FabricReference != nil {
			add(d.Input.FabricReference.Data)
		}
	}
	return ids
}
