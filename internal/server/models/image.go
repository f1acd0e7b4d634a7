// Package models defines the data records persisted by the listing service.
package models

import "time"

// Image is one image row associated with a listing. An image belongs to
// exactly one listing and one category namespace; the object store owns the
// underlying bytes, referenced by ObjectRef.
type Image struct {
	// ListingID joins the image to its listing; (ListingID, ObjectRef) is
	// the composite identity.
	ListingID string
	// OwnerID mirrors the listing's owner for cascade deletes.
	OwnerID string
	// Category is the listing category discriminator.
	Category string
	// ObjectRef is the durable object-store key. Immutable once written.
	ObjectRef string

	Tag       string
	Caption   string
	IsHero    bool
	SortOrder int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageMetadata is caller-supplied per-image metadata for create/update.
// An empty ObjectRef marks a new image, paired positionally with an
// uploaded file; a non-empty one refers to an image that already exists.
type ImageMetadata struct {
	ObjectRef string `json:"object_ref"`
	Tag       string `json:"tag"`
	Caption   string `json:"caption"`
	IsHero    bool   `json:"is_hero"`
	SortOrder int    `json:"sort_order"`
}

// ImageFile is one raw uploaded image.
type ImageFile struct {
	Data        []byte
	ContentType string
}
