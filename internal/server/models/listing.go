package models

// ImageView is an image as presented on the read path, with a short-lived
// signed URL attached.
type ImageView struct {
	ObjectRef string `json:"object_ref"`
	SignedURL string `json:"signed_url"`
	Tag       string `json:"tag,omitempty"`
	Caption   string `json:"caption,omitempty"`
	IsHero    bool   `json:"is_hero"`
	SortOrder int    `json:"sort_order"`
}

// ListingWithImages is one listing row joined with its ordered images.
// Fields carries the raw listing columns keyed by column name, since the
// column set varies per category.
type ListingWithImages struct {
	ListingID    string         `json:"listing_id"`
	Category     string         `json:"category"`
	Fields       map[string]any `json:"fields"`
	Images       []ImageView    `json:"images"`
	HeroImageURL string         `json:"hero_image_url,omitempty"`
}

// Pagination describes one page of a browse feed.
type Pagination struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// BrowsePage is one page of the public browse feed.
type BrowsePage struct {
	Items      []ListingWithImages `json:"items"`
	Pagination Pagination          `json:"pagination"`
}
