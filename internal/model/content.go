package model

// ContentType identifies which Canvas collection a content item came from.
type ContentType string

const (
	ContentPage         ContentType = "page"
	ContentAssignment   ContentType = "assignment"
	ContentAnnouncement ContentType = "announcement"
	ContentModule       ContentType = "module"
)

// ScanContentTypes is the canonical processing order for a scan. Content
// types are always walked in this order so reports are reproducible.
var ScanContentTypes = []ContentType{
	ContentPage,
	ContentAssignment,
	ContentAnnouncement,
	ContentModule,
}

// ContentItem is one piece of course content as returned by the content
// fetcher. Immutable once fetched; owned by the scan for its duration.
type ContentItem struct {
	// ID is the Canvas identifier of the item (page URL slug or numeric id).
	ID string `json:"id"`

	// Type is the collection the item belongs to.
	Type ContentType `json:"type"`

	// Title is the human-readable name shown in issue locations.
	Title string `json:"title"`

	// RawHTML is the item body as served by Canvas.
	RawHTML string `json:"-"`

	// SourceURL is the canonical URL of the item, used as the base for
	// resolving relative references inside RawHTML.
	SourceURL string `json:"source_url,omitempty"`

	// FetchErr carries an item-scoped retrieval failure in-band so the
	// scan can record it and continue. Empty for items fetched cleanly.
	FetchErr string `json:"-"`
}
