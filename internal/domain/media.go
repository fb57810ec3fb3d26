package domain

// LinkKind classifies a candidate URL for metadata lookup and capture.
type LinkKind string

const (
	LinkRepository LinkKind = "repository"
	LinkGeneric    LinkKind = "generic"
)

// Image is either inline bytes or a remote URL that still has to be downloaded.
type Image struct {
	Data        []byte
	URL         string
	ContentType string
}

// Remote reports whether the image must be fetched before upload.
func (i Image) Remote() bool {
	return len(i.Data) == 0 && i.URL != ""
}

// RepoMetadata describes a repository link. Partial is set when the host API
// was unreachable and only the URL path was used.
type RepoMetadata struct {
	Owner       string
	Name        string
	FullName    string
	Description string
	Language    string
	Stars       int
	Topics      []string
	Partial     bool
}

// PageMetadata describes a generic web page.
type PageMetadata struct {
	Title       string
	Description string
}

// LinkMetadata is the type-specific metadata fetched for a candidate.
type LinkMetadata struct {
	Kind       LinkKind
	Repository *RepoMetadata
	Page       *PageMetadata
}

// Post is what the publish adapter sends: an album of images with one caption.
type Post struct {
	Title       string
	Description string
	URL         string
	Tags        []string
	Metadata    LinkMetadata
	Images      []Image
}

// Generated is an AI-written title and description for a content snippet.
type Generated struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}
