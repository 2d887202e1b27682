package posts

import "errors"

var (
	ErrPostNotFound = errors.New("post not found")
	ErrSlugTaken    = errors.New("post slug already taken")
	ErrTitleEmpty   = errors.New("post title empty")
)

// Post is one markdown document in the posts directory. The slug doubles
// as the filename stem and the primary key; Content is the document body
// without the frontmatter block.
type Post struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	PubDate     string   `json:"pubDate"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Draft       bool     `json:"draft"`
	Content     string   `json:"content"`
}
