package search

import (
	"context"
	"fmt"

	"github.com/dkoleva/inkwell/internal/posts"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	log "github.com/sirupsen/logrus"
)

// Index is the full text index over published posts. Drafts never enter
// it, so public search results need no draft filtering.
type Index struct {
	index bleve.Index
}

type indexedPost struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	Content     string
}

type Result struct {
	Slug      string              `json:"slug"`
	Title     string              `json:"title"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Open opens the index at path, creating it when absent; an empty path
// gives an in-memory index that lives as long as the process.
func Open(path string) (*Index, error) {
	indexMapping := buildIndexMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	textFieldMapping := bleve.NewTextFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Description", textFieldMapping)
	docMapping.AddFieldMappingsAt("Category", bleve.NewKeywordFieldMapping())
	docMapping.AddFieldMappingsAt("Tags", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func (i *Index) Close() error {
	return i.index.Close()
}

// IndexPost adds or updates one post in the index. A draft is removed
// instead: unpublishing a post has to take it out of search.
func (i *Index) IndexPost(post *posts.Post) error {
	if post.Draft {
		return i.RemovePost(post.Slug)
	}
	return i.index.Index(post.Slug, indexedPost{
		Title:       post.Title,
		Description: post.Description,
		Category:    post.Category,
		Tags:        post.Tags,
		Content:     post.Content,
	})
}

func (i *Index) RemovePost(slug string) error {
	return i.index.Delete(slug)
}

type postLister interface {
	List(ctx context.Context) ([]*posts.Post, error)
}

// Rebuild reindexes everything from the posts repo in one batch, used at
// startup since documents may have changed on disk while we were down.
func (i *Index) Rebuild(ctx context.Context, repo postLister) error {
	all, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}

	batch := i.index.NewBatch()
	indexed := 0
	for _, post := range all {
		if post.Draft {
			batch.Delete(post.Slug)
			continue
		}
		if err := batch.Index(post.Slug, indexedPost{
			Title:       post.Title,
			Description: post.Description,
			Category:    post.Category,
			Tags:        post.Tags,
			Content:     post.Content,
		}); err != nil {
			return fmt.Errorf("batch index %s: %w", post.Slug, err)
		}
		indexed++
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	log.Debugf("search index rebuilt, %d posts indexed", indexed)
	return nil
}

// Search runs a query string query (quotes, boolean operators and fuzzy ~
// all work) and returns slugs with scores and highlighted fragments.
func (i *Index) Search(query string, limit int) ([]Result, error) {
	q := bleve.NewQueryStringQuery(query)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Fields = []string{"Title"}

	found, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]Result, 0, len(found.Hits))
	for _, hit := range found.Hits {
		result := Result{
			Slug:      hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if title, ok := hit.Fields["Title"].(string); ok {
			result.Title = title
		}
		results = append(results, result)
	}

	return results, nil
}

func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
