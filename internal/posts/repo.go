package posts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dkoleva/inkwell/internal/frontmatter"
	"github.com/dkoleva/inkwell/internal/telemetry/tracing"
	"github.com/dkoleva/inkwell/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const postFileExt = ".md"

var _ postsRepo = (*Repo)(nil)

// Repo stores posts as individual <slug>.md documents in one directory.
// The documents are hand-editable, so every read decodes from disk instead
// of trusting an in-memory copy. Mutations are serialized behind the write
// lock; concurrent creates for the same derived slug cannot overwrite each
// other.
type Repo struct {
	dir   string
	mutex sync.RWMutex
	// injectable clock, used to stamp pubDate on newly created posts
	NowFunc func() time.Time
}

func NewRepo(dir string) (*Repo, error) {
	if dir == "" {
		return nil, fmt.Errorf("posts dir cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create posts dir: %w", err)
	}
	return &Repo{
		dir:     dir,
		NowFunc: time.Now,
	}, nil
}

func (r *Repo) postPath(slug string) string {
	return filepath.Join(r.dir, slug+postFileExt)
}

// slugIsSafe guards against path escapes via crafted slugs coming
// from URL parameters
func slugIsSafe(slug string) bool {
	return slug != "" && slug != "." && slug != ".." &&
		!strings.ContainsAny(slug, "/\\")
}

func (r *Repo) decodeFile(slug string) (*Post, error) {
	raw, err := os.ReadFile(r.postPath(slug))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("read post %s: %w", slug, err)
	}

	fields, body := frontmatter.Decode(string(raw))
	return &Post{
		Slug:        slug,
		Title:       fields.Str("title"),
		Description: fields.Str("description"),
		PubDate:     fields.Str("pubDate"),
		Category:    fields.Str("category"),
		Tags:        fields.List("tags"),
		Draft:       fields.Bool("draft"),
		Content:     body,
	}, nil
}

func (r *Repo) writeFile(post *Post) error {
	doc := frontmatter.Encode(frontmatter.Meta{
		Title:       post.Title,
		Description: post.Description,
		PubDate:     post.PubDate,
		Category:    post.Category,
		Tags:        post.Tags,
		Draft:       post.Draft,
	}, post.Content)

	if err := os.WriteFile(r.postPath(post.Slug), []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write post %s: %w", post.Slug, err)
	}
	return nil
}

// List returns all posts in the directory, in no particular order.
// Callers sort, conventionally by pubDate descending.
func (r *Repo) List(ctx context.Context) (_ []*Post, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "postsRepo.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read posts dir: %w", err)
	}

	var all []*Post
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), postFileExt) {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), postFileExt)
		post, err := r.decodeFile(slug)
		if err != nil {
			return nil, err
		}
		all = append(all, post)
	}

	span.SetAttributes(attribute.Int("posts.count", len(all)))
	return all, nil
}

func (r *Repo) Get(ctx context.Context, slug string) (_ *Post, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "postsRepo.get")
	span.SetAttributes(attribute.String("slug", slug))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !slugIsSafe(slug) {
		return nil, ErrPostNotFound
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.decodeFile(slug)
}

// Save writes a post document. An empty post.Slug means create: the slug
// is derived from the title and pubDate is stamped with the current date.
// A non-empty slug means full overwrite of that document, with the stored
// pubDate carried over. The returned slug is the one written.
func (r *Repo) Save(ctx context.Context, post Post) (_ string, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "postsRepo.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if post.Title == "" {
		return "", ErrTitleEmpty
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if post.Slug == "" {
		post.Slug = Slugify(post.Title)
		span.SetAttributes(attribute.String("slug", post.Slug))

		// two posts whose titles slugify to the same value must not
		// silently overwrite each other
		if exists, err := pkg.PathExists(r.postPath(post.Slug), false); err != nil {
			return "", fmt.Errorf("check post %s: %w", post.Slug, err)
		} else if exists {
			return "", ErrSlugTaken
		}

		post.PubDate = r.NowFunc().Format("2006-01-02")
		if err := r.writeFile(&post); err != nil {
			return "", err
		}
		log.Debugf("posts repo: created [%s]", post.Slug)
		return post.Slug, nil
	}

	span.SetAttributes(attribute.String("slug", post.Slug))
	if !slugIsSafe(post.Slug) {
		return "", ErrPostNotFound
	}

	existing, err := r.decodeFile(post.Slug)
	if err != nil {
		return "", err
	}

	// pubDate is assigned at creation and survives edits
	post.PubDate = existing.PubDate
	if err := r.writeFile(&post); err != nil {
		return "", err
	}

	log.Debugf("posts repo: updated [%s]", post.Slug)
	return post.Slug, nil
}

func (r *Repo) Delete(ctx context.Context, slug string) (err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "postsRepo.delete")
	span.SetAttributes(attribute.String("slug", slug))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !slugIsSafe(slug) {
		return ErrPostNotFound
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := os.Remove(r.postPath(slug)); err != nil {
		if os.IsNotExist(err) {
			return ErrPostNotFound
		}
		return fmt.Errorf("remove post %s: %w", slug, err)
	}

	log.Debugf("posts repo: deleted [%s]", slug)
	return nil
}
