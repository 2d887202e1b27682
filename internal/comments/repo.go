package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dkoleva/inkwell/internal/telemetry/tracing"
	"github.com/dkoleva/inkwell/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var _ commentsRepo = (*Repo)(nil)

// Repo keeps all comments in one JSON file: a mapping from post slug to
// that post's comment partition. The file is loaded once at startup and
// rewritten wholesale after every mutation, so all mutations hold the
// write lock for their full read-modify-write cycle. Unlike the posts
// dir, a broken store file here is a hard startup failure.
type Repo struct {
	filePath   string
	mutex      sync.RWMutex
	partitions map[string][]*Comment
	// injectable clock for comment ids and timestamps
	NowFunc func() time.Time
}

func NewRepo(filePath string) (*Repo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("comments file path cannot be empty")
	}

	r := &Repo{
		filePath:   filePath,
		partitions: make(map[string][]*Comment),
		NowFunc:    time.Now,
	}

	exists, err := pkg.PathExists(filePath, false)
	if err != nil {
		return nil, fmt.Errorf("check comments file: %w", err)
	}
	if !exists {
		// created lazily on the first mutation
		log.Debugf("comments repo: no store file at %s yet", filePath)
		return r, nil
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read comments file: %w", err)
	}
	if err := json.Unmarshal(raw, &r.partitions); err != nil {
		return nil, fmt.Errorf("unmarshal comments file: %w", err)
	}

	log.Debugf("comments repo: loaded %d partitions", len(r.partitions))
	return r, nil
}

// persist writes the whole mapping to a temp file and renames it over the
// store, a crash mid-write cannot leave a torn file behind. Callers hold
// the write lock.
func (r *Repo) persist() error {
	commentsJson, err := json.MarshalIndent(r.partitions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal comments: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(r.filePath), ".comments.json.tmp")
	if err := os.WriteFile(tmpPath, commentsJson, 0o644); err != nil {
		return fmt.Errorf("write comments tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.filePath); err != nil {
		return fmt.Errorf("replace comments file: %w", err)
	}

	return nil
}

// List returns one post's partition, oldest comment first. An unknown
// slug yields an empty slice, not an error.
func (r *Repo) List(ctx context.Context, postSlug string) []*Comment {
	_, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.list")
	span.SetAttributes(attribute.String("slug", postSlug))
	defer span.End()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	partition := r.partitions[postSlug]
	listed := make([]*Comment, len(partition))
	copy(listed, partition)
	return listed
}

// ListAll returns the entire mapping; admin tooling only, not paginated.
func (r *Repo) ListAll(ctx context.Context) map[string][]*Comment {
	_, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.listAll")
	defer span.End()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make(map[string][]*Comment, len(r.partitions))
	for slug, partition := range r.partitions {
		listed := make([]*Comment, len(partition))
		copy(listed, partition)
		all[slug] = listed
	}
	return all
}

type AddParams struct {
	PostSlug    string
	Author      string
	AuthorColor string
	Content     string
	IsAuthor    bool
}

// Add appends a comment to its post's partition, creating the partition
// if needed, and persists the store.
func (r *Repo) Add(ctx context.Context, params AddParams) (_ *Comment, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.add")
	span.SetAttributes(attribute.String("slug", params.PostSlug))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := r.NowFunc()
	id := now.UnixMilli()

	partition := r.partitions[params.PostSlug]
	// two quick comments can land on the same millisecond
	if last := len(partition) - 1; last >= 0 && id <= partition[last].ID {
		id = partition[last].ID + 1
	}

	comment := &Comment{
		ID:          id,
		PostSlug:    params.PostSlug,
		Author:      params.Author,
		AuthorColor: params.AuthorColor,
		Content:     params.Content,
		CreatedAt:   now,
		IsAuthor:    params.IsAuthor,
	}

	r.partitions[params.PostSlug] = append(partition, comment)
	if err := r.persist(); err != nil {
		// roll the in-memory state back, the store could not take it
		r.partitions[params.PostSlug] = partition
		return nil, err
	}

	log.Debugf("comments repo: added %d to [%s]", comment.ID, params.PostSlug)
	return comment, nil
}

// Remove filters the given comment out of its partition. The first return
// reports whether the partition existed at all, the second whether an
// entry was actually removed; removing a missing id from an existing
// partition is not an error.
func (r *Repo) Remove(ctx context.Context, postSlug string, commentID int64) (partitionExisted, removed bool, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "commentsRepo.remove")
	span.SetAttributes(attribute.String("slug", postSlug))
	span.SetAttributes(attribute.Int64("comment.id", commentID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	partition, ok := r.partitions[postSlug]
	if !ok {
		return false, false, nil
	}

	filtered := make([]*Comment, 0, len(partition))
	for _, c := range partition {
		if c.ID == commentID {
			continue
		}
		filtered = append(filtered, c)
	}

	if len(filtered) == len(partition) {
		log.Debugf("comments repo: remove %d from [%s]: no such comment", commentID, postSlug)
		return true, false, nil
	}

	r.partitions[postSlug] = filtered
	if err := r.persist(); err != nil {
		r.partitions[postSlug] = partition
		return true, false, err
	}

	log.Debugf("comments repo: removed %d from [%s]", commentID, postSlug)
	return true, true, nil
}
