package search

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dkoleva/inkwell/internal/posts"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

type postGetter interface {
	Get(ctx context.Context, slug string) (*posts.Post, error)
}

// Watcher follows the posts directory for edits made behind the service's
// back, e.g. someone fixing a typo in a markdown document over ssh. A
// changed or removed document gets reindexed and reported through onChange
// (used to drop cached responses). Editor saves often fire several events
// in a burst, so events are debounced per path.
type Watcher struct {
	mutex       sync.Mutex
	watcher     *fsnotify.Watcher
	dir         string
	index       *Index
	repo        postGetter
	onChange    func(slug string)
	pending     map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

func NewWatcher(dir string, index *Index, repo postGetter, onChange func(slug string)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsWatcher,
		dir:         dir,
		index:       index,
		repo:        repo,
		onChange:    onChange,
		pending:     make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return nil
	}
	w.running = true
	w.mutex.Unlock()

	if err := w.watcher.Add(w.dir); err != nil {
		return err
	}

	log.Debugf("posts watcher: watching %s", w.dir)
	go w.run(ctx)

	return nil
}

func (w *Watcher) Stop() {
	w.mutex.Lock()
	if !w.running {
		w.mutex.Unlock()
		return
	}
	w.running = false
	w.mutex.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		log.Errorf("posts watcher: close: %s", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.debounceDur / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mutex.Lock()
			w.pending[event.Name] = time.Now()
			w.mutex.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("posts watcher: %s", err)
		case <-ticker.C:
			w.processPending(ctx)
		}
	}
}

func (w *Watcher) processPending(ctx context.Context) {
	now := time.Now()

	w.mutex.Lock()
	var due []string
	for path, lastEvent := range w.pending {
		if now.Sub(lastEvent) >= w.debounceDur {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mutex.Unlock()

	for _, path := range due {
		slug := strings.TrimSuffix(filepath.Base(path), ".md")
		w.refresh(ctx, slug)
	}
}

func (w *Watcher) refresh(ctx context.Context, slug string) {
	if w.onChange != nil {
		w.onChange(slug)
	}

	post, err := w.repo.Get(ctx, slug)
	if err != nil {
		if errors.Is(err, posts.ErrPostNotFound) {
			if err := w.index.RemovePost(slug); err != nil {
				log.Errorf("posts watcher: remove %s from index: %s", slug, err)
			} else {
				log.Debugf("posts watcher: [%s] gone, removed from index", slug)
			}
			return
		}
		log.Errorf("posts watcher: get %s: %s", slug, err)
		return
	}

	if err := w.index.IndexPost(post); err != nil {
		log.Errorf("posts watcher: reindex %s: %s", slug, err)
		return
	}
	log.Debugf("posts watcher: [%s] reindexed", slug)
}
