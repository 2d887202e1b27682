package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/dkoleva/inkwell/internal/auth"
	"github.com/dkoleva/inkwell/internal/telemetry/metrics"
	"github.com/dkoleva/inkwell/pkg"

	"github.com/coocood/freecache"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	// responses for anonymous visitors are cached; admin reads go to disk
	cacheSizeBytes   = 10 * 1024 * 1024
	cacheExpireSecs  = 60
	cachedListKey    = "posts-list"
	cachedPostKeyFmt = "post::%s"
	authTokenHeader  = "X-INKWELL-TOKEN"
)

type ListResponse struct {
	Posts []*Post `json:"posts"`
	Total int     `json:"total"`
}

type savePostRequest struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Draft       bool     `json:"draft"`
	Content     string   `json:"content"`
}

type postsRepo interface {
	List(ctx context.Context) ([]*Post, error)
	Get(ctx context.Context, slug string) (*Post, error)
	Save(ctx context.Context, post Post) (string, error)
	Delete(ctx context.Context, slug string) error
}

// postIndexer keeps the full text search in step with the repo;
// implemented by the search package
type postIndexer interface {
	IndexPost(post *Post) error
	RemovePost(slug string) error
}

type Handler struct {
	repo           postsRepo
	indexer        postIndexer
	loginChecker   auth.Checker
	metricsManager *metrics.Manager
	cache          *freecache.Cache
}

func NewHandler(
	repo postsRepo,
	indexer postIndexer,
	loginChecker auth.Checker,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:           repo,
		indexer:        indexer,
		loginChecker:   loginChecker,
		metricsManager: metricsManager,
		cache:          freecache.NewCache(cacheSizeBytes),
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/posts", handler.handleList).Methods("GET", "OPTIONS").Name("list-posts")
	router.HandleFunc("/api/posts", handler.handleSave).Methods("POST", "OPTIONS").Name("save-post")
	router.HandleFunc("/api/posts/{slug}", handler.handleGet).Methods("GET", "OPTIONS").Name("get-post")
	router.HandleFunc("/api/posts/{slug}", handler.handleDelete).Methods("DELETE", "OPTIONS").Name("delete-post")
}

// InvalidateCached drops the cached responses for one slug. The posts dir
// watcher calls this when a document changes on disk behind our back.
func (handler *Handler) InvalidateCached(slug string) {
	handler.cache.Del([]byte(cachedListKey))
	handler.cache.Del([]byte(fmt.Sprintf(cachedPostKeyFmt, slug)))
}

func (handler *Handler) callerIsAdmin(r *http.Request) bool {
	token := r.Header.Get(authTokenHeader)
	if token == "" {
		return false
	}
	isLogged, err := handler.loginChecker.IsLogged(r.Context(), token)
	if err != nil {
		log.Debugf("posts handler, admin check: %s", err)
		return false
	}
	return isLogged
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	isAdmin := handler.callerIsAdmin(r)

	if !isAdmin {
		if cached, err := handler.cache.Get([]byte(cachedListKey)); err == nil {
			pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
			return
		}
	}

	all, err := handler.repo.List(r.Context())
	if err != nil {
		log.Errorf("list posts: %s", err)
		http.Error(w, "failed to list posts", http.StatusInternalServerError)
		return
	}

	visible := make([]*Post, 0, len(all))
	for _, p := range all {
		if p.Draft && !isAdmin {
			continue
		}
		visible = append(visible, p)
	}

	// newest first; pubDate is an ISO date so a string sort is a date sort
	sort.Slice(visible, func(i, j int) bool {
		if visible[i].PubDate != visible[j].PubDate {
			return visible[i].PubDate > visible[j].PubDate
		}
		return visible[i].Slug < visible[j].Slug
	})

	respJson, err := json.Marshal(ListResponse{Posts: visible, Total: len(visible)})
	if err != nil {
		log.Errorf("marshal posts list: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !isAdmin {
		if err := handler.cache.Set([]byte(cachedListKey), respJson, cacheExpireSecs); err != nil {
			log.Warnf("cache posts list: %s", err)
		}
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respJson)
}

func (handler *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	isAdmin := handler.callerIsAdmin(r)

	cacheKey := []byte(fmt.Sprintf(cachedPostKeyFmt, slug))
	if !isAdmin {
		if cached, err := handler.cache.Get(cacheKey); err == nil {
			pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, cached)
			return
		}
	}

	post, err := handler.repo.Get(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		log.Errorf("get post %s: %s", slug, err)
		http.Error(w, "failed to get post", http.StatusInternalServerError)
		return
	}

	// drafts are invisible to anonymous readers, missing and hidden
	// look the same from outside
	if post.Draft && !isAdmin {
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}

	postJson, err := json.Marshal(post)
	if err != nil {
		log.Errorf("marshal post %s: %s", slug, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if !isAdmin {
		if err := handler.cache.Set(cacheKey, postJson, cacheExpireSecs); err != nil {
			log.Warnf("cache post %s: %s", slug, err)
		}
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, postJson)
}

func (handler *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var saveReq savePostRequest
	if err := json.NewDecoder(r.Body).Decode(&saveReq); err != nil {
		log.Errorf("save post, unmarshal json params: %s", err)
		http.Error(w, "save post failed", http.StatusBadRequest)
		return
	}

	if saveReq.Title == "" {
		http.Error(w, "error, title empty", http.StatusBadRequest)
		return
	}

	isUpdate := saveReq.Slug != ""
	slug, err := handler.repo.Save(r.Context(), Post{
		Slug:        saveReq.Slug,
		Title:       saveReq.Title,
		Description: saveReq.Description,
		Category:    saveReq.Category,
		Tags:        saveReq.Tags,
		Draft:       saveReq.Draft,
		Content:     saveReq.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlugTaken):
			http.Error(w, "error, post slug already taken", http.StatusConflict)
		case errors.Is(err, ErrPostNotFound):
			http.Error(w, "post not found", http.StatusNotFound)
		case errors.Is(err, ErrTitleEmpty):
			http.Error(w, "error, title empty", http.StatusBadRequest)
		default:
			log.Errorf("save post: %s", err)
			http.Error(w, "save post failed", http.StatusInternalServerError)
		}
		return
	}

	handler.metricsManager.CounterPostsWritten.Inc()
	handler.InvalidateCached(slug)
	handler.reindex(r.Context(), slug)

	log.Tracef("post [%s] saved", slug)

	status := http.StatusOK
	if !isUpdate {
		status = http.StatusCreated
	}
	pkg.WriteResponse(w, pkg.ContentType.JSON, fmt.Sprintf(`{"slug": "%s"}`, slug), status)
}

func (handler *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	if err := handler.repo.Delete(r.Context(), slug); err != nil {
		if errors.Is(err, ErrPostNotFound) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete post %s: %s", slug, err)
		http.Error(w, "delete post failed", http.StatusInternalServerError)
		return
	}

	handler.InvalidateCached(slug)
	if handler.indexer != nil {
		if err := handler.indexer.RemovePost(slug); err != nil {
			log.Errorf("remove post %s from search index: %s", slug, err)
		}
	}

	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%s", slug))
}

// reindex reads the saved document back and pushes it to the search index,
// drafts are taken out instead
func (handler *Handler) reindex(ctx context.Context, slug string) {
	if handler.indexer == nil {
		return
	}

	post, err := handler.repo.Get(ctx, slug)
	if err != nil {
		log.Errorf("reindex post %s, get: %s", slug, err)
		return
	}

	if post.Draft {
		if err := handler.indexer.RemovePost(slug); err != nil {
			log.Errorf("remove draft %s from search index: %s", slug, err)
		}
		return
	}

	if err := handler.indexer.IndexPost(post); err != nil {
		log.Errorf("index post %s: %s", slug, err)
	}
}
