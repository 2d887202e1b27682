package comments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dkoleva/inkwell/internal/auth"
	"github.com/dkoleva/inkwell/internal/telemetry/metrics"
	"github.com/dkoleva/inkwell/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// the editor UI enforces the same cap, the store itself does not care
const maxContentLength = 2000

const authTokenHeader = "X-INKWELL-TOKEN"

type newCommentRequest struct {
	Author      string `json:"author"`
	AuthorColor string `json:"authorColor"`
	Content     string `json:"content"`
	IsAuthor    bool   `json:"isAuthor"`
}

type commentsRepo interface {
	List(ctx context.Context, postSlug string) []*Comment
	ListAll(ctx context.Context) map[string][]*Comment
	Add(ctx context.Context, params AddParams) (*Comment, error)
	Remove(ctx context.Context, postSlug string, commentID int64) (partitionExisted, removed bool, err error)
}

type Handler struct {
	repo           commentsRepo
	loginChecker   auth.Checker
	metricsManager *metrics.Manager
}

func NewHandler(
	repo commentsRepo,
	loginChecker auth.Checker,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		repo:           repo,
		loginChecker:   loginChecker,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/api/comments", handler.handleListAll).Methods("GET", "OPTIONS").Name("all-comments")
	router.HandleFunc("/api/comments/{slug}", handler.handleList).Methods("GET", "OPTIONS").Name("list-comments")
	router.HandleFunc("/api/comments/{slug}", handler.handleAdd).Methods("POST", "OPTIONS").Name("new-comment")
	router.HandleFunc("/api/comments/{slug}/{id}", handler.handleRemove).Methods("DELETE", "OPTIONS").Name("remove-comment")
}

func (handler *Handler) handleListAll(w http.ResponseWriter, r *http.Request) {
	all := handler.repo.ListAll(r.Context())
	allJson, err := json.Marshal(all)
	if err != nil {
		log.Errorf("marshal all comments: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, allJson)
}

func (handler *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	partition := handler.repo.List(r.Context(), slug)
	partitionJson, err := json.Marshal(partition)
	if err != nil {
		log.Errorf("marshal comments for %s: %s", slug, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, partitionJson)
}

func (handler *Handler) handleAdd(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	var newCommentReq newCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&newCommentReq); err != nil {
		log.Errorf("new comment, unmarshal json params: %s", err)
		http.Error(w, "add comment failed", http.StatusBadRequest)
		return
	}

	if err := validateNewComment(newCommentReq); err != nil {
		http.Error(w, fmt.Sprintf("error, %s", err), http.StatusBadRequest)
		return
	}

	// only the logged-in owner gets the author badge, whatever the
	// anonymous client claims
	isAuthor := newCommentReq.IsAuthor && handler.callerIsAdmin(r)

	comment, err := handler.repo.Add(r.Context(), AddParams{
		PostSlug:    slug,
		Author:      newCommentReq.Author,
		AuthorColor: newCommentReq.AuthorColor,
		Content:     newCommentReq.Content,
		IsAuthor:    isAuthor,
	})
	if err != nil {
		log.Errorf("add comment to %s: %s", slug, err)
		http.Error(w, "add comment failed", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterCommentsAdded.Inc()
	log.Tracef("new comment %d on [%s] added", comment.ID, slug)

	commentJson, err := json.Marshal(comment)
	if err != nil {
		log.Errorf("marshal new comment: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, commentJson, http.StatusCreated)
}

func (handler *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	slug := vars["slug"]

	commentID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		http.Error(w, "error, comment id NaN", http.StatusBadRequest)
		return
	}

	partitionExisted, removed, err := handler.repo.Remove(r.Context(), slug, commentID)
	if err != nil {
		log.Errorf("remove comment %d from %s: %s", commentID, slug, err)
		http.Error(w, "remove comment failed", http.StatusInternalServerError)
		return
	}
	if !partitionExisted {
		http.Error(w, "comments not found", http.StatusNotFound)
		return
	}

	// a missing id within an existing partition is still a 200; the
	// removed flag lets admin tooling tell the no-op apart
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"removed": %t}`, removed))
}

func (handler *Handler) callerIsAdmin(r *http.Request) bool {
	token := r.Header.Get(authTokenHeader)
	if token == "" {
		return false
	}
	isLogged, err := handler.loginChecker.IsLogged(r.Context(), token)
	if err != nil {
		return false
	}
	return isLogged
}

func validateNewComment(req newCommentRequest) error {
	if req.Content == "" {
		return ErrContentEmpty
	}
	if len(req.Content) > maxContentLength {
		return ErrContentTooLong
	}
	if req.Author == "" {
		return ErrAuthorEmpty
	}
	return nil
}
