package handlers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/kozaktomas/sigboard/internal/similarity"
	"github.com/kozaktomas/sigboard/internal/upload"
)

// PostsHandler handles post signature and similarity endpoints.
type PostsHandler struct {
	uploads  *upload.Service
	repo     database.SignatureWriter
	searcher *similarity.Searcher
	content  content.Store
}

// NewPostsHandler creates a new posts handler. contentStore may be nil, in
// which case uploaded content is not kept once its signature is stored.
func NewPostsHandler(uploads *upload.Service, repo database.SignatureWriter, searcher *similarity.Searcher, contentStore content.Store) *PostsHandler {
	return &PostsHandler{
		uploads:  uploads,
		repo:     repo,
		searcher: searcher,
		content:  contentStore,
	}
}

type contentTokenRequest struct {
	ContentToken string `json:"content_token"`
}

// SignatureResponse is the stored signature of a post.
type SignatureResponse struct {
	PostID    int64                `json:"post_id"`
	Checksum  string               `json:"checksum"`
	Signature signature.Compressed `json:"signature"`
	Words     signature.Words      `json:"words"`
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at,omitzero"`
	UpdatedAt time.Time            `json:"updated_at,omitzero"`
}

func newSignatureResponse(sig *database.StoredSignature) SignatureResponse {
	return SignatureResponse{
		PostID:    sig.PostID,
		Checksum:  sig.Checksum,
		Signature: sig.Signature,
		Words:     sig.Words,
		Version:   sig.Version,
		CreatedAt: sig.CreatedAt,
		UpdatedAt: sig.UpdatedAt,
	}
}

// SimilarResponse lists posts similar to a stored post.
type SimilarResponse struct {
	PostID       int64              `json:"post_id"`
	SimilarPosts []similarity.Match `json:"similar_posts"`
}

// ReverseSearch finds the post with exactly the uploaded content, or posts
// with similar signatures.
func (h *PostsHandler) ReverseSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearchQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req contentTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentToken == "" {
		respondError(w, http.StatusBadRequest, "content_token is required")
		return
	}

	// Cached so creating a post from the same upload does not compute again.
	props, err := h.uploads.ComputeProperties(req.ContentToken)
	if err != nil {
		respondUploadError(w, err)
		return
	}

	res, err := h.searcher.ReverseSearch(r.Context(), props, q)
	if err != nil {
		log.Printf("Reverse search failed: %v", err)
		respondError(w, http.StatusInternalServerError, "reverse search failed")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// PutSignature stores the signature of a post computed from an upload. The
// upload becomes the content of the post.
func (h *PostsHandler) PutSignature(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	var req contentTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ContentToken == "" {
		respondError(w, http.StatusBadRequest, "content_token is required")
		return
	}

	props, err := h.uploads.GetOrComputeProperties(req.ContentToken)
	if err != nil {
		respondUploadError(w, err)
		return
	}

	if h.content != nil {
		data, err := h.uploads.Store().Read(req.ContentToken)
		if err != nil {
			respondUploadError(w, err)
			return
		}
		if err := h.content.Put(r.Context(), postID, upload.TokenExtension(req.ContentToken), data); err != nil {
			log.Printf("Failed to store content of post %d: %v", postID, err)
			respondError(w, http.StatusInternalServerError, "failed to store content")
			return
		}
	}

	sig := database.NewStoredSignature(postID, props.Checksum, props.Signature)
	if err := h.repo.Save(r.Context(), sig); err != nil {
		log.Printf("Failed to save signature of post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "failed to save signature")
		return
	}

	if err := h.uploads.Discard(req.ContentToken); err != nil {
		log.Printf("Failed to discard upload %s: %v", sanitizeForLog(req.ContentToken), err)
	}

	stored, err := h.repo.Get(r.Context(), postID)
	if err != nil || stored == nil {
		stored = &sig
	}
	respondJSON(w, http.StatusOK, newSignatureResponse(stored))
}

// GetSignature returns the stored signature of a post.
func (h *PostsHandler) GetSignature(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	sig, err := h.repo.Get(r.Context(), postID)
	if err != nil {
		log.Printf("Failed to get signature of post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "failed to get signature")
		return
	}
	if sig == nil {
		respondError(w, http.StatusNotFound, "post has no signature")
		return
	}
	respondJSON(w, http.StatusOK, newSignatureResponse(sig))
}

// DeleteSignature removes the signature and content of a post.
func (h *PostsHandler) DeleteSignature(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}

	exists, err := h.repo.Has(r.Context(), postID)
	if err != nil {
		log.Printf("Failed to look up signature of post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "failed to delete signature")
		return
	}
	if !exists {
		respondError(w, http.StatusNotFound, "post has no signature")
		return
	}

	if err := h.repo.Delete(r.Context(), postID); err != nil {
		log.Printf("Failed to delete signature of post %d: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "failed to delete signature")
		return
	}
	if h.content != nil {
		if err := h.content.Delete(r.Context(), postID); err != nil {
			log.Printf("Failed to delete content of post %d: %v", postID, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Similar returns posts similar to a stored post.
func (h *PostsHandler) Similar(w http.ResponseWriter, r *http.Request) {
	postID, ok := parsePostID(w, r)
	if !ok {
		return
	}
	q, err := parseSearchQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.searcher.SimilarToPost(r.Context(), postID, q)
	if errors.Is(err, similarity.ErrPostNotFound) {
		respondError(w, http.StatusNotFound, "post has no signature")
		return
	}
	if err != nil {
		log.Printf("Similarity search for post %d failed: %v", postID, err)
		respondError(w, http.StatusInternalServerError, "similarity search failed")
		return
	}

	respondJSON(w, http.StatusOK, SimilarResponse{PostID: postID, SimilarPosts: matches})
}
