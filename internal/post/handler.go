package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	handlers "blogcore/handler"
	"blogcore/internal/backend"
	"blogcore/internal/post/model"
	"blogcore/internal/post/service"
	"blogcore/middleware"
	"blogcore/pkg/logger"
)

// MaxUploadSize bounds a single file upload.
const MaxUploadSize = 10 << 20

type PostHandler struct {
	Service *service.PostService
}

func NewPostHandler(service *service.PostService) *PostHandler {
	return &PostHandler{Service: service}
}

type ListPostsResponse struct {
	Total int           `json:"total"`
	Posts []*model.Post `json:"posts"`
}

type UploadFileResponse struct {
	ID         backend.FileRef `json:"id"`
	PreviewURL string          `json:"preview_url"`
}

// ListPosts accepts status, userId (both repeatable), limit and cursor query
// parameters. Without status or userId only active posts are listed.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var queries []backend.Query
	if statuses := q[model.AttrStatus]; len(statuses) > 0 {
		queries = append(queries, backend.Equal(model.AttrStatus, toAny(statuses)...))
	}
	if owners := q[model.AttrUserID]; len(owners) > 0 {
		queries = append(queries, backend.Equal(model.AttrUserID, toAny(owners)...))
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handlers.WriteError(w, backend.Errorf(backend.KindValidation, "posts.list", "limit must be a positive integer"))
			return
		}
		queries = append(queries, backend.Limit(n))
	}
	if after := q.Get("cursor"); after != "" {
		queries = append(queries, backend.CursorAfter(after))
	}

	cur, err := h.Service.ListPosts(r.Context(), queries...)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	posts, err := cur.All()
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	handlers.WriteJSON(w, http.StatusOK, ListPostsResponse{Total: cur.Total(), Posts: posts})
}

// CreatePost stores a post owned by the logged-in user. A user_id in the
// body is ignored.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		handlers.WriteError(w, backend.Errorf(backend.KindUnauthorized, "posts.create", "no active session"))
		return
	}

	var req model.CreatePostRequest
	if !handlers.DecodeJSON(w, r, &req) {
		return
	}
	req.UserID = userID

	post, err := h.Service.CreatePost(r.Context(), req)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.Service.GetPost(r.Context(), r.PathValue("slug"))
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var fields model.PostFields
	if !handlers.DecodeJSON(w, r, &fields) {
		return
	}

	post, err := h.Service.UpdatePost(r.Context(), r.PathValue("slug"), fields)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeletePost(r.Context(), r.PathValue("slug")); err != nil {
		handlers.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadFile takes a multipart form with the file under "file".
func (h *PostHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	const op = "files.upload"
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.WriteJSON(w, http.StatusRequestEntityTooLarge, handlers.ErrorResponse{Error: "file too large", Kind: backend.KindValidation.String()})
			return
		}
		handlers.WriteError(w, backend.Wrap(backend.KindValidation, op, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Sugar.Errorf("Handler: failed to read upload %s: %v", header.Filename, err)
		handlers.WriteError(w, backend.Wrap(backend.KindValidation, op, err))
		return
	}

	ref, err := h.Service.UploadFile(r.Context(), header.Filename, data)
	if err != nil {
		handlers.WriteError(w, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, UploadFileResponse{ID: ref, PreviewURL: h.Service.FilePreviewURL(ref)})
}

func (h *PostHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteFile(r.Context(), backend.FileRef(r.PathValue("id"))); err != nil {
		handlers.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewFile redirects to the file's preview URL. Nothing is fetched.
func (h *PostHandler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.Service.FilePreviewURL(backend.FileRef(r.PathValue("id"))), http.StatusFound)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
