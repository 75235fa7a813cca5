package service

import (
	"context"

	"blogcore/internal/backend"
	"blogcore/internal/post/model"
	"blogcore/pkg/logger"

	"github.com/google/uuid"
)

const defaultPageSize = 25

// PostService is the content gateway. Every failure is returned as an error
// carrying a backend.Kind.
type PostService struct {
	Documents backend.Documents
	Files     backend.Files

	pageSize  int
	newFileID func() string
}

type Option func(*PostService)

// WithPageSize sets how many posts a cursor fetches per round trip.
func WithPageSize(n int) Option {
	return func(s *PostService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewPostService(docs backend.Documents, files backend.Files, opts ...Option) *PostService {
	s := &PostService{
		Documents: docs,
		Files:     files,
		pageSize:  defaultPageSize,
		newFileID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePost stores a new post under req.Slug. An existing slug is a
// backend.KindConflict and the stored post is left as it was.
func (s *PostService) CreatePost(ctx context.Context, req model.CreatePostRequest) (*model.Post, error) {
	const op = "posts.create"
	if err := validateSlug(op, req.Slug); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = model.StatusActive
	}
	if !req.Status.Valid() {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid status %q", req.Status)
	}

	doc, err := s.Documents.Create(ctx, req.Slug, req.Data())
	if err != nil {
		return nil, err
	}
	return model.FromDocument(doc), nil
}

// UpdatePost merges the set fields into the stored post. With no fields set
// it returns the stored post unchanged.
func (s *PostService) UpdatePost(ctx context.Context, slug string, fields model.PostFields) (*model.Post, error) {
	const op = "posts.update"
	if err := validateSlug(op, slug); err != nil {
		return nil, err
	}
	if fields.Status != nil && !fields.Status.Valid() {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid status %q", *fields.Status)
	}
	if fields.Empty() {
		return s.GetPost(ctx, slug)
	}

	doc, err := s.Documents.Update(ctx, slug, fields.Data())
	if err != nil {
		return nil, err
	}
	return model.FromDocument(doc), nil
}

// DeletePost removes the post. A missing slug is reported as
// backend.KindNotFound.
func (s *PostService) DeletePost(ctx context.Context, slug string) error {
	if err := validateSlug("posts.delete", slug); err != nil {
		return err
	}
	return s.Documents.Delete(ctx, slug)
}

func (s *PostService) GetPost(ctx context.Context, slug string) (*model.Post, error) {
	if err := validateSlug("posts.get", slug); err != nil {
		return nil, err
	}
	doc, err := s.Documents.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	return model.FromDocument(doc), nil
}

// ListPosts returns a cursor over the posts matching queries, in creation
// order. When queries contain no filter, only active posts are listed.
// Pages are fetched as the cursor advances.
func (s *PostService) ListPosts(ctx context.Context, queries ...backend.Query) (*Cursor, error) {
	page, err := backend.SplitQueries(queries)
	if err != nil {
		return nil, err
	}
	if len(page.Filters) == 0 {
		page.Filters = []backend.Query{backend.Equal(model.AttrStatus, string(model.StatusActive))}
	}
	return newCursor(ctx, s.Documents, page, s.pageSize), nil
}

// UploadFile stores data under a fresh file id.
func (s *PostService) UploadFile(ctx context.Context, name string, data []byte) (backend.FileRef, error) {
	const op = "files.upload"
	if name == "" {
		return "", backend.Errorf(backend.KindValidation, op, "file name is required")
	}
	ref, err := s.Files.Upload(ctx, s.newFileID(), name, data)
	if err != nil {
		return "", err
	}
	logger.Sugar.Infof("Uploaded file %s (%d bytes) as %s", name, len(data), ref)
	return ref, nil
}

func (s *PostService) DeleteFile(ctx context.Context, ref backend.FileRef) error {
	if ref == "" {
		return backend.Errorf(backend.KindValidation, "files.delete", "file ref is required")
	}
	return s.Files.Delete(ctx, ref)
}

// FilePreviewURL derives the display URL for ref without any I/O.
func (s *PostService) FilePreviewURL(ref backend.FileRef) string {
	return s.Files.PreviewURL(ref)
}

func validateSlug(op, slug string) error {
	if !backend.ValidID(slug) {
		return backend.Errorf(backend.KindValidation, op,
			"invalid slug %q: use up to %d of a-z, A-Z, 0-9, period, hyphen and underscore, not starting with a special character",
			slug, backend.MaxIDLength)
	}
	return nil
}
