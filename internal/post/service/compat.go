package service

import (
	"context"

	"blogcore/internal/backend"
	"blogcore/internal/post/model"
	"blogcore/pkg/logger"
)

// Compat wraps PostService with the soft-fail signatures older callers rely
// on: failures are logged and reported as nil or false, never as errors.
type Compat struct {
	svc *PostService
}

func NewCompat(svc *PostService) *Compat {
	return &Compat{svc: svc}
}

// CreatePost returns nil on any failure, including a duplicate slug.
func (c *Compat) CreatePost(ctx context.Context, req model.CreatePostRequest) *model.Post {
	p, err := c.svc.CreatePost(ctx, req)
	if err != nil {
		logger.Sugar.Errorf("Failed to create post %s: %v", req.Slug, err)
		return nil
	}
	return p
}

func (c *Compat) UpdatePost(ctx context.Context, slug string, fields model.PostFields) *model.Post {
	p, err := c.svc.UpdatePost(ctx, slug, fields)
	if err != nil {
		logger.Sugar.Errorf("Failed to update post %s: %v", slug, err)
		return nil
	}
	return p
}

// DeletePost reports false both for a missing slug and for a failed call.
func (c *Compat) DeletePost(ctx context.Context, slug string) bool {
	if err := c.svc.DeletePost(ctx, slug); err != nil {
		logger.Sugar.Errorf("Failed to delete post %s: %v", slug, err)
		return false
	}
	return true
}

func (c *Compat) GetPost(ctx context.Context, slug string) (*model.Post, bool) {
	p, err := c.svc.GetPost(ctx, slug)
	if err != nil {
		logger.Sugar.Errorf("Failed to get post %s: %v", slug, err)
		return nil, false
	}
	return p, true
}

// ListPosts returns nil when the queries are rejected. Fetch errors surface
// later through the cursor's Err.
func (c *Compat) ListPosts(ctx context.Context, queries ...backend.Query) *Cursor {
	cur, err := c.svc.ListPosts(ctx, queries...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list posts: %v", err)
		return nil
	}
	return cur
}

func (c *Compat) UploadFile(ctx context.Context, name string, data []byte) (backend.FileRef, bool) {
	ref, err := c.svc.UploadFile(ctx, name, data)
	if err != nil {
		logger.Sugar.Errorf("Failed to upload file %s: %v", name, err)
		return "", false
	}
	return ref, true
}

func (c *Compat) DeleteFile(ctx context.Context, ref backend.FileRef) bool {
	if err := c.svc.DeleteFile(ctx, ref); err != nil {
		logger.Sugar.Errorf("Failed to delete file %s: %v", ref, err)
		return false
	}
	return true
}

func (c *Compat) FilePreviewURL(ref backend.FileRef) string {
	return c.svc.FilePreviewURL(ref)
}
