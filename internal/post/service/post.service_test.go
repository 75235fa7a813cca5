package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"blogcore/internal/backend"
	"blogcore/internal/backend/memory"
	"blogcore/internal/post/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDocuments records List calls so tests can observe laziness.
type countingDocuments struct {
	backend.Documents
	lists atomic.Int32
}

func (c *countingDocuments) List(ctx context.Context, queries []backend.Query) (*backend.DocumentList, error) {
	c.lists.Add(1)
	return c.Documents.List(ctx, queries)
}

// countingFiles records every call that could reach the network.
type countingFiles struct {
	backend.Files
	calls atomic.Int32
}

func (c *countingFiles) Upload(ctx context.Context, id, name string, data []byte) (backend.FileRef, error) {
	c.calls.Add(1)
	return c.Files.Upload(ctx, id, name, data)
}

func (c *countingFiles) Delete(ctx context.Context, ref backend.FileRef) error {
	c.calls.Add(1)
	return c.Files.Delete(ctx, ref)
}

func newTestService(opts ...Option) (*PostService, *memory.Backend) {
	b := memory.New(memory.WithPreviewBase("https://files.example/v1/storage/buckets/images/files"))
	return NewPostService(b.Documents, b.Files, opts...), b
}

func createReq(slug string, status model.Status) model.CreatePostRequest {
	return model.CreatePostRequest{
		Slug:    slug,
		Title:   "Title " + slug,
		Content: "<p>body</p>",
		UserID:  "u-1",
		Status:  status,
	}
}

func TestCreatePost(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.CreatePost(ctx, model.CreatePostRequest{
		Slug:          "hello-world",
		Title:         "Hello",
		Content:       "<p>hi</p>",
		FeaturedImage: "img-1",
		UserID:        "u-1",
		Status:        model.StatusActive,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello-world", p.Slug)
	assert.Equal(t, "Hello", p.Title)
	assert.Equal(t, backend.FileRef("img-1"), p.FeaturedImage)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, model.StatusActive, p.Status)

	p, err = svc.CreatePost(ctx, createReq("no-status", ""))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, p.Status)
}

func TestCreatePost_DuplicateSlugKeepsFirst(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first := createReq("abc", model.StatusActive)
	first.Title = "first"
	_, err := svc.CreatePost(ctx, first)
	require.NoError(t, err)

	second := createReq("abc", model.StatusInactive)
	second.Title = "second"
	_, err = svc.CreatePost(ctx, second)
	assert.Equal(t, backend.KindConflict, backend.KindOf(err))

	stored, err := svc.GetPost(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Title)
	assert.Equal(t, model.StatusActive, stored.Status)
}

func TestCreatePost_Validation(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()

	for _, slug := range []string{"", "_leading", "has space", "a234567890123456789012345678901234567"} {
		_, err := svc.CreatePost(ctx, createReq(slug, model.StatusActive))
		assert.Equal(t, backend.KindValidation, backend.KindOf(err), "slug %q", slug)
	}
	_, err := svc.CreatePost(ctx, createReq("ok", "draft"))
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
	assert.Zero(t, b.Documents.Len())
}

func TestUpdatePost(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.CreatePost(ctx, createReq("abc", model.StatusActive))
	require.NoError(t, err)

	title := "Renamed"
	inactive := model.StatusInactive
	p, err := svc.UpdatePost(ctx, "abc", model.PostFields{Title: &title, Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Title)
	assert.Equal(t, model.StatusInactive, p.Status)
	assert.Equal(t, "<p>body</p>", p.Content)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "abc", p.Slug)

	p, err = svc.UpdatePost(ctx, "abc", model.PostFields{})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Title)

	bad := model.Status("archived")
	_, err = svc.UpdatePost(ctx, "abc", model.PostFields{Status: &bad})
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))

	_, err = svc.UpdatePost(ctx, "missing", model.PostFields{Title: &title})
	assert.Equal(t, backend.KindNotFound, backend.KindOf(err))
}

func TestDeleteAndGetPost(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := svc.CreatePost(ctx, createReq("abc", model.StatusActive))
	require.NoError(t, err)

	require.NoError(t, svc.DeletePost(ctx, "abc"))
	assert.Equal(t, backend.KindNotFound, backend.KindOf(svc.DeletePost(ctx, "abc")))

	_, err = svc.GetPost(ctx, "abc")
	assert.Equal(t, backend.KindNotFound, backend.KindOf(err))

	b.SetOffline(true)
	assert.Equal(t, backend.KindNetwork, backend.KindOf(svc.DeletePost(ctx, "abc")))
}

func TestListPosts_DefaultsToActiveInCreationOrder(t *testing.T) {
	svc, _ := newTestService(WithPageSize(2))
	ctx := context.Background()

	var wantActive []string
	for i := range 7 {
		slug := fmt.Sprintf("post-%d", i)
		status := model.StatusActive
		if i%3 == 1 {
			status = model.StatusInactive
		} else {
			wantActive = append(wantActive, slug)
		}
		_, err := svc.CreatePost(ctx, createReq(slug, status))
		require.NoError(t, err)
	}

	cur, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	posts, err := cur.All()
	require.NoError(t, err)

	var got []string
	for _, p := range posts {
		assert.Equal(t, model.StatusActive, p.Status)
		got = append(got, p.Slug)
	}
	assert.Equal(t, wantActive, got)
}

func TestListPosts_CallerQueries(t *testing.T) {
	svc, _ := newTestService(WithPageSize(2))
	ctx := context.Background()
	for i := range 5 {
		status := model.StatusActive
		if i%2 == 1 {
			status = model.StatusInactive
		}
		_, err := svc.CreatePost(ctx, createReq(fmt.Sprintf("post-%d", i), status))
		require.NoError(t, err)
	}

	cur, err := svc.ListPosts(ctx, backend.Equal(model.AttrStatus, string(model.StatusInactive)))
	require.NoError(t, err)
	posts, err := cur.All()
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "post-1", posts[0].Slug)
	assert.Equal(t, "post-3", posts[1].Slug)

	// a limit alone keeps the default filter and caps the total
	cur, err = svc.ListPosts(ctx, backend.Limit(2))
	require.NoError(t, err)
	posts, err = cur.All()
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "post-0", posts[0].Slug)
	assert.Equal(t, "post-2", posts[1].Slug)

	_, err = svc.ListPosts(ctx, backend.Query{Method: "search", Attribute: "title", Values: []any{"x"}})
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
}

func TestListPosts_IsLazy(t *testing.T) {
	b := memory.New()
	docs := &countingDocuments{Documents: b.Documents}
	svc := NewPostService(docs, b.Files, WithPageSize(2))
	ctx := context.Background()
	for i := range 5 {
		_, err := svc.CreatePost(ctx, createReq(fmt.Sprintf("post-%d", i), model.StatusActive))
		require.NoError(t, err)
	}

	cur, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	assert.Zero(t, docs.lists.Load(), "listing must not fetch before the first Next")

	require.True(t, cur.Next())
	assert.Equal(t, int32(1), docs.lists.Load())
	require.True(t, cur.Next())
	assert.Equal(t, int32(1), docs.lists.Load())
	require.True(t, cur.Next())
	assert.Equal(t, int32(2), docs.lists.Load())
	assert.Equal(t, "post-2", cur.Post().Slug)
	assert.Equal(t, 5, cur.Total())

	require.NoError(t, cur.Close())
	assert.False(t, cur.Next())
	assert.Nil(t, cur.Post())
	assert.Equal(t, int32(2), docs.lists.Load())
}

func TestListPosts_FetchErrorSurfacesOnCursor(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := svc.CreatePost(ctx, createReq("abc", model.StatusActive))
	require.NoError(t, err)

	cur, err := svc.ListPosts(ctx)
	require.NoError(t, err)
	b.SetOffline(true)
	assert.False(t, cur.Next())
	assert.Equal(t, backend.KindNetwork, backend.KindOf(cur.Err()))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	b.SetOffline(false)
	cur, err = svc.ListPosts(cctx)
	require.NoError(t, err)
	assert.False(t, cur.Next())
	assert.ErrorIs(t, cur.Err(), context.Canceled)
}

func TestFiles(t *testing.T) {
	b := memory.New(memory.WithPreviewBase("https://files.example/v1/storage/buckets/images/files"))
	files := &countingFiles{Files: b.Files}
	svc := NewPostService(b.Documents, files)
	ctx := context.Background()

	ref, err := svc.UploadFile(ctx, "cover.png", []byte("png"))
	require.NoError(t, err)
	assert.NotEmpty(t, ref)
	_, data, ok := b.Files.Open(ref)
	require.True(t, ok)
	assert.Equal(t, []byte("png"), data)

	other, err := svc.UploadFile(ctx, "cover.png", []byte("png"))
	require.NoError(t, err)
	assert.NotEqual(t, ref, other)

	_, err = svc.UploadFile(ctx, "", nil)
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))

	require.NoError(t, svc.DeleteFile(ctx, ref))
	assert.Equal(t, backend.KindNotFound, backend.KindOf(svc.DeleteFile(ctx, ref)))
	assert.Equal(t, backend.KindValidation, backend.KindOf(svc.DeleteFile(ctx, "")))
}

func TestFilePreviewURL_IsPure(t *testing.T) {
	b := memory.New(memory.WithPreviewBase("https://files.example/v1/storage/buckets/images/files"))
	files := &countingFiles{Files: b.Files}
	svc := NewPostService(b.Documents, files)

	b.SetOffline(true)
	first := svc.FilePreviewURL("img-1")
	for range 10 {
		assert.Equal(t, first, svc.FilePreviewURL("img-1"))
	}
	assert.Equal(t, "https://files.example/v1/storage/buckets/images/files/img-1/preview", first)
	assert.NotEqual(t, first, svc.FilePreviewURL("img-2"))
	assert.Zero(t, files.calls.Load())
}

func TestCompat_SoftFails(t *testing.T) {
	svc, b := newTestService()
	compat := NewCompat(svc)
	ctx := context.Background()

	p := compat.CreatePost(ctx, createReq("abc", model.StatusActive))
	require.NotNil(t, p)
	assert.Nil(t, compat.CreatePost(ctx, createReq("abc", model.StatusActive)))

	title := "New"
	assert.NotNil(t, compat.UpdatePost(ctx, "abc", model.PostFields{Title: &title}))
	assert.Nil(t, compat.UpdatePost(ctx, "missing", model.PostFields{Title: &title}))

	got, ok := compat.GetPost(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, "New", got.Title)
	got, ok = compat.GetPost(ctx, "missing")
	assert.False(t, ok)
	assert.Nil(t, got)

	assert.NotNil(t, compat.ListPosts(ctx))
	assert.Nil(t, compat.ListPosts(ctx, backend.Query{Method: "bogus"}))

	ref, ok := compat.UploadFile(ctx, "a.png", []byte("a"))
	require.True(t, ok)
	assert.True(t, compat.DeleteFile(ctx, ref))
	assert.False(t, compat.DeleteFile(ctx, ref))
	assert.Equal(t, svc.FilePreviewURL(ref), compat.FilePreviewURL(ref))

	assert.True(t, compat.DeletePost(ctx, "abc"))
	// not found and transient failures look the same
	assert.False(t, compat.DeletePost(ctx, "abc"))
	_ = compat.CreatePost(ctx, createReq("xyz", model.StatusActive))
	b.SetOffline(true)
	assert.False(t, compat.DeletePost(ctx, "xyz"))
	_, ok = compat.UploadFile(ctx, "b.png", nil)
	assert.False(t, ok)
}
