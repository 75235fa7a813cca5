package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blogcore/internal/backend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := New(Config{
		Endpoint:     ts.URL + "/v1/",
		ProjectID:    "proj",
		DatabaseID:   "blog",
		CollectionID: "posts",
		BucketID:     "images",
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeQueries(t *testing.T, values []string) []backend.Query {
	t.Helper()
	out := make([]backend.Query, 0, len(values))
	for _, v := range values {
		var q backend.Query
		require.NoError(t, json.Unmarshal([]byte(v), &q))
		out = append(out, q)
	}
	return out
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestAccounts_SessionLifecycle(t *testing.T) {
	const cookieName = "a_session_proj"
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/account", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "proj", r.Header.Get(projectHeader))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u-1", body["userId"])
		assert.Equal(t, "a@x.com", body["email"])
		assert.Equal(t, "pw123456", body["password"])
		assert.Equal(t, "A", body["name"])
		writeJSON(w, http.StatusCreated, map[string]any{
			"$id": "u-1", "email": "a@x.com", "name": "A", "emailVerification": false,
			"$createdAt": "2024-05-01T10:00:00.000+00:00",
		})
	})
	mux.HandleFunc("POST /v1/account/sessions/email", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw123456" {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "Invalid credentials", Code: 401, Type: "user_invalid_credentials"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "secret", Path: "/"})
		writeJSON(w, http.StatusCreated, map[string]any{"$id": "s-1", "userId": "u-1", "expire": "2030-01-01T00:00:00.000+00:00"})
	})
	mux.HandleFunc("GET /v1/account", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(cookieName); err != nil || c.Value != "secret" {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "missing scope", Code: 401, Type: "general_unauthorized_scope"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"$id": "u-1", "email": "a@x.com", "name": "A", "emailVerification": true})
	})
	mux.HandleFunc("DELETE /v1/account/sessions", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /v1/account/jwt", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]string{"jwt": "header.payload.sig"})
	})

	c, _ := newTestClient(t, mux)
	accounts := NewAccounts(c)
	ctx := context.Background()

	acc, err := accounts.Create(ctx, "u-1", "a@x.com", "pw123456", "A")
	require.NoError(t, err)
	assert.Equal(t, "u-1", acc.ID)
	assert.Equal(t, 2024, acc.CreatedAt.Year())

	_, err = accounts.Get(ctx)
	assert.Equal(t, backend.KindUnauthorized, backend.KindOf(err))

	_, err = accounts.CreateEmailSession(ctx, "a@x.com", "wrong")
	assert.Equal(t, backend.KindInvalidCredentials, backend.KindOf(err))
	assert.Contains(t, err.Error(), "Invalid credentials")

	sess, err := accounts.CreateEmailSession(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "u-1", sess.UserID)
	assert.Equal(t, 2030, sess.ExpiresAt.Year())

	acc, err = accounts.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", acc.Email)
	assert.True(t, acc.EmailVerified)

	token, err := accounts.CreateJWT(ctx)
	require.NoError(t, err)
	assert.Equal(t, "header.payload.sig", token)

	require.NoError(t, accounts.DeleteSessions(ctx))
	_, err = accounts.Get(ctx)
	assert.Equal(t, backend.KindUnauthorized, backend.KindOf(err))
}

func TestAccounts_LoginUnauthorizedIsInvalidCredentials(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "nope", Code: 401, Type: "general_unauthorized_scope"})
	}))

	_, err := NewAccounts(c).CreateEmailSession(context.Background(), "a@x.com", "pw")
	assert.Equal(t, backend.KindInvalidCredentials, backend.KindOf(err))
}

func TestAccounts_CreateConflictAndValidation(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusConflict, apiError{Message: "user already exists", Code: 409, Type: "user_already_exists"})
			return
		}
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Invalid email", Code: 400, Type: "general_argument_invalid"})
	}))
	accounts := NewAccounts(c)

	_, err := accounts.Create(context.Background(), "u", "a@x.com", "pw123456", "A")
	assert.Equal(t, backend.KindConflict, backend.KindOf(err))

	_, err = accounts.Create(context.Background(), "u", "bad", "pw123456", "A")
	assert.Equal(t, backend.KindValidation, backend.KindOf(err))
}

func TestClient_NetworkFailures(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	c, err := New(Config{Endpoint: ts.URL, ProjectID: "proj"})
	require.NoError(t, err)
	ts.Close()

	_, err = NewAccounts(c).Get(context.Background())
	assert.Equal(t, backend.KindNetwork, backend.KindOf(err))

	t.Run("server errors are transient", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		err := NewAccounts(c).DeleteSessions(context.Background())
		assert.Equal(t, backend.KindNetwork, backend.KindOf(err))
		assert.Contains(t, err.Error(), "Bad Gateway")
	})

	t.Run("cancelled context", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{})
		}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewAccounts(c).Get(ctx)
		assert.Equal(t, backend.KindNetwork, backend.KindOf(err))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("malformed response body", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{invalid json}`))
		}))
		_, err := NewAccounts(c).Get(context.Background())
		assert.Equal(t, backend.KindNetwork, backend.KindOf(err))
	})
}

func TestDocuments_CRUD(t *testing.T) {
	const base = "/v1/databases/blog/collections/posts/documents"
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+base, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DocumentID string         `json:"documentId"`
			Data       map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.DocumentID == "taken" {
			writeJSON(w, http.StatusConflict, apiError{Message: "Document with the requested ID already exists.", Code: 409, Type: "document_already_exists"})
			return
		}
		resp := map[string]any{"$id": body.DocumentID, "$createdAt": "2024-05-01T10:00:00.000+00:00", "$collectionId": "posts"}
		for k, v := range body.Data {
			resp[k] = v
		}
		writeJSON(w, http.StatusCreated, resp)
	})
	mux.HandleFunc("PATCH "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Data map[string]any `json:"data"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"title": "New"}, body.Data)
		writeJSON(w, http.StatusOK, map[string]any{"$id": r.PathValue("id"), "title": "New", "status": "active"})
	})
	mux.HandleFunc("GET "+base+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "hello" {
			writeJSON(w, http.StatusNotFound, apiError{Message: "Document not found", Code: 404, Type: "document_not_found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"$id": "hello", "title": "Hello", "$updatedAt": "2024-06-01T00:00:00Z"})
	})
	mux.HandleFunc("DELETE "+base+"/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET "+base, func(w http.ResponseWriter, r *http.Request) {
		queries := decodeQueries(t, r.URL.Query()["queries[]"])
		assert.Equal(t, []backend.Query{
			{Method: backend.MethodEqual, Attribute: "status", Values: []any{"active"}},
			{Method: backend.MethodLimit, Values: []any{float64(2)}},
		}, queries)
		writeJSON(w, http.StatusOK, map[string]any{
			"total": 3,
			"documents": []map[string]any{
				{"$id": "a", "status": "active"},
				{"$id": "b", "status": "active"},
			},
		})
	})

	c, _ := newTestClient(t, mux)
	docs := NewDocuments(c)
	ctx := context.Background()

	doc, err := docs.Create(ctx, "hello", map[string]any{"title": "Hello", "status": "active"})
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.ID)
	assert.Equal(t, map[string]any{"title": "Hello", "status": "active"}, doc.Data)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = docs.Create(ctx, "taken", map[string]any{})
	assert.Equal(t, backend.KindConflict, backend.KindOf(err))

	doc, err = docs.Update(ctx, "hello", map[string]any{"title": "New"})
	require.NoError(t, err)
	assert.Equal(t, "New", doc.Data["title"])

	doc, err = docs.Get(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2024, doc.UpdatedAt.Year())

	_, err = docs.Get(ctx, "missing")
	assert.Equal(t, backend.KindNotFound, backend.KindOf(err))

	require.NoError(t, docs.Delete(ctx, "hello"))

	list, err := docs.List(ctx, []backend.Query{backend.Equal("status", "active"), backend.Limit(2)})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	require.Len(t, list.Documents, 2)
	assert.Equal(t, "a", list.Documents[0].ID)
}

func TestFiles_UploadDeleteAndPreview(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/storage/buckets/images/files", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "f-1", r.FormValue("fileId"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "cover.png", hdr.Filename)
		assert.Equal(t, []byte("png-bytes"), b)
		writeJSON(w, http.StatusCreated, map[string]any{"$id": "f-1", "name": "cover.png"})
	})
	mux.HandleFunc("DELETE /v1/storage/buckets/images/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.PathValue("id") != "f-1" {
			writeJSON(w, http.StatusNotFound, apiError{Message: "File not found", Code: 404})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c, ts := newTestClient(t, mux)
	files := NewFiles(c)
	ctx := context.Background()

	ref, err := files.Upload(ctx, "f-1", "cover.png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, backend.FileRef("f-1"), ref)

	require.NoError(t, files.Delete(ctx, ref))
	assert.Equal(t, backend.KindNotFound, backend.KindOf(files.Delete(ctx, "other")))

	before := hits.Load()
	url1 := files.PreviewURL("f-1")
	url2 := files.PreviewURL("f-1")
	assert.Equal(t, url1, url2)
	assert.Equal(t, ts.URL+"/v1/storage/buckets/images/files/f-1/preview?project=proj", url1)
	assert.Equal(t, before, hits.Load())
}
