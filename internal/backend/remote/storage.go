package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"blogcore/internal/backend"
)

// Files implements backend.Files for the configured bucket.
type Files struct {
	client *Client
}

func NewFiles(client *Client) *Files {
	return &Files{client: client}
}

func (f *Files) filesPath() string {
	return "/storage/buckets/" + url.PathEscape(f.client.cfg.BucketID) + "/files"
}

func (f *Files) Upload(ctx context.Context, id, name string, data []byte) (backend.FileRef, error) {
	const op = "storage.upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("fileId", id); err != nil {
		return "", backend.Wrap(backend.KindValidation, op, err)
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", backend.Wrap(backend.KindValidation, op, err)
	}
	if _, err := part.Write(data); err != nil {
		return "", backend.Wrap(backend.KindValidation, op, err)
	}
	if err := mw.Close(); err != nil {
		return "", backend.Wrap(backend.KindValidation, op, err)
	}

	req, err := f.client.newRequest(ctx, http.MethodPost, f.filesPath(), nil, &buf)
	if err != nil {
		return "", backend.Wrap(backend.KindValidation, op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		ID string `json:"$id"`
	}
	if err := f.client.do(op, req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", backend.Wrap(backend.KindUnknown, op, fmt.Errorf("backend returned no file id"))
	}
	return backend.FileRef(resp.ID), nil
}

func (f *Files) Delete(ctx context.Context, ref backend.FileRef) error {
	path := f.filesPath() + "/" + url.PathEscape(string(ref))
	return f.client.doJSON(ctx, "storage.delete", http.MethodDelete, path, nil, nil, nil)
}

func (f *Files) PreviewURL(ref backend.FileRef) string {
	q := url.Values{"project": {f.client.cfg.ProjectID}}
	return f.client.cfg.Endpoint + f.filesPath() + "/" + url.PathEscape(string(ref)) + "/preview?" + q.Encode()
}

var _ backend.Files = (*Files)(nil)
