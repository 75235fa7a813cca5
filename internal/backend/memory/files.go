package memory

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"blogcore/internal/backend"
)

type fileRecord struct {
	name string
	data []byte
}

// Files implements backend.Files.
type Files struct {
	mu    sync.RWMutex
	files map[backend.FileRef]*fileRecord

	opts    options
	offline *atomic.Bool
}

func newFiles(o options, offline *atomic.Bool) *Files {
	return &Files{
		files:   make(map[backend.FileRef]*fileRecord),
		opts:    o,
		offline: offline,
	}
}

func (f *Files) Upload(_ context.Context, id, name string, data []byte) (backend.FileRef, error) {
	const op = "storage.upload"
	if err := checkOnline(f.offline, op); err != nil {
		return "", err
	}
	if !backend.ValidID(id) {
		return "", backend.Errorf(backend.KindValidation, op, "invalid file id %q", id)
	}
	if name == "" {
		return "", backend.Errorf(backend.KindValidation, op, "file name is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ref := backend.FileRef(id)
	if _, ok := f.files[ref]; ok {
		return "", backend.Errorf(backend.KindConflict, op, "file with the requested id already exists")
	}
	f.files[ref] = &fileRecord{name: name, data: bytes.Clone(data)}
	return ref, nil
}

func (f *Files) Delete(_ context.Context, ref backend.FileRef) error {
	const op = "storage.delete"
	if err := checkOnline(f.offline, op); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.files[ref]; !ok {
		return backend.Errorf(backend.KindNotFound, op, "file %q not found", ref)
	}
	delete(f.files, ref)
	return nil
}

func (f *Files) PreviewURL(ref backend.FileRef) string {
	return strings.TrimRight(f.opts.previewBase, "/") + "/" + url.PathEscape(string(ref)) + "/preview"
}

// Open returns the stored name and contents of ref.
func (f *Files) Open(ref backend.FileRef) (name string, data []byte, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rec, ok := f.files[ref]
	if !ok {
		return "", nil, false
	}
	return rec.name, bytes.Clone(rec.data), true
}

var _ backend.Files = (*Files)(nil)
