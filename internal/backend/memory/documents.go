package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"sync/atomic"

	"blogcore/internal/backend"
)

type documentRecord struct {
	seq uint64
	doc backend.Document
}

// Documents implements backend.Documents for a single collection. List
// returns documents in creation order.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]*documentRecord
	seq  uint64

	opts    options
	offline *atomic.Bool
}

func newDocuments(o options, offline *atomic.Bool) *Documents {
	return &Documents{
		docs:    make(map[string]*documentRecord),
		opts:    o,
		offline: offline,
	}
}

func (d *Documents) Create(_ context.Context, id string, data map[string]any) (*backend.Document, error) {
	const op = "documents.create"
	if err := checkOnline(d.offline, op); err != nil {
		return nil, err
	}
	if !backend.ValidID(id) {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid document id %q", id)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[id]; ok {
		return nil, backend.Errorf(backend.KindConflict, op, "document with the requested id already exists")
	}

	d.seq++
	now := d.opts.now()
	rec := &documentRecord{
		seq: d.seq,
		doc: backend.Document{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
			Data:      maps.Clone(data),
		},
	}
	if rec.doc.Data == nil {
		rec.doc.Data = map[string]any{}
	}
	d.docs[id] = rec
	return cloneDocument(rec.doc), nil
}

func (d *Documents) Update(_ context.Context, id string, data map[string]any) (*backend.Document, error) {
	const op = "documents.update"
	if err := checkOnline(d.offline, op); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.docs[id]
	if !ok {
		return nil, backend.Errorf(backend.KindNotFound, op, "document %q not found", id)
	}
	maps.Copy(rec.doc.Data, data)
	rec.doc.UpdatedAt = d.opts.now()
	return cloneDocument(rec.doc), nil
}

func (d *Documents) Delete(_ context.Context, id string) error {
	const op = "documents.delete"
	if err := checkOnline(d.offline, op); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[id]; !ok {
		return backend.Errorf(backend.KindNotFound, op, "document %q not found", id)
	}
	delete(d.docs, id)
	return nil
}

func (d *Documents) Get(_ context.Context, id string) (*backend.Document, error) {
	const op = "documents.get"
	if err := checkOnline(d.offline, op); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.docs[id]
	if !ok {
		return nil, backend.Errorf(backend.KindNotFound, op, "document %q not found", id)
	}
	return cloneDocument(rec.doc), nil
}

func (d *Documents) List(_ context.Context, queries []backend.Query) (*backend.DocumentList, error) {
	const op = "documents.list"
	if err := checkOnline(d.offline, op); err != nil {
		return nil, err
	}
	page, err := backend.SplitQueries(queries)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit == 0 {
		limit = defaultPageSize
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	matched := make([]*documentRecord, 0, len(d.docs))
	for _, rec := range d.docs {
		if matchesAll(page.Filters, rec.doc.Data) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	start := 0
	if page.CursorAfter != "" {
		cursor, ok := d.docs[page.CursorAfter]
		if !ok {
			return nil, backend.Errorf(backend.KindValidation, op, "document %q for the cursor value not found", page.CursorAfter)
		}
		start = sort.Search(len(matched), func(i int) bool { return matched[i].seq > cursor.seq })
	}
	end := min(start+limit, len(matched))

	list := &backend.DocumentList{
		Total:     len(matched),
		Documents: make([]backend.Document, 0, end-start),
	}
	for _, rec := range matched[start:end] {
		list.Documents = append(list.Documents, *cloneDocument(rec.doc))
	}
	return list, nil
}

// Len returns the number of stored documents.
func (d *Documents) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs)
}

func matchesAll(filters []backend.Query, data map[string]any) bool {
	for _, q := range filters {
		if !q.Matches(data) {
			return false
		}
	}
	return true
}

func cloneDocument(doc backend.Document) *backend.Document {
	doc.Data = maps.Clone(doc.Data)
	return &doc
}

var _ backend.Documents = (*Documents)(nil)
