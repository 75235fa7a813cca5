package remote

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"blogcore/internal/backend"
)

// Documents implements backend.Documents for the configured database and
// collection.
type Documents struct {
	client *Client
}

func NewDocuments(client *Client) *Documents {
	return &Documents{client: client}
}

func (d *Documents) basePath() string {
	return "/databases/" + url.PathEscape(d.client.cfg.DatabaseID) +
		"/collections/" + url.PathEscape(d.client.cfg.CollectionID) + "/documents"
}

func (d *Documents) docPath(id string) string {
	return d.basePath() + "/" + url.PathEscape(id)
}

func (d *Documents) Create(ctx context.Context, id string, data map[string]any) (*backend.Document, error) {
	body := map[string]any{
		"documentId": id,
		"data":       data,
	}
	var raw map[string]any
	if err := d.client.doJSON(ctx, "documents.create", http.MethodPost, d.basePath(), nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw), nil
}

func (d *Documents) Update(ctx context.Context, id string, data map[string]any) (*backend.Document, error) {
	body := map[string]any{"data": data}
	var raw map[string]any
	if err := d.client.doJSON(ctx, "documents.update", http.MethodPatch, d.docPath(id), nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw), nil
}

func (d *Documents) Delete(ctx context.Context, id string) error {
	return d.client.doJSON(ctx, "documents.delete", http.MethodDelete, d.docPath(id), nil, nil, nil)
}

func (d *Documents) Get(ctx context.Context, id string) (*backend.Document, error) {
	var raw map[string]any
	if err := d.client.doJSON(ctx, "documents.get", http.MethodGet, d.docPath(id), nil, nil, &raw); err != nil {
		return nil, err
	}
	return decodeDocument(raw), nil
}

func (d *Documents) List(ctx context.Context, queries []backend.Query) (*backend.DocumentList, error) {
	params := url.Values{}
	for _, q := range queries {
		params.Add("queries[]", q.String())
	}

	var resp struct {
		Total     int              `json:"total"`
		Documents []map[string]any `json:"documents"`
	}
	if err := d.client.doJSON(ctx, "documents.list", http.MethodGet, d.basePath(), params, nil, &resp); err != nil {
		return nil, err
	}

	list := &backend.DocumentList{
		Total:     resp.Total,
		Documents: make([]backend.Document, 0, len(resp.Documents)),
	}
	for _, raw := range resp.Documents {
		list.Documents = append(list.Documents, *decodeDocument(raw))
	}
	return list, nil
}

// decodeDocument splits the backend's "$"-prefixed system attributes from the
// document's own data.
func decodeDocument(raw map[string]any) *backend.Document {
	doc := &backend.Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		if !strings.HasPrefix(k, "$") {
			doc.Data[k] = v
			continue
		}
		s, _ := v.(string)
		switch k {
		case "$id":
			doc.ID = s
		case "$createdAt":
			doc.CreatedAt = parseTime(s)
		case "$updatedAt":
			doc.UpdatedAt = parseTime(s)
		}
	}
	return doc
}

var _ backend.Documents = (*Documents)(nil)
