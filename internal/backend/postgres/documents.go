// Package postgres stores documents in a self-hosted PostgreSQL database. It
// implements backend.Documents only; accounts and files stay on the remote
// backend.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"blogcore/internal/backend"
	"blogcore/pkg/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const (
	table           = "documents"
	defaultPageSize = 25
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var documentColumns = []string{"id", "data", "created_at", "updated_at"}

// Config configures the document store.
type Config struct {
	// PageSize is used when a list call carries no limit.
	PageSize int
}

// Documents implements backend.Documents on the documents table.
type Documents struct {
	db       *sql.DB
	pageSize int
}

func New(db *sql.DB, cfg Config) *Documents {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	return &Documents{db: db, pageSize: cfg.PageSize}
}

func (d *Documents) Create(ctx context.Context, id string, data map[string]any) (*backend.Document, error) {
	const op = "documents.create"
	if !backend.ValidID(id) {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid document id %q", id)
	}
	payload, err := encodeData(data)
	if err != nil {
		return nil, backend.Wrap(backend.KindValidation, op, err)
	}

	query, args, err := psq.Insert(table).
		Columns("id", "data").
		Values(id, payload).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building insert: %w", err))
	}

	doc := &backend.Document{ID: id, Data: cloneData(data)}
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", id, err)
		return nil, mapError(op, err)
	}
	return doc, nil
}

func (d *Documents) Update(ctx context.Context, id string, data map[string]any) (*backend.Document, error) {
	const op = "documents.update"
	payload, err := encodeData(data)
	if err != nil {
		return nil, backend.Wrap(backend.KindValidation, op, err)
	}

	query, args, err := psq.Update(table).
		Set("data", sq.Expr("data || ?::jsonb", payload)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(documentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building update: %w", err))
	}

	doc, err := scanDocument(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		logger.Sugar.Errorf("Failed to update document %s: %v", id, err)
		return nil, mapError(op, err)
	}
	return doc, nil
}

func (d *Documents) Delete(ctx context.Context, id string) error {
	const op = "documents.delete"
	query, args, err := psq.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building delete: %w", err))
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete document %s: %v", id, err)
		return mapError(op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return mapError(op, err)
	}
	if n == 0 {
		return backend.Errorf(backend.KindNotFound, op, "document %q not found", id)
	}
	return nil
}

func (d *Documents) Get(ctx context.Context, id string) (*backend.Document, error) {
	const op = "documents.get"
	query, args, err := psq.Select(documentColumns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building select: %w", err))
	}

	doc, err := scanDocument(d.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Sugar.Errorf("Failed to get document %s: %v", id, err)
		}
		return nil, mapError(op, err)
	}
	return doc, nil
}

func (d *Documents) List(ctx context.Context, queries []backend.Query) (*backend.DocumentList, error) {
	const op = "documents.list"
	page, err := backend.SplitQueries(queries)
	if err != nil {
		return nil, err
	}
	limit := page.Limit
	if limit == 0 {
		limit = d.pageSize
	}

	where := filterClause(page.Filters)

	countQuery, countArgs, err := applyFilters(psq.Select("COUNT(*)").From(table), where).ToSql()
	if err != nil {
		return nil, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building count: %w", err))
	}
	var total int
	if err := d.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		logger.Sugar.Errorf("Failed to count documents: %v", err)
		return nil, mapError(op, err)
	}

	qb := applyFilters(psq.Select(documentColumns...).From(table), where)
	if page.CursorAfter != "" {
		seq, err := d.cursorSeq(ctx, page.CursorAfter)
		if err != nil {
			return nil, err
		}
		qb = qb.Where(sq.Gt{"seq": seq})
	}
	query, args, err := qb.OrderBy("seq ASC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building list: %w", err))
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents: %v", err)
		return nil, mapError(op, err)
	}
	defer func() { _ = rows.Close() }()

	list := &backend.DocumentList{Total: total, Documents: make([]backend.Document, 0, limit)}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		list.Documents = append(list.Documents, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return list, nil
}

func (d *Documents) cursorSeq(ctx context.Context, id string) (int64, error) {
	const op = "documents.list"
	query, args, err := psq.Select("seq").From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, backend.Wrap(backend.KindUnknown, op, fmt.Errorf("building cursor lookup: %w", err))
	}
	var seq int64
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, backend.Errorf(backend.KindValidation, op, "document %q for the cursor value not found", id)
		}
		return 0, mapError(op, err)
	}
	return seq, nil
}

// filterClause turns equal/notEqual queries into jsonb text comparisons. The
// attribute name is bound as a parameter, never spliced into the SQL.
func filterClause(filters []backend.Query) sq.And {
	clause := sq.And{}
	for _, q := range filters {
		switch q.Method {
		case backend.MethodEqual:
			anyOf := sq.Or{}
			for _, v := range q.Values {
				anyOf = append(anyOf, sq.Expr("data->>?::text = ?", q.Attribute, fmt.Sprint(v)))
			}
			clause = append(clause, anyOf)
		case backend.MethodNotEqual:
			for _, v := range q.Values {
				clause = append(clause, sq.Expr("(data->>?::text IS NULL OR data->>?::text <> ?)", q.Attribute, q.Attribute, fmt.Sprint(v)))
			}
		}
	}
	return clause
}

func applyFilters(qb sq.SelectBuilder, where sq.And) sq.SelectBuilder {
	if len(where) == 0 {
		return qb
	}
	return qb.Where(where)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*backend.Document, error) {
	var (
		doc     backend.Document
		payload []byte
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&doc.ID, &payload, &created, &updated); err != nil {
		return nil, err
	}
	doc.CreatedAt, doc.UpdatedAt = created, updated
	doc.Data = map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &doc.Data); err != nil {
			return nil, fmt.Errorf("decoding document data: %w", err)
		}
	}
	return &doc, nil
}

// encodeData renders data as JSON text; pq sends []byte as bytea, which
// jsonb columns reject.
func encodeData(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding document data: %w", err)
	}
	return string(b), nil
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	maps.Copy(out, data)
	return out
}

func mapError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Errorf(backend.KindNotFound, op, "document not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return &backend.Error{Kind: backend.KindConflict, Op: op, Message: "document with the requested id already exists", Err: err}
		case pqErr.Code.Class() == "22", pqErr.Code.Class() == "23":
			return &backend.Error{Kind: backend.KindValidation, Op: op, Message: pqErr.Message, Err: err}
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			return backend.Wrap(backend.KindNetwork, op, err)
		}
		return backend.Wrap(backend.KindUnknown, op, err)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backend.Wrap(backend.KindNetwork, op, err)
	}
	return backend.Wrap(backend.KindUnknown, op, err)
}

var _ backend.Documents = (*Documents)(nil)
