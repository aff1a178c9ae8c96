package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/QRBulk/internal/render"
)

// templateLockKey serializes template inserts so the cap holds under
// concurrent creates.
const templateLockKey int64 = 0x51524275

const schemaSQL = `CREATE TABLE IF NOT EXISTS design_templates (
	id         UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	style      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const selectColumns = `SELECT id::text, name, style, created_at, updated_at FROM design_templates`

// PgStore keeps templates in PostgreSQL.
type PgStore struct {
	pool  *pgxpool.Pool
	limit int
}

// NewPgStore wraps pool. Call EnsureSchema before first use.
func NewPgStore(pool *pgxpool.Pool, limit int) *PgStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &PgStore{pool: pool, limit: limit}
}

// EnsureSchema creates the templates table if it does not exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create design_templates: %w", err)
	}
	return nil
}

// List returns templates in creation order.
func (s *PgStore) List(ctx context.Context) ([]Template, error) {
	rows, err := s.pool.Query(ctx, selectColumns+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	out := make([]Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

// Get returns one template.
func (s *PgStore) Get(ctx context.Context, id string) (Template, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Template{}, ErrTemplateNotFound
	}
	return scanTemplate(s.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
}

// Create inserts a template. The count check and insert run in one
// transaction under an advisory lock.
func (s *PgStore) Create(ctx context.Context, name string, style render.Style) (Template, error) {
	name, err := cleanName(name)
	if err != nil {
		return Template{}, err
	}
	styleJSON, err := json.Marshal(style)
	if err != nil {
		return Template{}, fmt.Errorf("encode style: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Template{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, templateLockKey); err != nil {
		return Template{}, fmt.Errorf("lock templates: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM design_templates`).Scan(&count); err != nil {
		return Template{}, fmt.Errorf("count templates: %w", err)
	}
	if count >= s.limit {
		return Template{}, fmt.Errorf("%w (%d)", ErrTemplateLimit, s.limit)
	}

	t, err := scanTemplate(tx.QueryRow(ctx,
		`INSERT INTO design_templates (id, name, style) VALUES ($1, $2, $3::jsonb)
		 RETURNING id::text, name, style, created_at, updated_at`,
		uuid.NewString(), name, string(styleJSON)))
	if err != nil {
		return Template{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Template{}, fmt.Errorf("commit template: %w", err)
	}
	return t, nil
}

// Rename changes a template's name.
func (s *PgStore) Rename(ctx context.Context, id, name string) (Template, error) {
	name, err := cleanName(name)
	if err != nil {
		return Template{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Template{}, ErrTemplateNotFound
	}

	return scanTemplate(s.pool.QueryRow(ctx,
		`UPDATE design_templates SET name = $2, updated_at = now() WHERE id = $1
		 RETURNING id::text, name, style, created_at, updated_at`,
		id, name))
}

// Delete removes a template.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrTemplateNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM design_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func scanTemplate(row pgx.Row) (Template, error) {
	var (
		t         Template
		styleJSON []byte
		created   time.Time
		updated   time.Time
	)
	if err := row.Scan(&t.ID, &t.Name, &styleJSON, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrTemplateNotFound
		}
		return Template{}, fmt.Errorf("scan template: %w", err)
	}
	if err := json.Unmarshal(styleJSON, &t.Style); err != nil {
		return Template{}, fmt.Errorf("decode style for template %s: %w", t.ID, err)
	}
	t.CreatedAt, t.UpdatedAt = created.UTC(), updated.UTC()
	return t, nil
}
