package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/partstock-io/partstock/internal/category"
	"github.com/partstock-io/partstock/internal/importer"
)

// Part is one inventory entity. Identity lives in the normalized key
// columns; everything merged from imports lives in the attrs map.
type Part struct {
	ID           pgtype.UUID       `json:"id"`
	Manufacturer string            `json:"manufacturer"`
	PartNumber   string            `json:"part_number"`
	Attrs        map[string]string `json:"attrs"`
	Category     category.Label    `json:"category"`
	DatasheetSHA pgtype.Text       `json:"datasheet_sha,omitzero"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

const partColumns = `id, manufacturer_norm, part_number_norm, attrs,
	category_l1, COALESCE(category_l2, ''), datasheet_sha, created_at, updated_at`

func scanPart(row pgx.Row) (*Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.Manufacturer, &p.PartNumber, &p.Attrs,
		&p.Category.Level1, &p.Category.Level2, &p.DatasheetSHA, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByKey implements importer.KeyedLookup. A missing entity is (nil, nil).
func (s *Store) FindByKey(ctx context.Context, key importer.NormalizedKey) (*importer.Entity, error) {
	p, err := s.findPartByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return &importer.Entity{ID: uuid.UUID(p.ID.Bytes).String(), Attrs: p.Attrs}, nil
}

func (s *Store) findPartByKey(ctx context.Context, key importer.NormalizedKey) (*Part, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+partColumns+`
		FROM parts
		WHERE manufacturer_norm = $1 AND part_number_norm = $2`,
		key.Manufacturer, key.PartNumber)

	p, err := scanPart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find part by key: %w", err)
	}
	return p, nil
}

// Create implements importer.KeyedLookup with a single INSERT.
func (s *Store) Create(ctx context.Context, rec *importer.Record) (*importer.Entity, error) {
	key := rec.Key()
	id := uuid.New()

	var level2 pgtype.Text
	if rec.Category.Level2 != "" {
		level2 = pgtype.Text{String: rec.Category.Level2, Valid: true}
	}
	level1 := rec.Category.Level1
	if level1 == "" {
		level1 = category.DefaultFallback.Level1
	}

	attrs := rec.Attrs()
	_, err := s.db.Exec(ctx, `
		INSERT INTO parts (id, manufacturer_norm, part_number_norm, attrs, category_l1, category_l2)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pgtype.UUID{Bytes: id, Valid: true}, key.Manufacturer, key.PartNumber, attrs, level1, level2)
	if err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}

	return &importer.Entity{ID: id.String(), Attrs: attrs}, nil
}

// Update implements importer.KeyedLookup. Only the changed attributes are
// written, as a single atomic jsonb merge.
func (s *Store) Update(ctx context.Context, ent *importer.Entity, changed map[string]string) (*importer.Entity, error) {
	id, err := uuid.Parse(ent.ID)
	if err != nil {
		return nil, fmt.Errorf("update part: bad entity id %q: %w", ent.ID, err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE parts SET attrs = attrs || $2, updated_at = now()
		WHERE id = $1`,
		pgtype.UUID{Bytes: id, Valid: true}, changed)
	if err != nil {
		return nil, fmt.Errorf("update part: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("update part: entity %s vanished", ent.ID)
	}

	for k, v := range changed {
		ent.Attrs[k] = v
	}
	return ent, nil
}

// GetPart fetches one part by id.
func (s *Store) GetPart(ctx context.Context, id uuid.UUID) (*Part, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+partColumns+`
		FROM parts WHERE id = $1`,
		pgtype.UUID{Bytes: id, Valid: true})

	p, err := scanPart(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get part: %w", err)
	}
	return p, nil
}

// ListParts returns parts ordered by identity, optionally filtered by a
// case-insensitive substring over identity and description.
func (s *Store) ListParts(ctx context.Context, search string, limit, offset int) ([]*Part, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+partColumns+`
		FROM parts
		WHERE $1 = ''
		   OR manufacturer_norm ILIKE '%' || $1 || '%'
		   OR part_number_norm ILIKE '%' || $1 || '%'
		   OR attrs->>'description' ILIKE '%' || $1 || '%'
		ORDER BY manufacturer_norm, part_number_norm
		LIMIT $2 OFFSET $3`,
		search, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []*Part
	for rows.Next() {
		p, err := scanPart(rows)
		if err != nil {
			return nil, fmt.Errorf("list parts: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// DeletePart removes a part. Returns false if it did not exist.
func (s *Store) DeletePart(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM parts WHERE id = $1`,
		pgtype.UUID{Bytes: id, Valid: true})
	if err != nil {
		return false, fmt.Errorf("delete part: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CategoryCount is one two-level category label and its part count.
type CategoryCount struct {
	Category category.Label `json:"category"`
	Count    int64          `json:"count"`
}

// ListCategories returns the distinct category labels in use.
func (s *Store) ListCategories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category_l1, COALESCE(category_l2, ''), COUNT(*)
		FROM parts
		GROUP BY category_l1, category_l2
		ORDER BY category_l1, category_l2 NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category.Level1, &c.Category.Level2, &c.Count); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetDatasheet records the content hash of a fetched datasheet.
func (s *Store) SetDatasheet(ctx context.Context, id uuid.UUID, sha string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE parts SET datasheet_sha = $2, updated_at = now()
		WHERE id = $1`,
		pgtype.UUID{Bytes: id, Valid: true}, sha)
	if err != nil {
		return fmt.Errorf("set datasheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set datasheet: part %s not found", id)
	}
	return nil
}
