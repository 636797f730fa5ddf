// Package sqlite implements storage.EntityStore on SQLite via the pure-Go
// modernc.org/sqlite driver. It is the default backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// EntityStore implements storage.EntityStore using SQLite.
type EntityStore struct {
	db *sql.DB
}

// New opens a SQLite database, configures WAL mode, and creates the schema.
func New(dsn string) (*EntityStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load;
	// WAL mode lets readers proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &EntityStore{db: db}, nil
}

// ListByType returns all entities of the given type with their facts,
// facts ordered by insertion sequence.
func (s *EntityStore) ListByType(ctx context.Context, entityType types.EntityType) ([]*types.Entity, error) {
	if !types.IsValidEntityType(entityType) {
		return nil, fmt.Errorf("%w: entity type %q", storage.ErrInvalidInput, entityType)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, name, type, summary, summary_stale, created_at, updated_at
		FROM entities WHERE type = ? ORDER BY created_at, id`, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer rows.Close()

	var entities []*types.Entity
	byID := make(map[string]*types.Entity)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
		byID[e.ID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	factRows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.entity_id, f.content, f.category, f.source, f.status,
		       f.superseded_by, f.tier, f.created_at, f.last_accessed_at, f.access_count
		FROM facts f
		JOIN entities e ON e.id = f.entity_id
		WHERE e.type = ?
		ORDER BY f.entity_id, f.seq`, string(entityType))
	if err != nil {
		return nil, fmt.Errorf("failed to list facts: %w", err)
	}
	defer factRows.Close()

	for factRows.Next() {
		fact, entityID, err := scanFact(factRows)
		if err != nil {
			return nil, err
		}
		if e, ok := byID[entityID]; ok {
			e.Facts = append(e.Facts, fact)
		}
	}
	if err := factRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}

	return entities, nil
}

// Get retrieves one entity with its facts.
func (s *EntityStore) Get(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, type, summary, summary_stale, created_at, updated_at
		FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: entity %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, content, category, source, status,
		       superseded_by, tier, created_at, last_accessed_at, access_count
		FROM facts WHERE entity_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		fact, _, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		e.Facts = append(e.Facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate facts: %w", err)
	}

	return e, nil
}

// Create persists a new entity together with its initial facts.
func (s *EntityStore) Create(ctx context.Context, entity *types.Entity) error {
	if entity == nil {
		return storage.ErrInvalidInput
	}
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, slug, name, type, summary, summary_stale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.Slug, entity.Name, string(entity.Type),
		entity.Summary, boolToInt(entity.SummaryStale), entity.CreatedAt, entity.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s/%s", storage.ErrDuplicateSlug, entity.Type, entity.Slug)
		}
		return fmt.Errorf("failed to insert entity: %w", err)
	}

	for i, f := range entity.Facts {
		if err := insertFact(ctx, tx, entity.ID, f, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// AppendFacts adds facts to an existing entity and flags its summary stale.
func (s *EntityStore) AppendFacts(ctx context.Context, entityID string, facts []types.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var nextSeq int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM facts WHERE entity_id = ?`, entityID).Scan(&nextSeq)
	if err != nil {
		return fmt.Errorf("failed to compute fact sequence: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE entities SET summary_stale = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("failed to flag entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}

	for i, f := range facts {
		if err := insertFact(ctx, tx, entityID, f, nextSeq+i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RetierFacts applies one entity's sweep outcome atomically. Archival only
// applies to facts still active, so re-running a sweep is a no-op.
func (s *EntityStore) RetierFacts(ctx context.Context, entityID string, changes []storage.FactTierChange) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ch := range changes {
		if ch.Archive {
			_, err = tx.ExecContext(ctx, `
				UPDATE facts SET tier = ?, status = 'archived'
				WHERE id = ? AND entity_id = ? AND status = 'active'`,
				string(ch.Tier), ch.FactID, entityID)
		} else {
			_, err = tx.ExecContext(ctx, `
				UPDATE facts SET tier = ? WHERE id = ? AND entity_id = ?`,
				string(ch.Tier), ch.FactID, entityID)
		}
		if err != nil {
			return fmt.Errorf("failed to retier fact %s: %w", ch.FactID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE entities SET updated_at = ? WHERE id = ?`, time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("failed to touch entity: %w", err)
	}

	return tx.Commit()
}

// SetSummary replaces the summary and clears the stale flag.
func (s *EntityStore) SetSummary(ctx context.Context, entityID string, summary string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE entities SET summary = ?, summary_stale = 0, updated_at = ?
		WHERE id = ?`, summary, time.Now().UTC(), entityID)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}
	return nil
}

// TouchFacts bumps access stats for the given facts.
func (s *EntityStore) TouchFacts(ctx context.Context, factIDs []string, at time.Time) error {
	if len(factIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(factIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(factIDs)+1)
	args = append(args, at.UTC())
	for _, id := range factIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE facts SET last_accessed_at = ?, access_count = access_count + 1
		WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to touch facts: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *EntityStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for callers that need raw access
// (e.g. maintenance tooling).
func (s *EntityStore) DB() *sql.DB {
	return s.db
}

func insertFact(ctx context.Context, tx *sql.Tx, entityID string, f types.Fact, seq int) error {
	category := f.Category
	if category == "" {
		category = types.CategoryContext
	}
	var lastAccessed interface{}
	if f.LastAccessedAt != nil && !f.LastAccessedAt.IsZero() {
		lastAccessed = f.LastAccessedAt.UTC()
	}
	var supersededBy interface{}
	if f.SupersededBy != "" {
		supersededBy = f.SupersededBy
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO facts (id, entity_id, content, category, source, status,
		                   superseded_by, tier, created_at, last_accessed_at, access_count, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, entityID, f.Content, string(category), f.Source, string(f.Status),
		supersededBy, string(f.Tier), f.CreatedAt, lastAccessed, f.AccessCount, seq)
	if err != nil {
		return fmt.Errorf("failed to insert fact %s: %w", f.ID, err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(r rowScanner) (*types.Entity, error) {
	var (
		e       types.Entity
		typ     string
		stale   int
		created time.Time
		updated time.Time
	)
	err := r.Scan(&e.ID, &e.Slug, &e.Name, &typ, &e.Summary, &stale, &created, &updated)
	if err != nil {
		return nil, err
	}
	e.Type = types.EntityType(typ)
	e.SummaryStale = stale != 0
	e.CreatedAt = created
	e.UpdatedAt = updated
	return &e, nil
}

func scanFact(r rowScanner) (types.Fact, string, error) {
	var (
		f            types.Fact
		entityID     string
		category     string
		status       string
		tier         string
		supersededBy sql.NullString
		lastAccessed sql.NullTime
	)
	err := r.Scan(&f.ID, &entityID, &f.Content, &category, &f.Source, &status,
		&supersededBy, &tier, &f.CreatedAt, &lastAccessed, &f.AccessCount)
	if err != nil {
		return types.Fact{}, "", fmt.Errorf("failed to scan fact: %w", err)
	}
	f.Category = types.FactCategory(category)
	f.Status = types.FactStatus(status)
	f.Tier = types.FactTier(tier)
	if supersededBy.Valid {
		f.SupersededBy = supersededBy.String
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		f.LastAccessedAt = &t
	}
	return f, entityID, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
