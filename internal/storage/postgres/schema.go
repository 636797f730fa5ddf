package postgres

// Schema creates the entity and fact tables. All statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id            TEXT PRIMARY KEY,
    slug          TEXT NOT NULL,
    name          TEXT NOT NULL,
    type          TEXT NOT NULL CHECK (type IN ('person', 'company', 'project')),
    summary       TEXT NOT NULL DEFAULT '',
    summary_stale BOOLEAN NOT NULL DEFAULT FALSE,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    UNIQUE (type, slug)
);

CREATE TABLE IF NOT EXISTS facts (
    id               TEXT PRIMARY KEY,
    entity_id        TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    content          TEXT NOT NULL,
    category         TEXT NOT NULL DEFAULT 'context',
    source           TEXT NOT NULL DEFAULT '',
    status           TEXT NOT NULL DEFAULT 'active'
                     CHECK (status IN ('active', 'superseded', 'archived')),
    superseded_by    TEXT,
    tier             TEXT NOT NULL DEFAULT ''
                     CHECK (tier IN ('', 'hot', 'warm', 'cold')),
    created_at       TIMESTAMPTZ NOT NULL,
    last_accessed_at TIMESTAMPTZ,
    access_count     INTEGER NOT NULL DEFAULT 0,
    seq              INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(entity_id, seq);
CREATE INDEX IF NOT EXISTS idx_facts_status ON facts(status);
`

// MigrationPgvector adds the summary embedding column. Applied only when the
// pgvector extension is available; the 768 dimension matches the default
// Ollama embedding model.
const MigrationPgvector = `
ALTER TABLE entities ADD COLUMN IF NOT EXISTS summary_embedding vector(768);
CREATE INDEX IF NOT EXISTS idx_entities_summary_embedding
    ON entities USING hnsw (summary_embedding vector_cosine_ops);
`
