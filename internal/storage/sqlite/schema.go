package sqlite

// Schema creates the entity and fact tables. Applied on every open;
// statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS entities (
    id            TEXT PRIMARY KEY,
    slug          TEXT NOT NULL,
    name          TEXT NOT NULL,
    type          TEXT NOT NULL CHECK (type IN ('person', 'company', 'project')),
    summary       TEXT NOT NULL DEFAULT '',
    summary_stale INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL,
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
    created_at       TIMESTAMP NOT NULL,
    last_accessed_at TIMESTAMP,
    access_count     INTEGER NOT NULL DEFAULT 0,
    seq              INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(entity_id, seq);
CREATE INDEX IF NOT EXISTS idx_facts_status ON facts(status);
`
