// ABOUTME: SQLite database schema for a corpus collection
// ABOUTME: Collection metadata, embedded entries and the ingest ledger
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Collection metadata (embedding model and dimension)
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Embedded chunks; seq is the insertion order used to break score ties
CREATE TABLE IF NOT EXISTS entries (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    chunk_id TEXT NOT NULL,
    source TEXT NOT NULL,
    locator TEXT,
    page INTEGER DEFAULT 1,
    char_offset INTEGER DEFAULT 0,
    chunk_index INTEGER DEFAULT 0,
    article_ref TEXT,
    content TEXT NOT NULL,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Sources that finished loading, keyed by locator
CREATE TABLE IF NOT EXISTS sources (
    source TEXT PRIMARY KEY,
    digest TEXT NOT NULL,
    entries INTEGER DEFAULT 0,
    loaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source);
CREATE INDEX IF NOT EXISTS idx_entries_chunk ON entries(chunk_id);
`

// SchemaVersion is stamped into PRAGMA user_version; newer files are refused
const SchemaVersion = 1
