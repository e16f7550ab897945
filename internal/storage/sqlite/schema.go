// ABOUTME: SQLite database schema for HMLR memory storage
// ABOUTME: Creates the short-term ledger, fact store, and long-term dossier tables
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Short-term bridge blocks (one row per ongoing topic)
CREATE TABLE IF NOT EXISTS daily_ledger (
    block_id TEXT PRIMARY KEY,
    topic_label TEXT NOT NULL,
    keywords TEXT,
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    summary TEXT,
    open_loops TEXT,
    decisions TEXT,
    turn_count INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Turns (individual conversation exchanges, strictly ordered per block)
CREATE TABLE IF NOT EXISTS turns (
    turn_id TEXT PRIMARY KEY,
    block_id TEXT NOT NULL REFERENCES daily_ledger(block_id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    user_message TEXT,
    ai_response TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Extracted key-value facts. Append-only: rows are inserted with a NULL
-- source_block_id and linked once the Governor commits a routing decision.
CREATE TABLE IF NOT EXISTS fact_store (
    fact_id TEXT PRIMARY KEY,
    source_block_id TEXT,
    source_chunk_id TEXT,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    confidence REAL DEFAULT 1.0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Chunk vectors plus the chunk text needed for gardening promotion
CREATE TABLE IF NOT EXISTS embeddings (
    chunk_id TEXT PRIMARY KEY,
    turn_id TEXT,
    block_id TEXT,
    chunk_type TEXT NOT NULL,
    parent_chunk_id TEXT,
    content TEXT NOT NULL,
    token_count INTEGER DEFAULT 0,
    turn_ordinal INTEGER DEFAULT 0,
    vector BLOB NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Long-term chunks promoted by the Gardener. Tags live in block_metadata.
CREATE TABLE IF NOT EXISTS gardened_memory (
    chunk_id TEXT PRIMARY KEY,
    block_id TEXT NOT NULL,
    chunk_type TEXT NOT NULL,
    parent_chunk_id TEXT,
    content TEXT NOT NULL,
    token_count INTEGER DEFAULT 0,
    turn_ordinal INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Sticky meta tags, one row per gardened block
CREATE TABLE IF NOT EXISTS block_metadata (
    block_id TEXT PRIMARY KEY,
    global_tags TEXT NOT NULL DEFAULT '[]',
    section_rules TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Long-lived fact dossiers
CREATE TABLE IF NOT EXISTS dossiers (
    dossier_id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT,
    status TEXT NOT NULL DEFAULT 'ACTIVE',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dossier_facts (
    fact_id TEXT PRIMARY KEY,
    dossier_id TEXT NOT NULL REFERENCES dossiers(dossier_id) ON DELETE CASCADE,
    fact_text TEXT NOT NULL,
    fact_type TEXT,
    source_block_id TEXT,
    source_turn_id TEXT,
    confidence REAL DEFAULT 1.0,
    added_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dossier_fact_embeddings (
    fact_id TEXT PRIMARY KEY REFERENCES dossier_facts(fact_id) ON DELETE CASCADE,
    dossier_id TEXT NOT NULL,
    vector BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS dossier_provenance (
    provenance_id TEXT PRIMARY KEY,
    dossier_id TEXT NOT NULL REFERENCES dossiers(dossier_id) ON DELETE CASCADE,
    operation TEXT NOT NULL,
    source_block_id TEXT,
    details TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_ledger_status ON daily_ledger(status);
CREATE INDEX IF NOT EXISTS idx_turns_block ON turns(block_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_facts_key ON fact_store(key);
CREATE INDEX IF NOT EXISTS idx_facts_block ON fact_store(source_block_id);
CREATE INDEX IF NOT EXISTS idx_facts_chunk ON fact_store(source_chunk_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_block ON embeddings(block_id);
CREATE INDEX IF NOT EXISTS idx_embeddings_turn ON embeddings(turn_id);
CREATE INDEX IF NOT EXISTS idx_gardened_block ON gardened_memory(block_id);
CREATE INDEX IF NOT EXISTS idx_dossier_facts_dossier ON dossier_facts(dossier_id);
CREATE INDEX IF NOT EXISTS idx_dossier_prov_dossier ON dossier_provenance(dossier_id, created_at);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2
