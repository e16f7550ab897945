// ABOUTME: Unified Storage layer that wraps all SQLite stores
// ABOUTME: Serializes writes, loads blocks with their turns, and holds gardening locks
package sqlite

import (
	"fmt"
	"sync"

	"github.com/harper/hmlr/internal/models"
)

// Storage manages all persistent data for HMLR using SQLite.
// The connection is treated as a serial resource: writes take the write lock,
// reads the read lock.
type Storage struct {
	db       *DB
	blocks   *BlockStore
	turns    *TurnStore
	facts    *FactStore
	chunks   *EmbeddingStore
	gardened *GardenedStore
	dossiers *DossierStore

	mu sync.RWMutex

	// gardening tracks blocks currently held by the Gardener so a resumption
	// cannot race a deletion.
	gardeningMu sync.Mutex
	gardening   map[string]bool
}

// NewStorageWithPath initializes storage with a database file path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory creates an in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	return &Storage{
		db:        db,
		blocks:    NewBlockStore(db),
		turns:     NewTurnStore(db),
		facts:     NewFactStore(db),
		chunks:    NewEmbeddingStore(db),
		gardened:  NewGardenedStore(db),
		dossiers:  NewDossierStore(db),
		gardening: make(map[string]bool),
	}
}

// Close closes the database connection
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ---- Bridge blocks ----

// SaveBlock inserts or updates a bridge block row
func (s *Storage) SaveBlock(block *models.BridgeBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.Save(block)
}

// GetBlock retrieves a block with its turns loaded, nil if not found
func (s *Storage) GetBlock(blockID string) (*models.BridgeBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	block, err := s.blocks.Get(blockID)
	if err != nil || block == nil {
		return block, err
	}

	turns, err := s.turns.GetByBlock(blockID)
	if err != nil {
		return nil, err
	}
	block.Turns = turns
	block.TurnCount = len(turns)
	return block, nil
}

// GetBlocksByStatus retrieves blocks with the given status, oldest first
func (s *Storage) GetBlocksByStatus(status models.BridgeBlockStatus) ([]models.BridgeBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks.GetByStatus(status)
}

// ListBlocks retrieves all ledger blocks, newest first
func (s *Storage) ListBlocks() ([]models.BridgeBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blocks.List()
}

// UpdateBlockStatus changes a block's status
func (s *Storage) UpdateBlockStatus(blockID string, status models.BridgeBlockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.UpdateStatus(blockID, status)
}

// DeleteBlock removes a block from the ledger
func (s *Storage) DeleteBlock(blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks.Delete(blockID)
}

// LedgerSnapshot returns the compact routing view of every ACTIVE and PAUSED
// block: ACTIVE blocks first, then PAUSED ones, each group oldest first.
func (s *Storage) LedgerSnapshot() ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []models.LedgerEntry
	for _, status := range []models.BridgeBlockStatus{models.StatusActive, models.StatusPaused} {
		blocks, err := s.blocks.GetByStatus(status)
		if err != nil {
			return nil, err
		}
		for i := range blocks {
			entries = append(entries, blocks[i].LedgerView())
		}
	}
	return entries, nil
}

// ---- Turns ----

// AppendTurn appends a turn to a block with the next ordinal and keeps the
// block's turn_count current.
func (s *Storage) AppendTurn(blockID string, turn *models.Turn) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordinal, err := s.turns.Append(blockID, turn)
	if err != nil {
		return 0, err
	}

	if _, err := s.db.Exec(`
		UPDATE daily_ledger SET turn_count = ?, updated_at = ? WHERE block_id = ?
	`, ordinal, turn.Timestamp, blockID); err != nil {
		return 0, err
	}

	return ordinal, nil
}

// ---- Facts ----

// InsertFact appends a fact row
func (s *Storage) InsertFact(fact *models.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facts.Insert(fact)
}

// LinkFactsToTurn links all unlinked facts of a turn to a block
func (s *Storage) LinkFactsToTurn(turnID, blockID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.facts.LinkToTurn(turnID, blockID)
}

// GetFactsForBlock retrieves block-scoped facts, newest first
func (s *Storage) GetFactsForBlock(blockID string) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts.GetByBlock(blockID)
}

// GetFactByKey retrieves the most recent fact with the given key
func (s *Storage) GetFactByKey(key string) (*models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts.GetByKey(key)
}

// SearchFacts searches facts by key or value substring
func (s *Storage) SearchFacts(query string, maxResults int) ([]models.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.facts.Search(query, maxResults)
}

// ---- Chunk embeddings ----

// SaveChunkEmbedding persists a chunk with its vector
func (s *Storage) SaveChunkEmbedding(chunk *models.Chunk, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.SaveChunk(chunk, vector)
}

// LinkChunksToTurn stamps block and ordinal onto a turn's chunks
func (s *Storage) LinkChunksToTurn(turnID, blockID string, turnOrdinal int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks.LinkToTurn(turnID, blockID, turnOrdinal)
}

// GetChunksByBlock retrieves the stored chunks of a block
func (s *Storage) GetChunksByBlock(blockID string) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks.GetChunksByBlock(blockID)
}

// SearchGardenedMemory performs vector search over promoted chunks and
// attaches each source block's sticky tags (fetched once per block).
func (s *Storage) SearchGardenedMemory(queryVector []float64, maxResults int, threshold float64) ([]models.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.chunks.SearchGardened(queryVector, maxResults, threshold)
	if err != nil {
		return nil, err
	}

	metaByBlock := make(map[string]*models.BlockMetadata)
	for i := range results {
		blockID := results[i].BlockID
		meta, ok := metaByBlock[blockID]
		if !ok {
			meta, err = s.gardened.GetMetadata(blockID)
			if err != nil {
				return nil, err
			}
			metaByBlock[blockID] = meta
		}
		if meta != nil {
			results[i].GlobalTags = meta.GlobalTags
			results[i].SectionRules = meta.SectionRules
		}
	}

	return results, nil
}

// ---- Gardened memory & metadata ----

// PromoteBlockChunks promotes a block's chunks into gardened_memory
func (s *Storage) PromoteBlockChunks(blockID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gardened.PromoteBlockChunks(blockID)
}

// SaveBlockMetadata writes the sticky tags for a gardened block
func (s *Storage) SaveBlockMetadata(meta *models.BlockMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gardened.SaveMetadata(meta)
}

// GetBlockMetadata retrieves a gardened block's sticky tags
func (s *Storage) GetBlockMetadata(blockID string) (*models.BlockMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gardened.GetMetadata(blockID)
}

// ---- Dossiers ----

// CreateDossier inserts a new dossier row
func (s *Storage) CreateDossier(dossier *models.Dossier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.Create(dossier)
}

// GetDossier retrieves a dossier by ID
func (s *Storage) GetDossier(dossierID string) (*models.Dossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dossiers.Get(dossierID)
}

// ListDossiers retrieves all dossiers
func (s *Storage) ListDossiers() ([]models.Dossier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dossiers.List()
}

// UpdateDossierSummary rewrites a dossier's summary
func (s *Storage) UpdateDossierSummary(dossierID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.UpdateSummary(dossierID, summary)
}

// TouchDossier bumps a dossier's last_updated timestamp
func (s *Storage) TouchDossier(dossierID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.Touch(dossierID)
}

// AddDossierFact appends a fact to a dossier
func (s *Storage) AddDossierFact(fact *models.DossierFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.AddFact(fact)
}

// GetDossierFacts retrieves a dossier's facts in insertion order
func (s *Storage) GetDossierFacts(dossierID string) ([]models.DossierFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dossiers.GetFacts(dossierID)
}

// SaveDossierFactEmbedding stores the vector for a dossier fact
func (s *Storage) SaveDossierFactEmbedding(factID, dossierID string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.SaveFactEmbedding(factID, dossierID, vector)
}

// SearchDossierFacts performs vector search over dossier fact embeddings
func (s *Storage) SearchDossierFacts(queryVector []float64, maxResults int, threshold float64) ([]models.DossierFactHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dossiers.SearchFacts(queryVector, maxResults, threshold)
}

// AddDossierProvenance appends an audit row for a dossier
func (s *Storage) AddDossierProvenance(entry *models.ProvenanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dossiers.AddProvenance(entry)
}

// GetDossierProvenance retrieves a dossier's audit log
func (s *Storage) GetDossierProvenance(dossierID string) ([]models.ProvenanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dossiers.GetProvenance(dossierID)
}

// ---- Gardening locks ----

// TryBeginGardening acquires the exclusive gardening lock for a block.
// Returns false if the block is already being gardened.
func (s *Storage) TryBeginGardening(blockID string) bool {
	s.gardeningMu.Lock()
	defer s.gardeningMu.Unlock()
	if s.gardening[blockID] {
		return false
	}
	s.gardening[blockID] = true
	return true
}

// EndGardening releases the gardening lock for a block
func (s *Storage) EndGardening(blockID string) {
	s.gardeningMu.Lock()
	defer s.gardeningMu.Unlock()
	delete(s.gardening, blockID)
}

// IsGardening reports whether a block is currently being gardened
func (s *Storage) IsGardening(blockID string) bool {
	s.gardeningMu.Lock()
	defer s.gardeningMu.Unlock()
	return s.gardening[blockID]
}
