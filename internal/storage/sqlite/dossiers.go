// ABOUTME: Dossier storage: dossiers, append-only facts, fact embeddings, provenance
// ABOUTME: Implements the vector search the Multi-Vector Voting tally runs on
package sqlite

import (
	"database/sql"
	"sort"
	"time"

	"github.com/harper/hmlr/internal/models"
)

// DossierStore handles dossier persistence
type DossierStore struct {
	db *DB
}

// NewDossierStore creates a new DossierStore
func NewDossierStore(db *DB) *DossierStore {
	return &DossierStore{db: db}
}

// Create inserts a new dossier row
func (s *DossierStore) Create(dossier *models.Dossier) error {
	createdAt := dossier.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	lastUpdated := dossier.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = createdAt
	}
	status := dossier.Status
	if status == "" {
		status = models.DossierActive
	}

	_, err := s.db.Exec(`
		INSERT INTO dossiers (dossier_id, title, summary, status, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, dossier.DossierID, dossier.Title, dossier.Summary, string(status), createdAt, lastUpdated)

	return err
}

// Get retrieves a dossier by ID, nil if not found
func (s *DossierStore) Get(dossierID string) (*models.Dossier, error) {
	var (
		dossier models.Dossier
		summary sql.NullString
		status  string
	)

	err := s.db.QueryRow(`
		SELECT dossier_id, title, summary, status, created_at, last_updated
		FROM dossiers
		WHERE dossier_id = ?
	`, dossierID).Scan(&dossier.DossierID, &dossier.Title, &summary, &status,
		&dossier.CreatedAt, &dossier.LastUpdated)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if summary.Valid {
		dossier.Summary = summary.String
	}
	dossier.Status = models.DossierStatus(status)
	return &dossier, nil
}

// List retrieves all dossiers, most recently updated first
func (s *DossierStore) List() ([]models.Dossier, error) {
	rows, err := s.db.Query(`
		SELECT dossier_id, title, summary, status, created_at, last_updated
		FROM dossiers
		ORDER BY last_updated DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var dossiers []models.Dossier
	for rows.Next() {
		var (
			dossier models.Dossier
			summary sql.NullString
			status  string
		)
		if err := rows.Scan(&dossier.DossierID, &dossier.Title, &summary, &status,
			&dossier.CreatedAt, &dossier.LastUpdated); err != nil {
			return nil, err
		}
		if summary.Valid {
			dossier.Summary = summary.String
		}
		dossier.Status = models.DossierStatus(status)
		dossiers = append(dossiers, dossier)
	}
	return dossiers, rows.Err()
}

// UpdateSummary rewrites a dossier's summary and bumps last_updated
func (s *DossierStore) UpdateSummary(dossierID, summary string) error {
	_, err := s.db.Exec(`
		UPDATE dossiers SET summary = ?, last_updated = ? WHERE dossier_id = ?
	`, summary, time.Now().UTC(), dossierID)
	return err
}

// Touch bumps last_updated without changing content
func (s *DossierStore) Touch(dossierID string) error {
	_, err := s.db.Exec(`
		UPDATE dossiers SET last_updated = ? WHERE dossier_id = ?
	`, time.Now().UTC(), dossierID)
	return err
}

// AddFact appends a fact to a dossier
func (s *DossierStore) AddFact(fact *models.DossierFact) error {
	addedAt := fact.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO dossier_facts (fact_id, dossier_id, fact_text, fact_type, source_block_id, source_turn_id, confidence, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fact.FactID, fact.DossierID, fact.FactText, nullString(fact.FactType),
		nullString(fact.SourceBlockID), nullString(fact.SourceTurnID),
		fact.Confidence, addedAt)

	return err
}

// GetFacts retrieves all facts for a dossier in insertion order
func (s *DossierStore) GetFacts(dossierID string) ([]models.DossierFact, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, dossier_id, fact_text, fact_type, source_block_id, source_turn_id, confidence, added_at
		FROM dossier_facts
		WHERE dossier_id = ?
		ORDER BY added_at ASC, rowid ASC
	`, dossierID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var facts []models.DossierFact
	for rows.Next() {
		var (
			fact     models.DossierFact
			factType sql.NullString
			blockID  sql.NullString
			turnID   sql.NullString
		)
		if err := rows.Scan(&fact.FactID, &fact.DossierID, &fact.FactText, &factType,
			&blockID, &turnID, &fact.Confidence, &fact.AddedAt); err != nil {
			return nil, err
		}
		if factType.Valid {
			fact.FactType = factType.String
		}
		if blockID.Valid {
			fact.SourceBlockID = blockID.String
		}
		if turnID.Valid {
			fact.SourceTurnID = turnID.String
		}
		facts = append(facts, fact)
	}
	return facts, rows.Err()
}

// SaveFactEmbedding stores the vector for a dossier fact
func (s *DossierStore) SaveFactEmbedding(factID, dossierID string, vector []float64) error {
	_, err := s.db.Exec(`
		INSERT INTO dossier_fact_embeddings (fact_id, dossier_id, vector)
		VALUES (?, ?, ?)
		ON CONFLICT(fact_id) DO UPDATE SET vector = excluded.vector
	`, factID, dossierID, vectorToBlob(vector))
	return err
}

// SearchFacts performs cosine similarity search over dossier fact embeddings.
// Ties are broken by fact ID so rankings stay deterministic.
func (s *DossierStore) SearchFacts(queryVector []float64, maxResults int, threshold float64) ([]models.DossierFactHit, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, dossier_id, vector FROM dossier_fact_embeddings
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hits []models.DossierFactHit
	for rows.Next() {
		var (
			hit  models.DossierFactHit
			blob []byte
		)
		if err := rows.Scan(&hit.FactID, &hit.DossierID, &blob); err != nil {
			return nil, err
		}

		score := CosineSimilarity(queryVector, blobToVector(blob))
		if score < threshold {
			continue
		}
		hit.SimilarityScore = score
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].SimilarityScore != hits[j].SimilarityScore {
			return hits[i].SimilarityScore > hits[j].SimilarityScore
		}
		return hits[i].FactID < hits[j].FactID
	})

	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return hits, nil
}

// AddProvenance appends an audit row for a dossier
func (s *DossierStore) AddProvenance(entry *models.ProvenanceEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO dossier_provenance (provenance_id, dossier_id, operation, source_block_id, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ProvenanceID, entry.DossierID, string(entry.Operation),
		nullString(entry.SourceBlockID), nullString(entry.Details), createdAt)

	return err
}

// GetProvenance retrieves the audit log for a dossier in insertion order
func (s *DossierStore) GetProvenance(dossierID string) ([]models.ProvenanceEntry, error) {
	rows, err := s.db.Query(`
		SELECT provenance_id, dossier_id, operation, source_block_id, details, created_at
		FROM dossier_provenance
		WHERE dossier_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, dossierID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.ProvenanceEntry
	for rows.Next() {
		var (
			entry   models.ProvenanceEntry
			op      string
			blockID sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&entry.ProvenanceID, &entry.DossierID, &op, &blockID,
			&details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Operation = models.ProvenanceOperation(op)
		if blockID.Valid {
			entry.SourceBlockID = blockID.String
		}
		if details.Valid {
			entry.Details = details.String
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
