package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"autobot/internal/embedding"
	"autobot/internal/logging"
	"autobot/internal/types"
)

// =============================================================================
// PARTITIONED VECTOR INDEX
// =============================================================================

// UpsertEntry stores (or replaces) an indexed entry in its partition.
// Embeddings are supplied by the caller; the store never talks to the
// embedding capability itself.
func (s *Store) UpsertEntry(entry types.MemoryEntry) error {
	if !entry.Partition.Valid() {
		return fmt.Errorf("invalid partition: %q", entry.Partition)
	}
	if entry.ID == "" {
		return fmt.Errorf("entry id required")
	}
	if len(entry.Embedding) == 0 {
		return fmt.Errorf("entry embedding required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	embeddingJSON, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}
	metaJSON := marshalMetadata(entry.Metadata)

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO memory_entries (partition, entry_id, content, embedding, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(entry.Partition), entry.ID, entry.Text, string(embeddingJSON), metaJSON, time.Now().Format(time.RFC3339Nano),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to upsert entry %s/%s: %v", entry.Partition, entry.ID, err)
		return fmt.Errorf("failed to upsert entry: %w", err)
	}

	logging.StoreDebug("Upserted entry partition=%s id=%s", entry.Partition, entry.ID)
	return nil
}

// DeleteEntry removes an indexed entry. Deleting a missing entry is a no-op.
func (s *Store) DeleteEntry(partition types.Partition, id string) error {
	if !partition.Valid() {
		return fmt.Errorf("invalid partition: %q", partition)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"DELETE FROM memory_entries WHERE partition = ? AND entry_id = ?",
		string(partition), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// QueryPartition returns the entries in one partition nearest to the query
// vector, sorted ascending by cosine distance, truncated to limit. When the
// sqlite-vec extension is loaded the distance is computed in SQL; otherwise,
// or if the vec query fails (e.g. a row indexed at a different dimension),
// the store falls back to a cosine scan in Go.
func (s *Store) QueryPartition(partition types.Partition, queryEmbedding []float32, limit int) ([]types.SearchResult, error) {
	if !partition.Valid() {
		return nil, fmt.Errorf("invalid partition: %q", partition)
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.vectorExt {
		results, err := s.queryPartitionVec(partition, queryEmbedding, limit)
		if err == nil {
			return results, nil
		}
		logging.StoreDebug("vec query failed for partition %s, falling back to cosine scan: %v", partition, err)
	}

	return s.queryPartitionScan(partition, queryEmbedding, limit)
}

// queryPartitionVec ranks entries with sqlite-vec's distance function. The
// stored embeddings are JSON arrays, which sqlite-vec accepts directly.
func (s *Store) queryPartitionVec(partition types.Partition, queryEmbedding []float32, limit int) ([]types.SearchResult, error) {
	queryJSON, err := json.Marshal(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query embedding: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT entry_id, content, metadata, vec_distance_cosine(embedding, ?) AS distance
		 FROM memory_entries
		 WHERE partition = ?
		 ORDER BY distance ASC
		 LIMIT ?`,
		string(queryJSON), string(partition), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var id, content string
		var metaJSON sql.NullString
		var distance sql.NullFloat64
		if err := rows.Scan(&id, &content, &metaJSON, &distance); err != nil {
			return nil, err
		}
		if !distance.Valid {
			continue
		}
		results = append(results, types.SearchResult{
			ID:        id,
			Text:      content,
			Metadata:  unmarshalMetadata(metaJSON),
			Partition: partition,
			Distance:  distance.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// queryPartitionScan computes cosine distance in Go over every row in the
// partition. Entries indexed at a different dimension are skipped.
func (s *Store) queryPartitionScan(partition types.Partition, queryEmbedding []float32, limit int) ([]types.SearchResult, error) {
	rows, err := s.db.Query(
		"SELECT entry_id, content, embedding, metadata FROM memory_entries WHERE partition = ?",
		string(partition),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query partition %s: %w", partition, err)
	}
	defer rows.Close()

	var results []types.SearchResult
	for rows.Next() {
		var id, content, embeddingJSON string
		var metaJSON sql.NullString
		if err := rows.Scan(&id, &content, &embeddingJSON, &metaJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embeddingJSON), &vec); err != nil {
			logging.StoreDebug("Skipping entry %s/%s with unreadable embedding: %v", partition, id, err)
			continue
		}

		distance, err := embedding.CosineDistance(queryEmbedding, vec)
		if err != nil {
			// Dimension mismatch: index written by a different engine.
			logging.StoreDebug("Skipping entry %s/%s: %v", partition, id, err)
			continue
		}

		results = append(results, types.SearchResult{
			ID:        id,
			Text:      content,
			Metadata:  unmarshalMetadata(metaJSON),
			Partition: partition,
			Distance:  distance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read partition %s: %w", partition, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// CountEntries returns the number of indexed entries in a partition.
func (s *Store) CountEntries(partition types.Partition) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM memory_entries WHERE partition = ?",
		string(partition),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count partition %s: %w", partition, err)
	}
	return count, nil
}
