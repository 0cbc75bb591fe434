package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/retrievit/core"
	"github.com/poiesic/retrievit/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Chunk IDs are content-derived, so the same (source, text) pair always
// lands on the same key and re-ingestion is an overwrite.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository over an open backend.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{backend: backend}
}

// Close is a no-op; the backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// PutChunks inserts or replaces chunks and maintains the source index.
func (r *ChunkRepository) PutChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if chunk.Id == 0 {
				chunk.Id = core.ChunkID(chunk.Source, chunk.Text)
			}
			if chunk.InsertedAt.IsZero() {
				chunk.InsertedAt = now
			}
			if chunk.UpdatedAt.IsZero() {
				chunk.UpdatedAt = chunk.InsertedAt
			}

			// A replaced chunk under a different source would strand its
			// old index entry; content IDs bind source into the key, so
			// the pair is stable and the old entry is simply overwritten.
			key := makeChunkKey(chunk.Id)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			srcKey := makeChunkSourceKey(chunk.Source, chunk.Id)
			if err := tx.Set(srcKey, storage.MarshalID(chunk.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunks retrieves chunks by their IDs, skipping missing ones.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := r.readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteChunks removes chunks and their source index entries.
// Missing IDs are ignored.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeChunkKey(id)
			chunk, err := r.readChunk(tx, key)
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			if err := tx.Delete(makeChunkSourceKey(chunk.Source, id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteBySource removes every chunk under the source index prefix and
// returns the number removed. An absent source yields 0.
func (r *ChunkRepository) DeleteBySource(ctx context.Context, source string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialChunkSourceKey(source)
		opts.PrefetchValues = true
		iter := tx.NewIterator(opts)

		type pair struct{ srcKey, chunkKey []byte }
		var doomed []pair
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var id core.ID
			err := item.Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			doomed = append(doomed, pair{
				srcKey:   item.KeyCopy(nil),
				chunkKey: makeChunkKey(id),
			})
		}
		iter.Close()

		for _, p := range doomed {
			if err := tx.Delete(p.srcKey); err != nil {
				return err
			}
			if err := tx.Delete(p.chunkKey); err != nil {
				return err
			}
			count++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindSimilar scans every stored chunk and scores same-dimension ones.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int, filter storage.Filter) ([]*core.SearchResult, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var results []*core.SearchResult
	err := r.forEachChunk(func(chunk *core.Chunk) error {
		if chunk.Dimension() != len(vector) {
			return nil
		}
		if !filter.Matches(chunk.Metadata) {
			return nil
		}
		similarity := storage.CosineSimilarity(vector, chunk.Vector)
		if similarity >= minSimilarity {
			results = append(results, &core.SearchResult{
				Chunk:      chunk,
				Score:      similarity,
				SearchType: core.SearchTypeSemantic,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	storage.SortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ForEach visits every stored chunk.
func (r *ChunkRepository) ForEach(ctx context.Context, fn func(*core.Chunk) error) error {
	return r.forEachChunk(fn)
}

// Count returns the number of stored chunks without loading values.
func (r *ChunkRepository) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChunkRepository) forEachChunk(fn func(*core.Chunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkRecordPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// readChunk reads a chunk by key, returning nil when the key is absent.
func (r *ChunkRepository) readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}
