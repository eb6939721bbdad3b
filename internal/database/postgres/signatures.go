package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

const signatureColumns = `post_id, checksum, signature, words, version, created_at, updated_at`

// SignatureRepository provides PostgreSQL-backed signature storage with
// optional in-memory word and HNSW indexes.
type SignatureRepository struct {
	pool *Pool

	mu        sync.RWMutex
	words     *database.WordIndex
	wordsPath string
	hnsw      *database.HNSWSignatureIndex
	hnswPath  string
}

// IndexOptions selects the in-memory indexes kept next to the table.
type IndexOptions struct {
	Words        bool
	WordsPath    string
	HNSW         bool
	HNSWPath     string
	HNSWM        int
	HNSWEfSearch int
}

// NewSignatureRepository creates a new PostgreSQL signature repository
func NewSignatureRepository(pool *Pool) *SignatureRepository {
	return &SignatureRepository{pool: pool}
}

// Register makes the repository the active signature backend.
func Register(repo *SignatureRepository) {
	database.RegisterPostgresBackend(
		func() database.SignatureReader { return repo },
		func() database.SignatureWriter { return repo },
	)
	database.RegisterIndexRebuilder(repo)
}

func scanSignature(row interface{ Scan(dest ...any) error }) (database.StoredSignature, error) {
	var (
		sig    database.StoredSignature
		values []int64
		words  []int32
	)
	if err := row.Scan(
		&sig.PostID,
		&sig.Checksum,
		pq.Array(&values),
		pq.Array(&words),
		&sig.Version,
		&sig.CreatedAt,
		&sig.UpdatedAt,
	); err != nil {
		return sig, err //nolint:wrapcheck // callers wrap with context
	}

	c, err := signature.FromSlice(values)
	if err != nil {
		return sig, fmt.Errorf("post %d: %w", sig.PostID, err)
	}
	w, err := signature.WordsFromSlice(words)
	if err != nil {
		return sig, fmt.Errorf("post %d: %w", sig.PostID, err)
	}
	sig.Signature = c
	sig.Words = w
	return sig, nil
}

func scanSignatures(rows *sql.Rows) ([]database.StoredSignature, error) {
	var sigs []database.StoredSignature
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		sigs = append(sigs, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signatures: %w", err)
	}
	return sigs, nil
}

// Get retrieves the signature of a post, returns nil if not found
func (r *SignatureRepository) Get(ctx context.Context, postID int64) (*database.StoredSignature, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+signatureColumns+` FROM post_signature WHERE post_id = $1`, postID)

	sig, err := scanSignature(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query signature: %w", err)
	}
	return &sig, nil
}

// Has checks if a signature exists for the given post
func (r *SignatureRepository) Has(ctx context.Context, postID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM post_signature WHERE post_id = $1)", postID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check signature exists: %w", err)
	}
	return exists, nil
}

// Count returns the total number of signatures stored
func (r *SignatureRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM post_signature").Scan(&count); err != nil {
		return 0, fmt.Errorf("count signatures: %w", err)
	}
	return count, nil
}

// Stats returns the number of signatures and how many are outdated
func (r *SignatureRepository) Stats(ctx context.Context) (database.SignatureStats, error) {
	var stats database.SignatureStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE version <> $1)
		FROM post_signature
	`, signature.Version).Scan(&stats.Total, &stats.Outdated)
	if err != nil {
		return stats, fmt.Errorf("query signature stats: %w", err)
	}
	return stats, nil
}

func (r *SignatureRepository) maxPostID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.pool.QueryRow(ctx, "SELECT MAX(post_id) FROM post_signature").Scan(&id); err != nil {
		return 0, fmt.Errorf("query max post id: %w", err)
	}
	return id.Int64, nil
}

// FindByChecksum returns the IDs of posts with exactly this content
func (r *SignatureRepository) FindByChecksum(ctx context.Context, checksum string) ([]int64, error) {
	if checksum == "" {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, "SELECT post_id FROM post_signature WHERE checksum = $1 ORDER BY post_id", checksum)
	if err != nil {
		return nil, fmt.Errorf("query posts by checksum: %w", err)
	}
	defer rows.Close()
	return scanPostIDs(rows)
}

func scanPostIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan post id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post ids: %w", err)
	}
	return ids, nil
}

// getMany loads the signatures of the given posts, keeping the order of ids.
func (r *SignatureRepository) getMany(ctx context.Context, ids []int64) ([]database.StoredSignature, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+signatureColumns+` FROM post_signature WHERE post_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query signatures by ids: %w", err)
	}
	defer rows.Close()

	found, err := scanSignatures(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]database.StoredSignature, len(found))
	for _, s := range found {
		byID[s.PostID] = s
	}
	sigs := make([]database.StoredSignature, 0, len(found))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			sigs = append(sigs, s)
		}
	}
	return sigs, nil
}

// FindCandidates returns signatures sharing at least one word with words.
// Uses the in-memory word index if enabled, otherwise the GIN index.
func (r *SignatureRepository) FindCandidates(ctx context.Context, c signature.Compressed, words signature.Words, limit int) ([]database.StoredSignature, error) {
	r.mu.RLock()
	idx := r.words
	r.mu.RUnlock()

	if idx != nil {
		return r.getMany(ctx, idx.Candidates(words, limit))
	}

	query := `
		SELECT ` + signatureColumns + `
		FROM post_signature
		WHERE words && $1
		ORDER BY signature_vec <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(signature.Decode(c).Centered())
	rows, err := r.pool.Query(ctx, query, pq.Array(words.Slice()), vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query signature candidates: %w", err)
	}
	defer rows.Close()

	return scanSignatures(rows)
}

// FindNearest returns the signatures whose vectors are closest to c.
// Uses the in-memory HNSW index if enabled, otherwise pgvector.
func (r *SignatureRepository) FindNearest(ctx context.Context, c signature.Compressed, limit int) ([]database.StoredSignature, error) {
	r.mu.RLock()
	idx := r.hnsw
	r.mu.RUnlock()

	if idx != nil {
		return r.getMany(ctx, idx.Search(c, limit))
	}

	tx, err := r.pool.DB().BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	query := `
		SELECT ` + signatureColumns + `
		FROM post_signature
		ORDER BY signature_vec <-> $1
		LIMIT $2
	`
	vec := pgvector.NewVector(signature.Decode(c).Centered())
	rows, err := tx.QueryContext(ctx, query, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest signatures: %w", err)
	}
	defer rows.Close()

	return scanSignatures(rows)
}

// GetPostIDs returns the IDs of all posts with a signature, ascending
func (r *SignatureRepository) GetPostIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, "SELECT post_id FROM post_signature ORDER BY post_id")
	if err != nil {
		return nil, fmt.Errorf("query post ids: %w", err)
	}
	defer rows.Close()
	return scanPostIDs(rows)
}

// Scan calls fn with consecutive batches of signatures ordered by post ID.
func (r *SignatureRepository) Scan(ctx context.Context, batchSize int, fn func([]database.StoredSignature) error) error {
	if batchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	query := `
		SELECT ` + signatureColumns + `
		FROM post_signature
		WHERE post_id > $1
		ORDER BY post_id
		LIMIT $2
	`

	var after int64 = -1 << 63
	for {
		rows, err := r.pool.Query(ctx, query, after, batchSize)
		if err != nil {
			return fmt.Errorf("query signature batch: %w", err)
		}
		batch, err := scanSignatures(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].PostID
	}
}

// Save stores the signature of a post (upsert)
func (r *SignatureRepository) Save(ctx context.Context, sig database.StoredSignature) error {
	query := `
		INSERT INTO post_signature (post_id, checksum, signature, words, version, signature_vec, norm)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id) DO UPDATE SET
			checksum = EXCLUDED.checksum,
			signature = EXCLUDED.signature,
			words = EXCLUDED.words,
			version = EXCLUDED.version,
			signature_vec = EXCLUDED.signature_vec,
			norm = EXCLUDED.norm,
			updated_at = NOW()
	`

	cache := signature.NewCache(sig.Signature)
	vec := pgvector.NewVector(cache.Signature().Centered())
	_, err := r.pool.Exec(ctx, query,
		sig.PostID,
		sig.Checksum,
		pq.Array(sig.Signature[:]),
		pq.Array(sig.Words.Slice()),
		sig.Version,
		vec,
		cache.Norm(),
	)
	if err != nil {
		return fmt.Errorf("save signature: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.words != nil {
		r.words.Add(sig.PostID, sig.Words)
	}
	if r.hnsw != nil {
		r.hnsw.Add(sig.PostID, sig.Signature)
	}
	return nil
}

// Delete removes the signature of a post and cleans up the in-memory indexes
func (r *SignatureRepository) Delete(ctx context.Context, postID int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM post_signature WHERE post_id = $1", postID); err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.words != nil {
		r.words.Remove(postID)
	}
	if r.hnsw != nil {
		r.hnsw.Delete(postID)
	}
	return nil
}

// UpdateWords replaces the words of many posts in a single transaction
func (r *SignatureRepository) UpdateWords(ctx context.Context, updates []database.WordsUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	err := r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `UPDATE post_signature SET words = $2, updated_at = NOW() WHERE post_id = $1`)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, u := range updates {
			if _, err := stmt.ExecContext(ctx, u.PostID, pq.Array(u.Words.Slice())); err != nil {
				return fmt.Errorf("update words of post %d: %w", u.PostID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.words != nil {
		for _, u := range updates {
			r.words.Add(u.PostID, u.Words)
		}
	}
	return nil
}

// EnableIndexes loads or builds the configured in-memory indexes.
// Snapshots on disk are used when they still describe the table.
// This should be called once at startup.
func (r *SignatureRepository) EnableIndexes(ctx context.Context, opts IndexOptions) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	maxID, err := r.maxPostID(ctx)
	if err != nil {
		return err
	}

	var (
		words   *database.WordIndex
		hnsw    *database.HNSWSignatureIndex
		rebuild bool
	)

	if opts.Words {
		words = database.NewWordIndex()
		if !tryLoadWordIndex(words, opts.WordsPath, count) {
			rebuild = true
		}
	}
	if opts.HNSW {
		hnsw = database.NewHNSWSignatureIndex(opts.HNSWM, opts.HNSWEfSearch)
		if !tryLoadHNSWIndex(hnsw, opts.HNSWPath, int64(count), maxID) {
			rebuild = true
		}
	}

	r.mu.Lock()
	r.words, r.wordsPath = words, opts.WordsPath
	r.hnsw, r.hnswPath = hnsw, opts.HNSWPath
	r.mu.Unlock()

	if !rebuild {
		return nil
	}
	if err := r.RebuildIndexes(ctx); err != nil {
		return err
	}
	if err := r.SaveIndexes(); err != nil {
		log.Printf("Warning: failed to save signature indexes: %v", err)
	}
	return nil
}

func tryLoadWordIndex(idx *database.WordIndex, path string, count int) bool {
	if path == "" {
		return false
	}
	if err := idx.Load(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Word index: %v (will rebuild)", err)
		}
		return false
	}
	if idx.Count() != count {
		log.Printf("Word index: stale (db: count=%d, cached: count=%d) (will rebuild)", count, idx.Count())
		return false
	}
	log.Printf("Word index: loaded %d posts from disk", count)
	return true
}

func tryLoadHNSWIndex(idx *database.HNSWSignatureIndex, path string, count, maxID int64) bool {
	if path == "" {
		return false
	}
	meta, err := idx.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("HNSW index: %v (will rebuild)", err)
		}
		return false
	}
	if !meta.Matches(count, maxID) {
		log.Printf("HNSW index: stale (db: count=%d max=%d, cached: count=%d max=%d) (will rebuild)",
			count, maxID, meta.PostCount, meta.MaxPostID)
		return false
	}
	log.Printf("HNSW index: loaded %d posts from disk", count)
	return true
}

// RebuildIndexes rebuilds the enabled in-memory indexes from PostgreSQL data
func (r *SignatureRepository) RebuildIndexes(ctx context.Context) error {
	r.mu.RLock()
	words, hnsw := r.words, r.hnsw
	r.mu.RUnlock()

	if words == nil && hnsw == nil {
		return nil
	}

	var all []database.StoredSignature
	err := r.Scan(ctx, database.ScanBatchSize, func(batch []database.StoredSignature) error {
		all = append(all, batch...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load signatures: %w", err)
	}

	if words != nil {
		words.Build(all)
	}
	if hnsw != nil {
		hnsw.Build(all)
	}
	log.Printf("Signature indexes: rebuilt from %d posts", len(all))
	return nil
}

// IndexedCount returns the number of posts held by the in-memory indexes
func (r *SignatureRepository) IndexedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.words != nil:
		return r.words.Count()
	case r.hnsw != nil:
		return r.hnsw.Count()
	default:
		return 0
	}
}

// SaveIndexes writes snapshots of the in-memory indexes to their configured paths
func (r *SignatureRepository) SaveIndexes() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.words != nil && r.wordsPath != "" {
		if err := r.words.Save(r.wordsPath); err != nil {
			return fmt.Errorf("saving word index: %w", err)
		}
	}
	if r.hnsw != nil && r.hnswPath != "" {
		if err := r.hnsw.Save(r.hnswPath); err != nil {
			return fmt.Errorf("saving HNSW index: %w", err)
		}
	}
	return nil
}

// Verify interface compliance
var (
	_ database.SignatureReader = (*SignatureRepository)(nil)
	_ database.SignatureWriter = (*SignatureRepository)(nil)
	_ database.IndexRebuilder  = (*SignatureRepository)(nil)
)
