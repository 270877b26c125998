package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/design-feed/internal/model"
)

// ErrCacheMiss is returned when no fresh entry exists for a key.
// Callers check with errors.Is(err, ErrCacheMiss).
var ErrCacheMiss = errors.New("cache miss")

// PhotoCacheRepository persists pages of photos keyed by (provider, query, page).
// Queries are normalized before keying, so "Living Room " and "living room"
// share entries. Every write is an upsert, which makes retries harmless.
type PhotoCacheRepository interface {
	// Get returns the entry for the exact key if it is younger than maxAge.
	Get(ctx context.Context, provider, query string, page int, maxAge time.Duration) (*model.CacheEntry, error)
	// GetCrossProvider returns the newest fresh entry for (query, page) from any
	// provider. The aggregated pool is excluded: it is not a page.
	GetCrossProvider(ctx context.Context, query string, page int, maxAge time.Duration) (*model.CacheEntry, error)
	// GetRange returns one slice per page in [start, end]. Pages without a
	// fresh entry map to an empty slice rather than being omitted.
	GetRange(ctx context.Context, query string, start, end int, maxAge time.Duration) (map[int][]model.Photo, error)
	Put(ctx context.Context, entry model.CacheEntry) error
	// PutBatch writes all entries in a single transaction.
	PutBatch(ctx context.Context, entries []model.CacheEntry) error
	// Sweep deletes entries older than maxAge and returns how many were removed.
	Sweep(ctx context.Context, maxAge time.Duration) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// cacheRow mirrors one photo_cache row. Photos are stored as a JSON array.
type cacheRow struct {
	Provider  string `db:"provider"`
	Query     string `db:"query"`
	Page      int    `db:"page"`
	Photos    string `db:"photos"`
	CreatedAt int64  `db:"created_at"`
}

type sqlitePhotoCacheRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPhotoCacheRepository creates a new SQLite-backed PhotoCacheRepository.
func NewPhotoCacheRepository(db *sqlx.DB) PhotoCacheRepository {
	return &sqlitePhotoCacheRepository{db: db, now: time.Now}
}

// cutoff converts a max age into the oldest acceptable created_at.
func (r *sqlitePhotoCacheRepository) cutoff(maxAge time.Duration) int64 {
	return r.now().Add(-maxAge).UnixMilli()
}

func (r *sqlitePhotoCacheRepository) Get(ctx context.Context, provider, query string, page int, maxAge time.Duration) (*model.CacheEntry, error) {
	var row cacheRow
	err := r.db.GetContext(ctx, &row, `
		SELECT provider, query, page, photos, created_at FROM photo_cache
		WHERE provider = ? AND query = ? AND page = ? AND created_at > ?
	`, provider, model.NormalizeQuery(query), page, r.cutoff(maxAge))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("getting cache entry %s/%q/%d: %w", provider, query, page, err)
	}
	return row.toEntry()
}

func (r *sqlitePhotoCacheRepository) GetCrossProvider(ctx context.Context, query string, page int, maxAge time.Duration) (*model.CacheEntry, error) {
	var row cacheRow
	err := r.db.GetContext(ctx, &row, `
		SELECT provider, query, page, photos, created_at FROM photo_cache
		WHERE query = ? AND page = ? AND created_at > ? AND provider != ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, model.NormalizeQuery(query), page, r.cutoff(maxAge), model.AggregatedProvider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("getting cross-provider entry %q/%d: %w", query, page, err)
	}
	return row.toEntry()
}

func (r *sqlitePhotoCacheRepository) GetRange(ctx context.Context, query string, start, end int, maxAge time.Duration) (map[int][]model.Photo, error) {
	out := make(map[int][]model.Photo)
	if end < start {
		return out, nil
	}
	for p := start; p <= end; p++ {
		out[p] = []model.Photo{}
	}

	// Newest first, so the first row seen per page wins.
	var rows []cacheRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT provider, query, page, photos, created_at FROM photo_cache
		WHERE query = ? AND page BETWEEN ? AND ? AND created_at > ? AND provider != ?
		ORDER BY created_at DESC, id DESC
	`, model.NormalizeQuery(query), start, end, r.cutoff(maxAge), model.AggregatedProvider)
	if err != nil {
		return nil, fmt.Errorf("getting cache range %q/%d-%d: %w", query, start, end, err)
	}

	filled := make(map[int]bool)
	for _, row := range rows {
		if filled[row.Page] {
			continue
		}
		photos, err := decodePhotos(row.Photos)
		if err != nil {
			return nil, err
		}
		out[row.Page] = photos
		filled[row.Page] = true
	}
	return out, nil
}

const upsertCacheEntry = `
	INSERT INTO photo_cache (provider, query, page, photos, created_at)
	VALUES (:provider, :query, :page, :photos, :created_at)
	ON CONFLICT (provider, query, page) DO UPDATE SET
		photos = excluded.photos,
		created_at = excluded.created_at
`

func (r *sqlitePhotoCacheRepository) Put(ctx context.Context, entry model.CacheEntry) error {
	row, err := r.toRow(entry)
	if err != nil {
		return err
	}
	if _, err := r.db.NamedExecContext(ctx, upsertCacheEntry, row); err != nil {
		return fmt.Errorf("putting cache entry %s/%q/%d: %w", entry.Provider, entry.Query, entry.Page, err)
	}
	return nil
}

func (r *sqlitePhotoCacheRepository) PutBatch(ctx context.Context, entries []model.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer tx.Rollback()

	for _, entry := range entries {
		row, err := r.toRow(entry)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, upsertCacheEntry, row); err != nil {
			return fmt.Errorf("batch putting %s/%q/%d: %w", entry.Provider, entry.Query, entry.Page, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

func (r *sqlitePhotoCacheRepository) Sweep(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM photo_cache WHERE created_at <= ?", r.cutoff(maxAge))
	if err != nil {
		return 0, fmt.Errorf("sweeping cache: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqlitePhotoCacheRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM photo_cache")
	return count, err
}

func (r *sqlitePhotoCacheRepository) toRow(entry model.CacheEntry) (cacheRow, error) {
	photos := entry.Photos
	if photos == nil {
		photos = []model.Photo{}
	}
	encoded, err := json.Marshal(photos)
	if err != nil {
		return cacheRow{}, fmt.Errorf("encoding photos: %w", err)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	return cacheRow{
		Provider:  entry.Provider,
		Query:     model.NormalizeQuery(entry.Query),
		Page:      entry.Page,
		Photos:    string(encoded),
		CreatedAt: created.UnixMilli(),
	}, nil
}

func (row cacheRow) toEntry() (*model.CacheEntry, error) {
	photos, err := decodePhotos(row.Photos)
	if err != nil {
		return nil, err
	}
	return &model.CacheEntry{
		Provider:  row.Provider,
		Query:     row.Query,
		Page:      row.Page,
		Photos:    photos,
		CreatedAt: time.UnixMilli(row.CreatedAt),
	}, nil
}

func decodePhotos(raw string) ([]model.Photo, error) {
	var photos []model.Photo
	if err := json.Unmarshal([]byte(raw), &photos); err != nil {
		return nil, fmt.Errorf("decoding cached photos: %w", err)
	}
	return photos, nil
}
