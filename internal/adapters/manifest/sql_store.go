package manifest

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	sqlite "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/kikiverse/kiki-deploy/internal/domain/models"
	"github.com/kikiverse/kiki-deploy/internal/usecase"
)

const sqliteDriver = "sqlite3"

// DefaultLockLease is how long a lock row protects its holder. Manifest writes take
// milliseconds, so an older row was left by a process that died before unlocking.
const DefaultLockLease = time.Minute

//go:embed migrations/*
var dbMigrations embed.FS

// SQLStore keeps manifests in a sqlite database, one row per chain id. Every write bumps
// the row version. Locks are rows in manifest_locks, so processes sharing the database
// exclude each other. A row older than the lease is taken over.
type SQLStore struct {
	db     *sql.DB
	log    *slog.Logger
	holder string
	lease  time.Duration

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

var _ usecase.ManifestStore = (*SQLStore)(nil)

// NewSQLStore opens the database at dsn and applies pending migrations
func NewSQLStore(dsn string, log *slog.Logger) (*SQLStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if dsn == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		pragma journal_mode = WAL;
		pragma busy_timeout = 5000;
		pragma synchronous = normal;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}

	log = log.With("component", "manifest")
	if err := runMigrations(db, migrate.Up, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate manifest database: %w", err)
	}

	host, _ := os.Hostname()
	return &SQLStore{
		db:     db,
		log:    log,
		holder: fmt.Sprintf("%s:%d:%d", host, os.Getpid(), time.Now().UnixNano()),
		lease:  DefaultLockLease,
		locks:  make(map[uint64]*sync.Mutex),
	}, nil
}

func runMigrations(db *sql.DB, direction migrate.MigrationDirection, log *slog.Logger) error {
	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: dbMigrations,
		Root:       "migrations",
	}
	n, err := migrate.Exec(db, sqliteDriver, migrations, direction)
	if err != nil {
		return err
	}
	log.Debug("ran manifest migrations", "count", n, "direction", direction)
	return nil
}

// Close closes the database
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Read returns the manifest of a chain, or an empty one when none was written yet
func (s *SQLStore) Read(ctx context.Context, chainID uint64) (*models.Manifest, error) {
	m, _, err := s.read(ctx, chainID)
	return m, err
}

// Revision returns how many times the manifest of a chain was written
func (s *SQLStore) Revision(ctx context.Context, chainID uint64) (int64, error) {
	_, version, err := s.read(ctx, chainID)
	return version, err
}

func (s *SQLStore) read(ctx context.Context, chainID uint64) (*models.Manifest, int64, error) {
	var body string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version FROM manifests WHERE chain_id = $1`, chainID,
	).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewManifest(), 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m models.Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, 0, fmt.Errorf("failed to parse manifest of chain %d: %w", chainID, err)
	}
	return m.Normalize(), version, nil
}

// Write upserts the manifest of a chain
func (s *SQLStore) Write(ctx context.Context, chainID uint64, manifest *models.Manifest) error {
	body, err := json.Marshal(manifest.Normalize())
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO manifests (chain_id, version, body, updated_at) VALUES ($1, 1, $2, $3)
		ON CONFLICT (chain_id) DO UPDATE SET
			version = manifests.version + 1,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		chainID, string(body), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Lock takes the in-process lock of the chain, then claims its row in manifest_locks,
// retrying while another process holds it
func (s *SQLStore) Lock(ctx context.Context, chainID uint64) (func() error, error) {
	mu := s.chainMutex(chainID)
	mu.Lock()

	for {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO manifest_locks (chain_id, holder, acquired_at) VALUES ($1, $2, $3)`,
			chainID, s.holder, time.Now().UTC(),
		)
		if err == nil {
			break
		}
		if !isConstraintErr(err) {
			mu.Unlock()
			return nil, fmt.Errorf("failed to lock manifest for chain %d: %w", chainID, err)
		}
		freed, err := s.releaseStale(ctx, chainID)
		if err != nil {
			mu.Unlock()
			return nil, fmt.Errorf("failed to lock manifest for chain %d: %w", chainID, err)
		}
		if freed {
			continue
		}
		select {
		case <-ctx.Done():
			mu.Unlock()
			return nil, fmt.Errorf("failed to lock manifest for chain %d: %w", chainID, ctx.Err())
		case <-time.After(lockRetryDelay):
		}
	}

	var once sync.Once
	return func() error {
		var unlockErr error
		once.Do(func() {
			_, unlockErr = s.db.Exec(
				`DELETE FROM manifest_locks WHERE chain_id = $1 AND holder = $2`, chainID, s.holder,
			)
			mu.Unlock()
		})
		return unlockErr
	}, nil
}

// releaseStale deletes the chain's lock row when it outlived the lease. It reports
// whether the row is gone, so the caller can claim it right away.
func (s *SQLStore) releaseStale(ctx context.Context, chainID uint64) (bool, error) {
	var (
		holder   string
		acquired time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT holder, acquired_at FROM manifest_locks WHERE chain_id = $1`, chainID,
	).Scan(&holder, &acquired)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if time.Since(acquired) < s.lease {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM manifest_locks WHERE chain_id = $1 AND holder = $2`, chainID, holder,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.log.Warn("took over stale manifest lock", "chain", chainID, "holder", holder, "acquired", acquired)
	}
	return true, nil
}

func (s *SQLStore) chainMutex(chainID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[chainID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[chainID] = mu
	}
	return mu
}

func isConstraintErr(err error) bool {
	var sqlErr sqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code == sqlite.ErrConstraint
	}
	return false
}
