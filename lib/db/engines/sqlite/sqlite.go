package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	_ "github.com/mattn/go-sqlite3"
)

// Schema version tracking:
// 1 - single kv table
const currentSchemaVersion = 1

const dbFile = "kv.sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
) WITHOUT ROWID;
`

var log = logger.GetLogger("db")

func init() {
	db.Register(db.ImplSQLite, func(location string) (db.KVDB, error) {
		return NewSQLiteDB(location)
	})
}

type sqliteImpl struct {
	db       *sql.DB
	location string
	path     string
	putStmt  *sql.Stmt
	getStmt  *sql.Stmt
}

// NewSQLiteDB opens (or creates) the database file kv.sqlite in the directory location.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - FULL synchronous mode, a committed Put survives power loss
//   - 5-second busy timeout for lock contention
func NewSQLiteDB(location string) (db.KVDB, error) {
	if location == "" {
		return nil, errors.New("sqlite: location must not be empty")
	}
	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, errors.Wrapf(err, "sqlite: create directory %s", location)
	}
	path := filepath.Join(location, dbFile)

	// Open database (creates file if doesn't exist)
	sdb, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: open database")
	}

	// Verify connection works
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, errors.Wrapf(err, "sqlite: connect to %s", path)
	}

	// SQLite only supports one writer at a time
	sdb.SetMaxOpenConns(1)
	sdb.SetMaxIdleConns(1)

	if err := applyPragmas(sdb); err != nil {
		sdb.Close()
		return nil, err
	}
	if err := applySchema(sdb); err != nil {
		sdb.Close()
		return nil, err
	}

	impl := &sqliteImpl{db: sdb, location: location, path: path}

	if impl.putStmt, err = sdb.Prepare("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)"); err != nil {
		sdb.Close()
		return nil, errors.Wrap(err, "sqlite: prepare put")
	}
	if impl.getStmt, err = sdb.Prepare("SELECT value FROM kv WHERE key = ?"); err != nil {
		impl.putStmt.Close()
		sdb.Close()
		return nil, errors.Wrap(err, "sqlite: prepare get")
	}

	return impl, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(sdb *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := sdb.Exec(pragma); err != nil {
			return errors.Wrapf(err, "sqlite: execute %q", pragma)
		}
	}
	return nil
}

// applySchema creates the kv table and refuses files written by a newer schema.
func applySchema(sdb *sql.DB) error {
	var version int
	if err := sdb.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return errors.Wrap(err, "sqlite: get user_version")
	}
	if version > currentSchemaVersion {
		return errors.Newf("sqlite: incompatible schema version %d (supported up to %d)", version, currentSchemaVersion)
	}

	if _, err := sdb.Exec(schema); err != nil {
		return errors.Wrap(err, "sqlite: execute schema")
	}
	if _, err := sdb.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return errors.Wrap(err, "sqlite: set user_version")
	}
	return nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation
// --------------------------------------------------------------------------

// nonNil makes sure a nil slice is bound as an empty blob, not as NULL
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func (s *sqliteImpl) Put(key, value []byte) error {
	if _, err := s.putStmt.Exec(nonNil(key), nonNil(value)); err != nil {
		return errors.Wrap(err, "sqlite: put")
	}
	return nil
}

func (s *sqliteImpl) Get(key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.getStmt.QueryRow(nonNil(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "sqlite: get")
	}
	// Scan into *[]byte already copies
	return value, true, nil
}

// Flush moves the WAL content into the main database file.
func (s *sqliteImpl) Flush() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errors.Wrap(err, "sqlite: checkpoint")
	}
	return nil
}

func (s *sqliteImpl) Close() error {
	if err := s.Flush(); err != nil {
		log.Warningf("sqlite: final checkpoint of %s failed: %v", s.path, err)
	}
	s.putStmt.Close()
	s.getStmt.Close()
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "sqlite: close")
	}
	return nil
}

const supportedFeatures = db.FeaturePut | db.FeatureGet | db.FeatureFlush | db.FeaturePersistent

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var pageCount, pageSize, entries int
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		log.Warningf("sqlite: page_count: %v", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		log.Warningf("sqlite: page_size: %v", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM kv").Scan(&entries); err != nil {
		log.Warningf("sqlite: count: %v", err)
	}

	meta := &struct {
		Path          string `json:"path"`
		Entries       int    `json:"entries"`
		PageCount     int    `json:"page_count"`
		SchemaVersion int    `json:"schema_version"`
	}{
		Path:          s.path,
		Entries:       entries,
		PageCount:     pageCount,
		SchemaVersion: currentSchemaVersion,
	}

	return db.DatabaseInfo{
		SizeBytes:         pageCount * pageSize,
		DbType:            db.ImplSQLite,
		Location:          s.location,
		SupportedFeatures: supportedFeatures.Features(),
		Metadata:          meta,
	}
}
