package bundle

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS bundles (
	bundle_id     TEXT PRIMARY KEY,
	parent_id     TEXT,
	source        TEXT,
	manifest_json TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES bundles(bundle_id)
);

CREATE TABLE IF NOT EXISTS artifacts (
	bundle_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	sha256        TEXT NOT NULL,
	payload       BLOB NOT NULL,
	PRIMARY KEY (bundle_id, name),
	FOREIGN KEY (bundle_id) REFERENCES bundles(bundle_id)
);

CREATE TABLE IF NOT EXISTS active_bundle (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	bundle_id     TEXT NOT NULL,
	FOREIGN KEY (bundle_id) REFERENCES bundles(bundle_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	bundle_id     TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	details_json  TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages versioned artifact bundles in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region import
// Import stores b as a new bundle, parented on the current active bundle, and
// makes it active. Checksums are computed for every artifact.
func (s *Store) Import(b Bundle) (Bundle, error) {
	if len(b.Artifacts) == 0 {
		return Bundle{}, fmt.Errorf("%w: bundle is empty", ErrMissingArtifact)
	}

	b.ID = uuid.New().String()
	b.CreatedAt = time.Now().UTC()
	b.ParentID = ""
	if active, err := s.activeID(); err == nil {
		b.ParentID = active
	} else if !errors.Is(err, ErrNoActive) {
		return Bundle{}, err
	}

	refs := make(map[string]ArtifactRef, len(b.Artifacts))
	for name, payload := range b.Artifacts {
		ref := b.Manifest.Artifacts[name]
		ref.SHA256 = Checksum(payload)
		if ref.File == "" {
			ref.File = name + ".json"
		}
		refs[name] = ref
	}
	b.Manifest.Artifacts = refs

	manifestJSON, err := json.Marshal(b.Manifest)
	if err != nil {
		return Bundle{}, fmt.Errorf("marshal manifest: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Bundle{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO bundles (bundle_id, parent_id, source, manifest_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, nullIfEmpty(b.ParentID), nullIfEmpty(b.Source), string(manifestJSON),
		b.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Bundle{}, fmt.Errorf("insert bundle: %w", err)
	}

	for name, payload := range b.Artifacts {
		_, err = tx.Exec(
			`INSERT INTO artifacts (bundle_id, name, sha256, payload) VALUES (?, ?, ?, ?)`,
			b.ID, name, refs[name].SHA256, payload,
		)
		if err != nil {
			return Bundle{}, fmt.Errorf("insert artifact %s: %w", name, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_bundle (id, bundle_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET bundle_id = excluded.bundle_id`,
		b.ID,
	)
	if err != nil {
		return Bundle{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Bundle{}, fmt.Errorf("commit: %w", err)
	}
	return b, nil
}

// #endregion import

// #region get-active
// GetActive reads the active bundle with its payloads.
func (s *Store) GetActive() (Bundle, error) {
	id, err := s.activeID()
	if err != nil {
		return Bundle{}, err
	}
	return s.Get(id)
}

func (s *Store) activeID() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT bundle_id FROM active_bundle WHERE id = 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoActive
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return id, nil
}

// #endregion get-active

// #region get
// Get retrieves a bundle by ID, including artifact payloads.
func (s *Store) Get(id string) (Bundle, error) {
	var b Bundle
	var parentID, source sql.NullString
	var manifestJSON, createdStr string

	err := s.db.QueryRow(
		`SELECT bundle_id, parent_id, source, manifest_json, created_at
		 FROM bundles WHERE bundle_id = ?`, id,
	).Scan(&b.ID, &parentID, &source, &manifestJSON, &createdStr)
	if err != nil {
		return Bundle{}, fmt.Errorf("get bundle %s: %w", id, err)
	}
	b.ParentID = parentID.String
	b.Source = source.String
	if err := json.Unmarshal([]byte(manifestJSON), &b.Manifest); err != nil {
		return Bundle{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	rows, err := s.db.Query(`SELECT name, payload FROM artifacts WHERE bundle_id = ?`, id)
	if err != nil {
		return Bundle{}, fmt.Errorf("get artifacts: %w", err)
	}
	defer rows.Close()

	b.Artifacts = make(map[string][]byte)
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return Bundle{}, fmt.Errorf("scan artifact: %w", err)
		}
		b.Artifacts[name] = payload
	}
	return b, rows.Err()
}

// #endregion get

// #region activate
// Activate points the active pointer at an existing bundle (rollback or
// roll-forward).
func (s *Store) Activate(id string) error {
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bundles WHERE bundle_id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check bundle: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("bundle %s not found", id)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_bundle (id, bundle_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET bundle_id = excluded.bundle_id`,
		id,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}

// #endregion activate

// #region list
// List returns the most recent bundles, newest first.
func (s *Store) List(limit int) ([]Summary, error) {
	active, err := s.activeID()
	if err != nil && !errors.Is(err, ErrNoActive) {
		return nil, err
	}

	rows, err := s.db.Query(
		`SELECT b.bundle_id, b.parent_id, b.source, b.created_at, GROUP_CONCAT(a.name)
		 FROM bundles b LEFT JOIN artifacts a ON a.bundle_id = b.bundle_id
		 GROUP BY b.bundle_id
		 ORDER BY b.created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var parentID, source, names sql.NullString
		var createdStr string
		if err := rows.Scan(&sum.ID, &parentID, &source, &createdStr, &names); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.ParentID = parentID.String
		sum.Source = source.String
		sum.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		sum.Active = sum.ID == active
		if names.Valid && names.String != "" {
			sum.Artifacts = strings.Split(names.String, ",")
			sort.Strings(sum.Artifacts)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
