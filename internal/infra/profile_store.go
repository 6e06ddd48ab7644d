package infra

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure sqlcipher driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/shield/internal/domain"
)

const (
	profileDBName = "profiles.db"
	metaActiveKey = "active_profile"
)

// EncryptedProfileStore implements domain.ProfileStore on a SQLCipher database.
// Only user profiles are stored; system profiles are compiled in.
type EncryptedProfileStore struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedProfileStore opens (or creates) the profile database at dbPath.
// The key is used as the raw SQLCipher key via PRAGMA key.
func NewEncryptedProfileStore(dbPath string, key []byte) (*EncryptedProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}

	// A wrong key only shows up on first read.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	store := &EncryptedProfileStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *EncryptedProfileStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		settings TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// List returns user profiles in creation order.
func (s *EncryptedProfileStore) List() ([]domain.HardeningProfile, error) {
	rows, err := s.db.Query(`SELECT id, name, settings FROM profiles ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []domain.HardeningProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// Get returns a single user profile.
func (s *EncryptedProfileStore) Get(id string) (*domain.HardeningProfile, error) {
	row := s.db.QueryRow(`SELECT id, name, settings FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProfileNotFound
	}
	return p, err
}

// Save inserts or replaces a user profile.
func (s *EncryptedProfileStore) Save(profile domain.HardeningProfile) error {
	if profile.IsSystem {
		return domain.ErrSystemProfile
	}
	settings, err := jsonCodec.Marshal(profile.Settings)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO profiles (id, name, settings, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, settings = excluded.settings`,
		profile.ID, profile.Name, string(settings), time.Now().UnixNano(),
	)
	return err
}

// Delete removes a user profile and clears it as active if it was.
func (s *EncryptedProfileStore) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrProfileNotFound
	}
	_, err = s.db.Exec(`DELETE FROM meta WHERE key = ? AND value = ?`, metaActiveKey, id)
	return err
}

// SetActive records the active profile id.
func (s *EncryptedProfileStore) SetActive(id string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, metaActiveKey, id)
	return err
}

// Active returns the recorded active profile id.
func (s *EncryptedProfileStore) Active() (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, metaActiveKey).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// Path returns the database file path.
func (s *EncryptedProfileStore) Path() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *EncryptedProfileStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*domain.HardeningProfile, error) {
	var p domain.HardeningProfile
	var settings string
	if err := row.Scan(&p.ID, &p.Name, &settings); err != nil {
		return nil, err
	}
	if err := jsonCodec.UnmarshalFromString(settings, &p.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of profile %s: %w", p.ID, err)
	}
	if p.Settings == nil {
		p.Settings = make(map[string]bool)
	}
	return &p, nil
}

var _ domain.ProfileStore = (*EncryptedProfileStore)(nil)
