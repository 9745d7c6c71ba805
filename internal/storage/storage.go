// Package storage implements the durable K/V layer behind the IME core:
// dictionary metadata, user word frequency, config, and download-task rows
// over a single SQLite file opened in WAL mode.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/imecore/internal/logger"
)

// Error kinds surfaced by Store, per the core's error taxonomy.
var (
	ErrIo         = errors.New("storage: io error")
	ErrCorrupt    = errors.New("storage: corrupt database")
	ErrBusy       = errors.New("storage: busy")
	ErrConstraint = errors.New("storage: constraint violation")
	ErrNotFound   = errors.New("storage: not found")
)

// DictType enumerates the kind of a registered dictionary.
type DictType string

const (
	DictBase     DictType = "base"
	DictExtended DictType = "extended"
	DictIndustry DictType = "industry"
	DictUser     DictType = "user"
)

// DownloadStatus enumerates the lifecycle of a DownloadTask row.
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadPaused      DownloadStatus = "paused"
	DownloadCompleted   DownloadStatus = "completed"
	DownloadFailed      DownloadStatus = "failed"
)

// DictMeta is the persisted row for dictionary_meta.
type DictMeta struct {
	ID           string
	Name         string
	Type         DictType
	LocalVersion string
	CloudVersion string
	WordCount    int
	SourcePath   string
	Priority     int32
	Enabled      bool
}

// UserFreqRow is the persisted row for user_word_frequency.
type UserFreqRow struct {
	ID        int64
	Word      string
	Pinyin    string
	Frequency int32
	LastUsed  int64
	Created   int64
}

// DownloadTask is the persisted row for download_task.
type DownloadTask struct {
	DictID         string
	Version        string
	URL            string
	TotalSize      int64
	DownloadedSize int64
	TempPath       string
	Status         DownloadStatus
	Error          string
}

// Store is the single-writer, multi-reader SQLite store backing the core.
type Store struct {
	db  *sql.DB
	log *log.Logger
}

// Open creates (if absent) and opens the SQLite database at path, seeding
// the schema and default config keys in one transaction.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIo, err)
	}
	db.SetMaxOpenConns(8)

	s := &Store{db: db, log: logger.Default("storage")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS dictionary_meta (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			local_version TEXT NOT NULL DEFAULT '',
			cloud_version TEXT NOT NULL DEFAULT '',
			word_count INTEGER NOT NULL DEFAULT 0,
			source_path TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			enabled INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS user_word_frequency (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			word TEXT NOT NULL,
			pinyin TEXT NOT NULL,
			frequency INTEGER NOT NULL DEFAULT 0,
			last_used INTEGER NOT NULL DEFAULT 0,
			created INTEGER NOT NULL DEFAULT 0,
			UNIQUE(word, pinyin)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_uwf_pinyin ON user_word_frequency(pinyin)`,
		`CREATE TABLE IF NOT EXISTS config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS download_task (
			dict_id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			url TEXT NOT NULL,
			total_size INTEGER NOT NULL DEFAULT 0,
			downloaded_size INTEGER NOT NULL DEFAULT 0,
			temp_path TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return classify(err)
		}
	}

	for k, v := range defaultConfig {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO config(key, value) VALUES (?, ?)`, k, v); err != nil {
			return classify(err)
		}
	}

	return classify(tx.Commit())
}

var defaultConfig = map[string]string{
	"input.default_mode":           "chinese",
	"input.page_size":              "9",
	"input.fullwidth_punct":        "false",
	"frequency.user_weight":        "0.6",
	"frequency.base_weight":        "0.3",
	"frequency.recency_weight":     "0.1",
	"frequency.recency_decay_days": "30",
	"frequency.max_user_frequency": "100000",
	"learning.enabled":             "true",
	"learning.min_occurrences":     "2",
	"learning.max_interval":        "3000",
	"cloud.enabled":                "true",
	"cloud.check_interval":         "86400",
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint"):
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy"):
		return fmt.Errorf("%w: %v", ErrBusy, err)
	case strings.Contains(msg, "malformed") || strings.Contains(msg, "corrupt"):
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	default:
		return fmt.Errorf("%w: %v", ErrIo, err)
	}
}

func nowSeconds() int64 { return time.Now().Unix() }

// ---------------------------------------------------------------------
// Dictionary metadata
// ---------------------------------------------------------------------

// SaveDictMeta upserts a dictionary's metadata by id.
func (s *Store) SaveDictMeta(m DictMeta) error {
	_, err := s.db.Exec(`
		INSERT INTO dictionary_meta(id, name, type, local_version, cloud_version, word_count, source_path, priority, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, type=excluded.type,
			local_version=excluded.local_version, cloud_version=excluded.cloud_version,
			word_count=excluded.word_count, source_path=excluded.source_path,
			priority=excluded.priority, enabled=excluded.enabled`,
		m.ID, m.Name, m.Type, m.LocalVersion, m.CloudVersion, m.WordCount, m.SourcePath, m.Priority, boolToInt(m.Enabled))
	if err != nil {
		s.log.Errorf("save dict meta %s: %v", m.ID, err)
	}
	return classify(err)
}

// GetDictMeta reads one dictionary's metadata, or ErrNotFound.
func (s *Store) GetDictMeta(id string) (DictMeta, error) {
	row := s.db.QueryRow(`SELECT id, name, type, local_version, cloud_version, word_count, source_path, priority, enabled FROM dictionary_meta WHERE id = ?`, id)
	return scanDictMeta(row)
}

func scanDictMeta(row *sql.Row) (DictMeta, error) {
	var m DictMeta
	var enabled int
	err := row.Scan(&m.ID, &m.Name, &m.Type, &m.LocalVersion, &m.CloudVersion, &m.WordCount, &m.SourcePath, &m.Priority, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return DictMeta{}, ErrNotFound
	}
	if err != nil {
		return DictMeta{}, classify(err)
	}
	m.Enabled = enabled != 0
	return m, nil
}

// ListAllDicts returns every registered dictionary, priority desc, id asc.
func (s *Store) ListAllDicts() ([]DictMeta, error) {
	return s.queryDicts(`SELECT id, name, type, local_version, cloud_version, word_count, source_path, priority, enabled FROM dictionary_meta ORDER BY priority DESC, id ASC`)
}

// ListEnabledDicts returns only enabled dictionaries, same ordering.
func (s *Store) ListEnabledDicts() ([]DictMeta, error) {
	return s.queryDicts(`SELECT id, name, type, local_version, cloud_version, word_count, source_path, priority, enabled FROM dictionary_meta WHERE enabled = 1 ORDER BY priority DESC, id ASC`)
}

func (s *Store) queryDicts(query string, args ...any) ([]DictMeta, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []DictMeta
	for rows.Next() {
		var m DictMeta
		var enabled int
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.LocalVersion, &m.CloudVersion, &m.WordCount, &m.SourcePath, &m.Priority, &enabled); err != nil {
			return nil, classify(err)
		}
		m.Enabled = enabled != 0
		out = append(out, m)
	}
	return out, classify(rows.Err())
}

// SetEnabled flips a dictionary's enabled flag.
func (s *Store) SetEnabled(id string, enabled bool) error {
	_, err := s.db.Exec(`UPDATE dictionary_meta SET enabled = ? WHERE id = ?`, boolToInt(enabled), id)
	return classify(err)
}

// SetPriority updates a dictionary's priority.
func (s *Store) SetPriority(id string, priority int32) error {
	_, err := s.db.Exec(`UPDATE dictionary_meta SET priority = ? WHERE id = ?`, priority, id)
	return classify(err)
}

// UpdateVersion updates a dictionary's local and (optionally) cloud version.
func (s *Store) UpdateVersion(id, local string, cloud *string) error {
	if cloud != nil {
		_, err := s.db.Exec(`UPDATE dictionary_meta SET local_version = ?, cloud_version = ? WHERE id = ?`, local, *cloud, id)
		return classify(err)
	}
	_, err := s.db.Exec(`UPDATE dictionary_meta SET local_version = ? WHERE id = ?`, local, id)
	return classify(err)
}

// DeleteDictMeta removes a dictionary's metadata entirely.
func (s *Store) DeleteDictMeta(id string) error {
	_, err := s.db.Exec(`DELETE FROM dictionary_meta WHERE id = ?`, id)
	return classify(err)
}

// ---------------------------------------------------------------------
// User word frequency
// ---------------------------------------------------------------------

// Increment creates the (word,pinyin) row with frequency=1 if absent, else
// bumps the existing frequency by one and refreshes last_used. Returns the
// resulting frequency.
func (s *Store) Increment(word, pinyin string) (int32, error) {
	now := nowSeconds()
	tx, err := s.db.Begin()
	if err != nil {
		return 0, classify(err)
	}
	defer tx.Rollback()

	var freq int32
	row := tx.QueryRow(`SELECT frequency FROM user_word_frequency WHERE word = ? AND pinyin = ?`, word, pinyin)
	err = row.Scan(&freq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		freq = 1
		if _, err := tx.Exec(`INSERT INTO user_word_frequency(word, pinyin, frequency, last_used, created) VALUES (?, ?, 1, ?, ?)`, word, pinyin, now, now); err != nil {
			return 0, classify(err)
		}
	case err != nil:
		return 0, classify(err)
	default:
		freq++
		if _, err := tx.Exec(`UPDATE user_word_frequency SET frequency = ?, last_used = ? WHERE word = ? AND pinyin = ?`, freq, now, word, pinyin); err != nil {
			return 0, classify(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}
	return freq, nil
}

// GetFreq returns the user frequency for (word, pinyin), or 0 if absent.
func (s *Store) GetFreq(word, pinyin string) (int32, error) {
	var freq int32
	row := s.db.QueryRow(`SELECT frequency FROM user_word_frequency WHERE word = ? AND pinyin = ?`, word, pinyin)
	err := row.Scan(&freq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return freq, nil
}

// TopByPinyin returns rows matching pinyin, ordered by frequency desc, up to limit.
func (s *Store) TopByPinyin(pinyin string, limit int) ([]UserFreqRow, error) {
	rows, err := s.db.Query(`SELECT id, word, pinyin, frequency, last_used, created FROM user_word_frequency WHERE pinyin = ? ORDER BY frequency DESC LIMIT ?`, pinyin, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []UserFreqRow
	for rows.Next() {
		var r UserFreqRow
		if err := rows.Scan(&r.ID, &r.Word, &r.Pinyin, &r.Frequency, &r.LastUsed, &r.Created); err != nil {
			return nil, classify(err)
		}
		out = append(out, r)
	}
	return out, classify(rows.Err())
}

// SetFreq upserts an exact frequency value for (word, pinyin). Unlike
// Increment, this never loops — it writes the value directly in one
// statement, avoiding the N-times-increment bug called out in the spec.
func (s *Store) SetFreq(word, pinyin string, n int32) error {
	now := nowSeconds()
	_, err := s.db.Exec(`
		INSERT INTO user_word_frequency(word, pinyin, frequency, last_used, created)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(word, pinyin) DO UPDATE SET frequency = excluded.frequency, last_used = excluded.last_used`,
		word, pinyin, n, now, now)
	return classify(err)
}

// DeleteFreq removes a single (word, pinyin) row.
func (s *Store) DeleteFreq(word, pinyin string) error {
	_, err := s.db.Exec(`DELETE FROM user_word_frequency WHERE word = ? AND pinyin = ?`, word, pinyin)
	return classify(err)
}

// ClearAllFreq removes every user frequency row.
func (s *Store) ClearAllFreq() error {
	_, err := s.db.Exec(`DELETE FROM user_word_frequency`)
	return classify(err)
}

// AllFreq returns every user frequency row (export).
func (s *Store) AllFreq() ([]UserFreqRow, error) {
	rows, err := s.db.Query(`SELECT id, word, pinyin, frequency, last_used, created FROM user_word_frequency`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []UserFreqRow
	for rows.Next() {
		var r UserFreqRow
		if err := rows.Scan(&r.ID, &r.Word, &r.Pinyin, &r.Frequency, &r.LastUsed, &r.Created); err != nil {
			return nil, classify(err)
		}
		out = append(out, r)
	}
	return out, classify(rows.Err())
}

// CleanupBelow removes rows with frequency < min.
func (s *Store) CleanupBelow(min int32) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM user_word_frequency WHERE frequency < ?`, min)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanupUnused removes rows whose last_used precedes now - olderThanSecs.
func (s *Store) CleanupUnused(olderThanSecs int64) (int64, error) {
	cutoff := nowSeconds() - olderThanSecs
	res, err := s.db.Exec(`DELETE FROM user_word_frequency WHERE last_used < ?`, cutoff)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ---------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------

// Get returns a config value, or def if the key is absent.
func (s *Store) Get(key, def string) (string, error) {
	var v string
	row := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key)
	err := row.Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, classify(err)
	}
	return v, nil
}

// Set upserts a config value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return classify(err)
}

// Delete removes a config key.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM config WHERE key = ?`, key)
	return classify(err)
}

// ListAll returns every config key/value pair.
func (s *Store) ListAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM config`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, classify(err)
		}
		out[k] = v
	}
	return out, classify(rows.Err())
}

// ---------------------------------------------------------------------
// Download tasks
// ---------------------------------------------------------------------

// SaveTask upserts a download task row.
func (s *Store) SaveTask(t DownloadTask) error {
	_, err := s.db.Exec(`
		INSERT INTO download_task(dict_id, version, url, total_size, downloaded_size, temp_path, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dict_id) DO UPDATE SET
			version=excluded.version, url=excluded.url, total_size=excluded.total_size,
			downloaded_size=excluded.downloaded_size, temp_path=excluded.temp_path,
			status=excluded.status, error=excluded.error`,
		t.DictID, t.Version, t.URL, t.TotalSize, t.DownloadedSize, t.TempPath, t.Status, t.Error)
	return classify(err)
}

// GetTask reads one download task by dictionary id.
func (s *Store) GetTask(dictID string) (DownloadTask, error) {
	row := s.db.QueryRow(`SELECT dict_id, version, url, total_size, downloaded_size, temp_path, status, error FROM download_task WHERE dict_id = ?`, dictID)
	var t DownloadTask
	err := row.Scan(&t.DictID, &t.Version, &t.URL, &t.TotalSize, &t.DownloadedSize, &t.TempPath, &t.Status, &t.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return DownloadTask{}, ErrNotFound
	}
	if err != nil {
		return DownloadTask{}, classify(err)
	}
	return t, nil
}

// UpdateProgress updates a task's downloaded size and status.
func (s *Store) UpdateProgress(dictID string, downloaded int64, status DownloadStatus) error {
	_, err := s.db.Exec(`UPDATE download_task SET downloaded_size = ?, status = ? WHERE dict_id = ?`, downloaded, status, dictID)
	return classify(err)
}

// ListNonTerminal returns tasks not in a Completed/Failed state.
func (s *Store) ListNonTerminal() ([]DownloadTask, error) {
	rows, err := s.db.Query(`SELECT dict_id, version, url, total_size, downloaded_size, temp_path, status, error FROM download_task WHERE status NOT IN (?, ?)`, DownloadCompleted, DownloadFailed)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []DownloadTask
	for rows.Next() {
		var t DownloadTask
		if err := rows.Scan(&t.DictID, &t.Version, &t.URL, &t.TotalSize, &t.DownloadedSize, &t.TempPath, &t.Status, &t.Error); err != nil {
			return nil, classify(err)
		}
		out = append(out, t)
	}
	return out, classify(rows.Err())
}

// DeleteTask removes a download task row.
func (s *Store) DeleteTask(dictID string) error {
	_, err := s.db.Exec(`DELETE FROM download_task WHERE dict_id = ?`, dictID)
	return classify(err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
