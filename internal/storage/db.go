package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"smartquote/internal"
	"smartquote/internal/util"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// pragmas in the DSN apply to every pooled connection
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS catalog_entries (
  unit TEXT NOT NULL,
  id INTEGER NOT NULL,
  displayName TEXT NOT NULL,
  searchKey TEXT NOT NULL,
  category TEXT,
  price REAL NOT NULL DEFAULT 0,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(unit, id)
);
CREATE INDEX IF NOT EXISTS idx_catalog_searchKey ON catalog_entries(unit, searchKey);

CREATE TABLE IF NOT EXISTS learned_mappings (
  sourceKey TEXT PRIMARY KEY,
  canonicalName TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tuss_terms (
  code TEXT NOT NULL,
  procedure TEXT NOT NULL,
  PRIMARY KEY(code, procedure)
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS extractions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  source TEXT NOT NULL,
  rawLine TEXT NOT NULL,
  metaJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(emailId, lineNo, source, rawLine),
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS resolutions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  emailId INTEGER,
  position INTEGER NOT NULL,
  term TEXT NOT NULL,
  normalizedKey TEXT NOT NULL,
  status TEXT NOT NULL,
  strategy TEXT NOT NULL,
  confidence REAL NOT NULL,
  entryId INTEGER,
  matchesJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_resolutions_email ON resolutions(emailId);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL UNIQUE,
  emailId INTEGER,
  unit TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  coverageScore REAL NOT NULL DEFAULT 0,
  accuracyScore REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS missing_terms (
  term TEXT NOT NULL,
  unit TEXT NOT NULL,
  occurrences INTEGER NOT NULL DEFAULT 1,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(term, unit)
);

CREATE TABLE IF NOT EXISTS match_suggestions (
  term TEXT NOT NULL,
  matched TEXT NOT NULL,
  unit TEXT NOT NULL,
  strategy TEXT NOT NULL,
  occurrences INTEGER NOT NULL DEFAULT 1,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(term, matched, unit)
);

CREATE TABLE IF NOT EXISTS fca_log (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  term TEXT NOT NULL,
  unit TEXT NOT NULL,
  fact TEXT NOT NULL,
  cause TEXT NOT NULL,
  actionText TEXT NOT NULL,
  strategy TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceCatalog swaps the stored snapshot of one unit in a single transaction.
func (d *DB) ReplaceCatalog(unit string, entries []internal.CatalogEntry) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM catalog_entries WHERE unit = ?`, unit); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO catalog_entries (unit, id, displayName, searchKey, category, price, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(unit, id) DO UPDATE SET
  displayName=excluded.displayName,
  searchKey=excluded.searchKey,
  category=excluded.category,
  price=excluded.price,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		key := e.SearchKey
		if key == "" {
			key = util.Normalize(e.DisplayName)
		}
		if _, err := stmt.Exec(unit, e.ID, e.DisplayName, key, e.Category, e.Price); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListCatalogEntries(unit string) ([]internal.CatalogEntry, error) {
	rows, err := d.conn.Query(`
SELECT id, displayName, searchKey, COALESCE(category, ''), price, unit
FROM catalog_entries WHERE unit = ? ORDER BY id`, unit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogEntry
	for rows.Next() {
		var e internal.CatalogEntry
		if err := rows.Scan(&e.ID, &e.DisplayName, &e.SearchKey, &e.Category, &e.Price, &e.Unit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (d *DB) ListCatalogUnits() ([]string, error) {
	rows, err := d.conn.Query(`SELECT DISTINCT unit FROM catalog_entries ORDER BY unit`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func (d *DB) GetLearnedMapping(sourceKey string) (*string, error) {
	var canonical string
	err := d.conn.QueryRow(`SELECT canonicalName FROM learned_mappings WHERE sourceKey = ?`, sourceKey).Scan(&canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &canonical, nil
}

func (d *DB) UpsertLearnedMapping(sourceKey, canonicalName string) error {
	_, err := d.conn.Exec(`
INSERT INTO learned_mappings (sourceKey, canonicalName) VALUES (?, ?)
ON CONFLICT(sourceKey) DO UPDATE SET canonicalName = excluded.canonicalName, updatedAt = CURRENT_TIMESTAMP
`, sourceKey, canonicalName)
	return err
}

func (d *DB) ListLearnedMappings() ([]internal.LearnedMapping, error) {
	rows, err := d.conn.Query(`SELECT sourceKey, canonicalName, updatedAt FROM learned_mappings ORDER BY sourceKey`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.LearnedMapping
	for rows.Next() {
		var m internal.LearnedMapping
		if err := rows.Scan(&m.SourceKey, &m.CanonicalName, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) ReplaceTUSSTerms(terms []internal.TUSSTerm) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tuss_terms`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO tuss_terms (code, procedure) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range terms {
		if _, err := stmt.Exec(t.Code, t.Procedure); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListTUSSTerms() ([]internal.TUSSTerm, error) {
	rows, err := d.conn.Query(`SELECT code, procedure FROM tuss_terms ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.TUSSTerm
	for rows.Next() {
		var t internal.TUSSTerm
		if err := rows.Scan(&t.Code, &t.Procedure); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

const emailColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanEmail(s interface{ Scan(...any) error }) (internal.EmailRow, error) {
	var row internal.EmailRow
	err := s.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef)
	return row, err
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	row, err := scanEmail(d.conn.QueryRow(`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`SELECT `+emailColumns+` FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		row, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) ClearEmailProcessing(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM resolutions WHERE emailId = ?`, emailID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM extractions WHERE emailId = ?`, emailID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) InsertExtraction(emailID int, line internal.ExtractedLine) (int64, error) {
	metaJSON, _ := json.Marshal(line.Meta)
	result, err := d.conn.Exec(`
INSERT OR IGNORE INTO extractions (emailId, lineNo, source, rawLine, metaJson)
VALUES (?, ?, ?, ?, ?)
`, emailID, line.LineNo, string(line.Source), line.RawLine, string(metaJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// InsertResolutions stores the items of one batch; emailID is nil for
// batches that did not come from the mailbox.
func (d *DB) InsertResolutions(runID string, emailID *int, items []internal.ResolutionItem) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO resolutions (runId, emailId, position, term, normalizedKey, status, strategy, confidence, entryId, matchesJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, item := range items {
		matchesJSON, _ := json.Marshal(item.Matches)
		var entryID *int
		if len(item.Matches) > 0 {
			idx := 0
			if item.SelectedMatch != nil && *item.SelectedMatch < len(item.Matches) {
				idx = *item.SelectedMatch
			}
			entryID = util.IntPtr(item.Matches[idx].ID)
		}
		if _, err := stmt.Exec(runID, emailID, i+1, item.Term, item.NormalizedKey, string(item.Status), string(item.Strategy), item.Confidence, entryID, string(matchesJSON)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) InsertRun(rec internal.RunRecord) error {
	timingsJSON, _ := json.Marshal(rec.Timings)
	countsJSON, _ := json.Marshal(rec.Counts)
	var emailID *int
	if rec.EmailID > 0 {
		emailID = util.IntPtr(rec.EmailID)
	}
	_, err := d.conn.Exec(`
INSERT INTO runs (runId, emailId, unit, timingsJson, countsJson, coverageScore, accuracyScore)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.RunID, emailID, rec.Unit, string(timingsJSON), string(countsJSON), rec.CoverageScore, rec.AccuracyScore)
	return err
}

func (d *DB) LogMissingTerm(unit, term string) error {
	_, err := d.conn.Exec(`
INSERT INTO missing_terms (term, unit) VALUES (?, ?)
ON CONFLICT(term, unit) DO UPDATE SET occurrences = occurrences + 1, lastSeenAt = CURRENT_TIMESTAMP
`, strings.TrimSpace(term), unit)
	return err
}

func (d *DB) LogSuggestion(unit, term, matched string, strategy internal.Strategy) error {
	_, err := d.conn.Exec(`
INSERT INTO match_suggestions (term, matched, unit, strategy) VALUES (?, ?, ?, ?)
ON CONFLICT(term, matched, unit) DO UPDATE SET
  occurrences = occurrences + 1,
  strategy = excluded.strategy,
  lastSeenAt = CURRENT_TIMESTAMP
`, strings.TrimSpace(term), matched, unit, string(strategy))
	return err
}

func (d *DB) LogFCA(entry internal.FCAEntry) error {
	_, err := d.conn.Exec(`
INSERT INTO fca_log (term, unit, fact, cause, actionText, strategy) VALUES (?, ?, ?, ?, ?, ?)
`, entry.Term, entry.Unit, entry.Fact, entry.Cause, entry.Action, string(entry.Strategy))
	return err
}

func (d *DB) TopMissingTerms(limit int) ([]internal.MissingTerm, error) {
	rows, err := d.conn.Query(`
SELECT term, unit, occurrences, lastSeenAt FROM missing_terms
ORDER BY occurrences DESC, lastSeenAt DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MissingTerm
	for rows.Next() {
		var m internal.MissingTerm
		if err := rows.Scan(&m.Term, &m.Unit, &m.Occurrences, &m.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *DB) TopSuggestions(limit int) ([]internal.MatchSuggestion, error) {
	rows, err := d.conn.Query(`
SELECT term, matched, unit, strategy, occurrences FROM match_suggestions
ORDER BY occurrences DESC, lastSeenAt DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MatchSuggestion
	for rows.Next() {
		var s internal.MatchSuggestion
		var strategy string
		if err := rows.Scan(&s.Term, &s.Matched, &s.Unit, &strategy, &s.Occurrences); err != nil {
			return nil, err
		}
		s.Strategy = internal.Strategy(strategy)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (d *DB) CountFCA() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM fca_log`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func (d *DB) GetExportRows(emailID int) ([]internal.ExportRow, error) {
	rows, err := d.conn.Query(`
SELECT r.position, r.term, r.status, r.strategy, r.confidence, r.entryId, r.matchesJson
FROM resolutions r
WHERE r.emailId = ?
ORDER BY
  CASE r.status WHEN 'confirmed' THEN 1 WHEN 'multiple' THEN 2 WHEN 'needs_registration' THEN 3 WHEN 'not_found' THEN 4 ELSE 5 END,
  r.position ASC
`, emailID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExportRow
	for rows.Next() {
		var row internal.ExportRow
		var matchesJSON string
		if err := rows.Scan(&row.LineNo, &row.Term, &row.Status, &row.Strategy, &row.Confidence, &row.EntryID, &matchesJSON); err != nil {
			return nil, err
		}
		row.Source = "email"
		row.RawLine = row.Term

		var matches []internal.CatalogEntry
		_ = json.Unmarshal([]byte(matchesJSON), &matches)
		fillExportMatch(&row, matches)
		out = append(out, row)
	}

	return out, rows.Err()
}

func fillExportMatch(row *internal.ExportRow, matches []internal.CatalogEntry) {
	alternatives := make([]string, 0, len(matches))
	for _, m := range matches {
		if row.EntryID != nil && m.ID == *row.EntryID && row.EntryName == nil {
			row.EntryName = util.StringPtr(m.DisplayName)
			row.Category = util.StringPtr(m.Category)
			row.Price = util.FloatPtr(m.Price)
			continue
		}
		alternatives = append(alternatives, m.DisplayName)
	}
	if len(alternatives) > 5 {
		alternatives = alternatives[:5]
	}
	row.Alternatives = strings.Join(alternatives, "; ")
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}
