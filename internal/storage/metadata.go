package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TranscriptMeta is one row of transcript metadata.
type TranscriptMeta struct {
	JobID       string    `json:"job_id"`
	RequestName string    `json:"request_name"`
	SourceType  string    `json:"source_type"`
	Backend     string    `json:"backend"`
	Style       string    `json:"style"`
	GDriveURL   string    `json:"gdrive_url,omitempty"`
	LocalPath   string    `json:"local_path"`
	CreatedAt   time.Time `json:"created_at"`
	Duration    float64   `json:"duration"`
	WordCount   int       `json:"word_count"`
	Clarity     float64   `json:"clarity_score"`
}

// MetadataDB handles SQLite transcript metadata
type MetadataDB struct {
	db *sql.DB
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		request_name TEXT NOT NULL,
		source_type TEXT NOT NULL,
		backend TEXT NOT NULL,
		style TEXT NOT NULL,
		gdrive_url TEXT,
		local_path TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		duration REAL,
		word_count INTEGER,
		clarity_score REAL
	);

	CREATE INDEX IF NOT EXISTS idx_created_at ON transcripts(created_at);
	CREATE INDEX IF NOT EXISTS idx_request_name ON transcripts(request_name);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveTranscript saves transcript metadata to the database
func (mdb *MetadataDB) SaveTranscript(meta TranscriptMeta) error {
	query := `
	INSERT INTO transcripts (job_id, request_name, source_type, backend, style, gdrive_url, local_path, created_at, duration, word_count, clarity_score)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := mdb.db.Exec(query, meta.JobID, meta.RequestName, meta.SourceType,
		meta.Backend, meta.Style, meta.GDriveURL, meta.LocalPath,
		meta.CreatedAt, meta.Duration, meta.WordCount, meta.Clarity)
	if err != nil {
		return fmt.Errorf("failed to save transcript metadata: %v", err)
	}

	return nil
}

// GetTranscript retrieves transcript metadata by job ID
func (mdb *MetadataDB) GetTranscript(jobID string) (*TranscriptMeta, error) {
	query := `
	SELECT job_id, request_name, source_type, backend, style, gdrive_url, local_path, created_at, duration, word_count, clarity_score
	FROM transcripts WHERE job_id = ?
	`

	var m TranscriptMeta
	var gdrive sql.NullString
	err := mdb.db.QueryRow(query, jobID).Scan(&m.JobID, &m.RequestName,
		&m.SourceType, &m.Backend, &m.Style, &gdrive, &m.LocalPath,
		&m.CreatedAt, &m.Duration, &m.WordCount, &m.Clarity)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %v", err)
	}
	m.GDriveURL = gdrive.String

	return &m, nil
}

// ListTranscripts returns the most recent transcripts
func (mdb *MetadataDB) ListTranscripts(limit int) ([]TranscriptMeta, error) {
	query := `
	SELECT job_id, request_name, source_type, backend, style, gdrive_url, local_path, created_at, duration, word_count, clarity_score
	FROM transcripts ORDER BY created_at DESC LIMIT ?
	`

	rows, err := mdb.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %v", err)
	}
	defer rows.Close()

	var transcripts []TranscriptMeta

	for rows.Next() {
		var m TranscriptMeta
		var gdrive sql.NullString
		if err := rows.Scan(&m.JobID, &m.RequestName, &m.SourceType,
			&m.Backend, &m.Style, &gdrive, &m.LocalPath,
			&m.CreatedAt, &m.Duration, &m.WordCount, &m.Clarity); err != nil {
			continue
		}
		m.GDriveURL = gdrive.String
		transcripts = append(transcripts, m)
	}

	return transcripts, nil
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}
