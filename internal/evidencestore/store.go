// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evidencestore persists assessment runs to SQLite and serves
// history queries over them, including full-text search on summaries.
// Implements: prd015-history (R1-R4);
//
//	docs/ARCHITECTURE § History.
package evidencestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

const dbFile = "evidence.db"

// Store manages the assessment history SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates the history database at cfg.Dir/evidence.db,
// creating the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "history"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS assessments (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			transcript TEXT NOT NULL,
			symptoms TEXT,
			primary_condition TEXT,
			confidence REAL,
			evidence_level TEXT,
			data_completeness REAL,
			summary TEXT,
			result TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_condition ON assessments(primary_condition)`,
		`CREATE TABLE IF NOT EXISTS assessment_refs (
			assessment_id TEXT NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
			ref_id TEXT,
			doi TEXT,
			title TEXT,
			journal TEXT,
			year INTEGER,
			source TEXT,
			citation_count INTEGER,
			url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_assessment ON assessment_refs(assessment_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='assessments_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE assessments_fts USING fts5(transcript, summary, content=assessments, content_rowid=rowid)`,
			`CREATE TRIGGER assessments_ai AFTER INSERT ON assessments BEGIN
				INSERT INTO assessments_fts(rowid, transcript, summary) VALUES (new.rowid, new.transcript, new.summary);
			END`,
			`CREATE TRIGGER assessments_ad AFTER DELETE ON assessments BEGIN
				INSERT INTO assessments_fts(assessments_fts, rowid, transcript, summary) VALUES('delete', old.rowid, old.transcript, old.summary);
			END`,
			`CREATE TRIGGER assessments_au AFTER UPDATE ON assessments BEGIN
				INSERT INTO assessments_fts(assessments_fts, rowid, transcript, summary) VALUES('delete', old.rowid, old.transcript, old.summary);
				INSERT INTO assessments_fts(rowid, transcript, summary) VALUES (new.rowid, new.transcript, new.summary);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// Save persists one assessment run and its references, returning the
// generated assessment ID.
func (s *Store) Save(ctx context.Context, transcript string, result types.PipelineResult) (string, error) {
	now := time.Now().UTC()
	id := assessmentID(transcript, now)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshaling result: %w", err)
	}
	symptomsJSON, _ := json.Marshal(result.Entities.Symptoms)

	primary := ""
	if result.Synthesis != nil {
		primary = result.Synthesis.PrimaryDiagnosis.Condition
	} else if len(result.FusedResults) > 0 {
		primary = result.FusedResults[0].Label
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (id, created_at, transcript, symptoms, primary_condition,
			confidence, evidence_level, data_completeness, summary, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now.Format(time.RFC3339Nano), transcript, string(symptomsJSON), primary,
		result.ConfidenceScore, string(result.EvidenceLevel), result.DataCompleteness,
		result.Summary, string(resultJSON),
	)
	if err != nil {
		return "", fmt.Errorf("inserting assessment: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO assessment_refs (assessment_id, ref_id, doi, title, journal, year, source, citation_count, url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing reference insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range result.References {
		if _, err := stmt.ExecContext(ctx,
			id, r.ID, r.DOI, r.Title, r.Journal, r.Year, string(r.Source), r.CitationCount, r.URL,
		); err != nil {
			return "", fmt.Errorf("inserting reference %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// assessmentID generates a deterministic ID from the transcript and save
// time. The ID is the first 12 hex characters of the SHA-256 digest.
func assessmentID(transcript string, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(transcript))
	h.Write([]byte(at.Format(time.RFC3339Nano)))
	return fmt.Sprintf("%x", h.Sum(nil))[:12]
}

// QueryOptions holds parameters for history queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over transcripts and
	// summaries.
	Query string

	// Condition filters by primary condition (exact, case-insensitive).
	Condition string

	// EvidenceLevel filters by the pipeline evidence grade.
	EvidenceLevel types.EvidenceRating

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Record is one stored assessment.
type Record struct {
	ID               string               `json:"id" yaml:"id"`
	CreatedAt        time.Time            `json:"created_at" yaml:"created_at"`
	Transcript       string               `json:"transcript" yaml:"transcript"`
	PrimaryCondition string               `json:"primary_condition" yaml:"primary_condition"`
	Confidence       float64              `json:"confidence" yaml:"confidence"`
	EvidenceLevel    types.EvidenceRating `json:"evidence_level" yaml:"evidence_level"`
	Summary          string               `json:"summary" yaml:"summary"`
	Result           types.PipelineResult `json:"result" yaml:"result"`
}

// Retrieve queries the history with optional full-text search and
// structured filters. Full-text queries rank by FTS relevance; otherwise
// the newest assessments come first.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]Record, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT a.id, a.created_at, a.transcript, a.primary_condition,
				a.confidence, a.evidence_level, a.summary, a.result
			FROM assessments_fts
			JOIN assessments a ON a.rowid = assessments_fts.rowid
			WHERE assessments_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT a.id, a.created_at, a.transcript, a.primary_condition,
				a.confidence, a.evidence_level, a.summary, a.result
			FROM assessments a
			WHERE 1=1`)
	}

	if opts.Condition != "" {
		qb.WriteString(` AND lower(a.primary_condition) = lower(?)`)
		args = append(args, opts.Condition)
	}
	if opts.EvidenceLevel != "" {
		qb.WriteString(` AND a.evidence_level = ?`)
		args = append(args, string(opts.EvidenceLevel))
	}

	if useFTS {
		qb.WriteString(` ORDER BY assessments_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY a.created_at DESC`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			createdAt  string
			resultJSON string
			level      string
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Transcript, &rec.PrimaryCondition,
			&rec.Confidence, &level, &rec.Summary, &resultJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.EvidenceLevel = types.EvidenceRating(level)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if err := json.Unmarshal([]byte(resultJSON), &rec.Result); err != nil {
			return nil, fmt.Errorf("parsing stored result %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// References returns the stored references for one assessment.
func (s *Store) References(ctx context.Context, assessmentID string) ([]types.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ref_id, doi, title, journal, year, source, citation_count, url
		 FROM assessment_refs WHERE assessment_id = ?`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	defer rows.Close()

	var refs []types.Reference
	for rows.Next() {
		var r types.Reference
		var source string
		if err := rows.Scan(&r.ID, &r.DOI, &r.Title, &r.Journal, &r.Year,
			&source, &r.CitationCount, &r.URL); err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		r.Source = types.LiteratureSource(source)
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// ExportYAML writes the full history to dir/export.yaml for inspection
// and versioning outside the database.
func (s *Store) ExportYAML(ctx context.Context) error {
	records, err := s.Retrieve(ctx, QueryOptions{MaxResults: 1 << 20})
	if err != nil {
		return err
	}

	out := struct {
		Exported    time.Time `yaml:"exported"`
		Assessments []Record  `yaml:"assessments"`
	}{
		Exported:    time.Now().UTC(),
		Assessments: records,
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, "export.yaml"), data, 0o644)
}
