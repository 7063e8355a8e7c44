package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// InsertJudgment conditionally inserts a judgment and returns its row ID and
// whether a new row was created. Deduplication is pushed to the storage
// layer: INSERT OR IGNORE absorbs unique-constraint conflicts on doc_id and
// on the (case_number, judgment_date) composite, so the operation stays
// race-free under concurrent writers. Documents with neither key are always
// inserted as new rows.
func (db *DB) InsertJudgment(j *Judgment) (int64, bool, error) {
	meta, err := marshalMetadata(j.Metadata)
	if err != nil {
		return 0, false, err
	}

	result, err := db.conn.Exec(
		`INSERT OR IGNORE INTO judgments
		(doc_id, title, court, judgment_date, doc_size, num_cites, headline, case_number, source, metadata, first_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.DocID, j.Title, j.Court, j.JudgmentDate, j.DocSize, j.NumCites,
		j.Headline, j.CaseNumber, j.Source, meta, Now(),
	)
	if err != nil {
		return 0, false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if affected > 0 {
		id, err := result.LastInsertId()
		return id, true, err
	}

	// Conflict: resolve the pre-existing row by whichever key applies.
	var id int64
	switch {
	case j.DocID != nil:
		err = db.conn.QueryRow("SELECT id FROM judgments WHERE doc_id = ?", *j.DocID).Scan(&id)
	case j.CaseNumber != nil && j.JudgmentDate != nil:
		err = db.conn.QueryRow(
			"SELECT id FROM judgments WHERE case_number = ? AND judgment_date = ?",
			*j.CaseNumber, *j.JudgmentDate,
		).Scan(&id)
	default:
		// No dedup key, yet the insert was ignored — should not happen.
		return 0, false, fmt.Errorf("judgment insert ignored without a dedup key (title %q)", j.Title)
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving judgment after conflict: %w", err)
	}
	return id, false, nil
}

// GetJudgment returns a single judgment by row ID, or nil if not found.
func (db *DB) GetJudgment(id int64) (*Judgment, error) {
	row := db.conn.QueryRow(judgmentSelect+" WHERE id = ?", id)
	j, err := scanJudgment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// GetJudgmentByDocID returns a judgment by its external document ID.
func (db *DB) GetJudgmentByDocID(docID int64) (*Judgment, error) {
	row := db.conn.QueryRow(judgmentSelect+" WHERE doc_id = ?", docID)
	j, err := scanJudgment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// MergeJudgmentMetadata merges new keys into a judgment's metadata bag.
// Existing keys are preserved; enrichment is non-destructive.
func (db *DB) MergeJudgmentMetadata(id int64, extra map[string]any) error {
	if len(extra) == 0 {
		return nil
	}

	j, err := db.GetJudgment(id)
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("judgment %d not found", id)
	}

	merged := make(map[string]any, len(j.Metadata)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range j.Metadata {
		merged[k] = v
	}

	meta, err := marshalMetadata(merged)
	if err != nil {
		return err
	}
	_, err = db.conn.Exec("UPDATE judgments SET metadata = ? WHERE id = ?", meta, id)
	return err
}

// ClearData removes all judgments and matches (bulk operator action).
// Watches and audit logs are preserved.
func (db *DB) ClearData() error {
	if _, err := db.conn.Exec("DELETE FROM watch_matches"); err != nil {
		return err
	}
	_, err := db.conn.Exec("DELETE FROM judgments")
	return err
}

const judgmentSelect = `SELECT id, doc_id, title, court, judgment_date, doc_size,
	num_cites, headline, case_number, source, metadata, first_seen_at
	FROM judgments`

func scanJudgment(s rowScanner) (*Judgment, error) {
	var j Judgment
	var meta *string
	if err := s.Scan(&j.ID, &j.DocID, &j.Title, &j.Court, &j.JudgmentDate, &j.DocSize,
		&j.NumCites, &j.Headline, &j.CaseNumber, &j.Source, &meta, &j.FirstSeenAt); err != nil {
		return nil, err
	}
	if meta != nil && *meta != "" {
		if err := json.Unmarshal([]byte(*meta), &j.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata for judgment %d: %w", j.ID, err)
		}
	}
	return &j, nil
}

func marshalMetadata(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	s := string(data)
	return &s, nil
}
