package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (bundle_id, trigger_type, details_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.BundleID,
		entry.TriggerType,
		nullIfEmpty(entry.DetailsJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region details
// Details marshals v for ProvenanceEntry.DetailsJSON. Marshal failures yield "".
func Details(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// #endregion details

// #region history
// History returns the most recent provenance entries, newest first.
func History(db *sql.DB, limit int) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT bundle_id, trigger_type, details_json, decision, reason, created_at
		 FROM provenance_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	return scanHistory(rows)
}

// HistoryFor returns the most recent entries for one bundle, newest first.
func HistoryFor(db *sql.DB, bundleID string, limit int) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT bundle_id, trigger_type, details_json, decision, reason, created_at
		 FROM provenance_log WHERE bundle_id = ? ORDER BY id DESC LIMIT ?`, bundleID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query provenance %s: %w", bundleID, err)
	}
	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]ProvenanceEntry, error) {
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var details, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.BundleID, &e.TriggerType, &details, &e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.DetailsJSON = details.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion history

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
