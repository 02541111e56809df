package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	BundleID    string
	TriggerType string // "import" | "activate" | "startup_load"
	DetailsJSON string
	Decision    string // "accept" | "reject"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region load-record
// LoadRecord captures what a startup load checked.
// Serialized as JSON into provenance_log.details_json.
type LoadRecord struct {
	Source    string   `json:"source"`
	Artifacts []string `json:"artifacts"`
	Probes    int      `json:"probes"`
	Failed    []string `json:"failed,omitempty"`
}

// #endregion load-record
