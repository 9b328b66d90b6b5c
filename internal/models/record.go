package models

import "time"

const SchemaVersion = "3.0"

type Metadata struct {
	Version     string    `json:"version"`
	DateFetched string    `json:"date_fetched"`
	FetchedAt   time.Time `json:"fetched_at"`
	Source      string    `json:"source"`
	FetchID     string    `json:"fetch_id"`
	Revision    int       `json:"revision"`
	Supersedes  string    `json:"supersedes,omitempty"`
}

// DailyRecord is the single source of truth for one calendar date.
type DailyRecord struct {
	Date          string       `json:"date"`
	ContentDigest string       `json:"content_digest"`
	Payload       *Payload     `json:"wakatime_data"`
	Proof         *ProofBundle `json:"authenticity_proof"`
	RequestProof  *Evidence    `json:"request_proof,omitempty"`
	Metadata      Metadata     `json:"metadata"`
}

// SourceMeta describes where a payload came from.
type SourceMeta struct {
	Source    string
	FetchID   string
	FetchedAt time.Time
	Request   *Evidence
}

// Supersede links r to the stored record it replaces.
func (r *DailyRecord) Supersede(prev *DailyRecord) {
	r.Metadata.Revision = prev.Metadata.Revision + 1
	r.Metadata.Supersedes = prev.ContentDigest
}
