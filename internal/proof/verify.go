package proof

import (
	"fmt"
	"time"
	"wakaproof/internal/models"
)

// Report is the outcome of re-checking a stored record offline.
type Report struct {
	Date           string             `json:"date"`
	Digest         string             `json:"digest"`
	DigestMatches  bool               `json:"digest_matches"`
	ProofMatches   bool               `json:"proof_matches"`
	StoredStatus   models.ProofStatus `json:"stored_status"`
	ComputedStatus models.ProofStatus `json:"computed_status"`
	Problems       []string           `json:"problems,omitempty"`
}

// Ok means the payload is unaltered and its proof still corroborates it.
func (r *Report) Ok() bool {
	return len(r.Problems) == 0 && r.ComputedStatus == models.ProofConsistent
}

// Verify recomputes the payload digest and the proof status of rec.
func Verify(rec *models.DailyRecord) *Report {
	rep := &Report{Date: rec.Date}

	digest, err := Digest(rec.Payload)
	if err != nil {
		rep.Problems = append(rep.Problems, fmt.Sprintf("payload cannot be digested: %v", err))
	} else {
		rep.Digest = digest
		rep.DigestMatches = digest == rec.ContentDigest
		if !rep.DigestMatches {
			rep.Problems = append(rep.Problems, fmt.Sprintf("content digest mismatch: stored %s, computed %s", rec.ContentDigest, digest))
		}
	}

	if rec.Proof == nil {
		rep.ComputedStatus = models.ProofUnverified
		rep.Problems = append(rep.Problems, "record has no proof bundle")
		return rep
	}
	rep.StoredStatus = rec.Proof.Status
	rep.ProofMatches = rec.Proof.ContentHash == rec.ContentDigest
	if !rep.ProofMatches {
		rep.Problems = append(rep.Problems, "proof bundle hashes a different payload")
	}

	observed := make([]time.Time, 0, len(rec.Proof.Timestamps))
	for _, t := range rec.Proof.Timestamps {
		observed = append(observed, t)
	}
	rep.ComputedStatus = Evaluate(observed, time.Duration(rec.Proof.ToleranceMs)*time.Millisecond)
	if rep.ComputedStatus != rep.StoredStatus {
		rep.Problems = append(rep.Problems, fmt.Sprintf("stored status %s, timestamps give %s", rep.StoredStatus, rep.ComputedStatus))
	}
	return rep
}
