package model

import (
	"strings"
	"time"
)

// QueryRequest is the body of a query call. Absent k and score_threshold use the defaults.
type QueryRequest struct {
	Query          string   `json:"query"`
	K              *int     `json:"k,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
}

// Text returns the trimmed query text.
func (r QueryRequest) Text() string {
	return strings.TrimSpace(r.Query)
}

// Config returns the normalized retrieval configuration of the request.
func (r QueryRequest) Config() QueryConfig {
	config := DefaultQueryConfig()
	if r.K != nil {
		config.TopK = *r.K
	}
	if r.ScoreThreshold != nil {
		config.SimilarityThreshold = *r.ScoreThreshold
	}
	return config.Normalize()
}

// Source describes the entity an answer was built from.
type Source struct {
	Type   EntityKind `json:"type"`
	ID     string     `json:"id"`
	NameAr string     `json:"name_ar"`
	NameEn string     `json:"name_en"`
	Score  float64    `json:"score"`
}

// NewSource converts a match into a source with a rounded score.
func NewSource(m *LocationMatch) Source {
	return Source{
		Type:   m.Kind,
		ID:     m.ID,
		NameAr: m.NameAr,
		NameEn: m.NameEn,
		Score:  RoundScore(m.Score),
	}
}

// Branch is the terminal path a query took through the pipeline.
type Branch string

const (
	BranchNoMatch  Branch = "no_match"
	BranchNoAlerts Branch = "no_alerts"
	BranchAnswered Branch = "answered"
)

// StageReport records how a single stage ended.
type StageReport struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// QueryReport is the internal telemetry of one request.
type QueryReport struct {
	RequestID string        `json:"request_id"`
	Language  Language      `json:"language"`
	Branch    Branch        `json:"branch"`
	Stages    []StageReport `json:"stages"`
}

// Stage returns the report of the named stage.
func (r *QueryReport) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageReport{}, false
}

// Degraded reports whether any stage did not succeed.
func (r *QueryReport) Degraded() bool {
	for _, s := range r.Stages {
		if s.Status != StatusSuccess {
			return true
		}
	}
	return false
}

// QueryResponse is the answer to a query. Sources is never nil.
type QueryResponse struct {
	Answer     string       `json:"answer"`
	Sources    []Source     `json:"sources"`
	Confidence float64      `json:"confidence"`
	Report     *QueryReport `json:"-"`
}
