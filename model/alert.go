package model

import (
	"sort"
	"time"
)

// Alert is a published safety alert as stored in the alerts table.
type Alert struct {
	ID             string     `json:"alert_id"`
	Title          string     `json:"alert_title"`
	TypeAr         string     `json:"alert_type_ar"`
	TypeEn         string     `json:"alert_type_en"`
	FromDate       *time.Time `json:"from_date,omitempty"`
	ToDate         *time.Time `json:"to_date,omitempty"`
	StatusAr       string     `json:"status_ar"`
	StatusEn       string     `json:"status_en"`
	GovernorateIDs []string   `json:"governorate_ids,omitempty"`
	HazardIDs      []string   `json:"hazard_ids,omitempty"`
}

// Hazard describes a specific danger linked to alerts.
type Hazard struct {
	ID            string    `json:"hazard_id"`
	DescriptionAr string    `json:"description_ar"`
	DescriptionEn string    `json:"description_en"`
	Embedding     []float32 `json:"-"`
}

// AlertRecord is an alert aggregated for one resolved entity, with the
// affected governorate names and hazards in both languages.
type AlertRecord struct {
	ID               string     `json:"alert_id"`
	Title            string     `json:"alert_title"`
	TypeAr           string     `json:"alert_type_ar"`
	TypeEn           string     `json:"alert_type_en"`
	StatusAr         string     `json:"status_ar"`
	StatusEn         string     `json:"status_en"`
	FromDate         *time.Time `json:"from_date,omitempty"`
	ToDate           *time.Time `json:"to_date,omitempty"`
	GovernorateNames Bilingual  `json:"governorate_names"`
	Hazards          Bilingual  `json:"hazards"`
}

// Bilingual holds the same set of values in Arabic and English.
type Bilingual struct {
	Ar []string `json:"ar"`
	En []string `json:"en"`
}

// For returns the values in the given language.
func (b Bilingual) For(lang Language) []string {
	if lang == LanguageArabic {
		return b.Ar
	}
	return b.En
}

// AlertSummary is the per-language projection of an alert handed to the answer model.
type AlertSummary struct {
	Type    string   `json:"type"`
	Status  string   `json:"status"`
	Areas   []string `json:"areas"`
	Hazards []string `json:"hazards"`
}

// Summary projects the record into the given language with deduplicated, sorted sets.
func (r *AlertRecord) Summary(lang Language) AlertSummary {
	s := AlertSummary{
		Type:    r.TypeEn,
		Status:  r.StatusEn,
		Areas:   UniqueSorted(r.GovernorateNames.For(lang)),
		Hazards: UniqueSorted(r.Hazards.For(lang)),
	}
	if lang == LanguageArabic {
		s.Type = r.TypeAr
		s.Status = r.StatusAr
	}
	return s
}

// UniqueSorted returns the non-empty distinct values of in, sorted.
// It never returns nil.
func UniqueSorted(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
