package models

// Confidence is the certainty tier of a duplicate match
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders tiers so that High sorts first.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// PairScore is the outcome of comparing two client records.
type PairScore struct {
	AnchorID   string     `json:"anchor_id"`
	MemberID   string     `json:"member_id"`
	Score      float64    `json:"score"`
	RawScore   float64    `json:"raw_score"`
	MaxScore   float64    `json:"max_score"`
	Confidence Confidence `json:"confidence"`
	Reasons    []string   `json:"reasons"`
}

// DuplicateGroup is a set of client records judged likely to be the same customer.
// Confidence, Score and MatchReasons come from the best-scoring pair; Pairs keeps
// every member's own comparison against the anchor.
type DuplicateGroup struct {
	Members      []Client    `json:"members"`
	MatchReasons []string    `json:"match_reasons"`
	Confidence   Confidence  `json:"confidence"`
	Score        float64     `json:"score"`
	Pairs        []PairScore `json:"pairs"`
}

// MemberIDs returns the member identifiers in group order.
func (g DuplicateGroup) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// DuplicateSummary counts grouped clients per confidence tier.
type DuplicateSummary struct {
	Groups int `json:"groups"`
	Count  int `json:"count"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// QualityLevel buckets the tenant's data-quality score.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "Excelente"
	QualityGood      QualityLevel = "Boa"
	QualityRegular   QualityLevel = "Regular"
	QualityPoor      QualityLevel = "Precisa melhorar"
)

// QualityStats describes how much of the client base is affected by duplicates.
type QualityStats struct {
	TotalClients     int          `json:"total_clients"`
	DuplicateClients int          `json:"duplicate_clients"`
	DuplicatePct     float64      `json:"duplicate_pct"`
	CleanPct         float64      `json:"clean_pct"`
	PriorityCount    int          `json:"priority_count"`
	QualityScore     float64      `json:"quality_score"`
	Level            QualityLevel `json:"level"`
}
