package merging

import (
	"sort"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// SurvivorCandidate is a group member ranked by how much it should remain after a merge.
type SurvivorCandidate struct {
	Client models.Client `json:"client"`
	Score  float64       `json:"score"`
}

const (
	maxAgeYears  = 5.0
	hoursPerYear = 24 * 365
)

// SuggestSurvivor ranks members from most to least suitable survivor. Dependents weigh
// most (policies 100, claims 20, appointments 10 each), then record age (20 per year, up
// to five), then filled document (50), email (30), phone (20) and city with state (15).
// Equal scores keep group order.
func SuggestSurvivor(members []models.Client, counts []models.RelationshipCounts, now time.Time) []SurvivorCandidate {
	byID := make(map[string]models.RelationshipCounts, len(counts))
	for _, c := range counts {
		byID[c.ClientID] = c
	}

	ranked := make([]SurvivorCandidate, 0, len(members))
	for _, m := range members {
		ranked = append(ranked, SurvivorCandidate{Client: m, Score: survivorScore(m, byID[m.ID], now)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func survivorScore(c models.Client, rel models.RelationshipCounts, now time.Time) float64 {
	score := float64(rel.Policies*100 + rel.Appointments*10 + rel.Claims*20)

	if !c.CreatedAt.IsZero() {
		years := now.Sub(c.CreatedAt).Hours() / hoursPerYear
		score += min(max(years, 0), maxAgeYears) * 20
	}
	if !models.IsBlank(c.DocumentID) {
		score += 50
	}
	if !models.IsBlank(c.Email) {
		score += 30
	}
	if !models.IsBlank(c.Phone) {
		score += 20
	}
	if !models.IsBlank(c.City) && !models.IsBlank(c.State) {
		score += 15
	}
	return score
}
