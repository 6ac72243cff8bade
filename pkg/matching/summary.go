package matching

import "github.com/Ramsey-B/clover/pkg/models"

// Summarize counts grouped clients per confidence tier.
func Summarize(groups []models.DuplicateGroup) models.DuplicateSummary {
	summary := models.DuplicateSummary{Groups: len(groups)}
	for _, g := range groups {
		n := len(g.Members)
		summary.Count += n
		switch g.Confidence {
		case models.ConfidenceHigh:
			summary.High += n
		case models.ConfidenceMedium:
			summary.Medium += n
		case models.ConfidenceLow:
			summary.Low += n
		}
	}
	return summary
}

// Quality rates the client base against the duplicates found in it.
func Quality(totalClients int, summary models.DuplicateSummary) models.QualityStats {
	stats := models.QualityStats{
		TotalClients:     totalClients,
		DuplicateClients: summary.Count,
		CleanPct:         100,
		PriorityCount:    summary.High + summary.Medium,
	}
	if totalClients > 0 {
		stats.DuplicatePct = float64(summary.Count) / float64(totalClients) * 100
		stats.CleanPct = float64(totalClients-summary.Count) / float64(totalClients) * 100
	}
	stats.QualityScore = max(0, 100-stats.DuplicatePct)

	switch {
	case stats.QualityScore >= 95:
		stats.Level = models.QualityExcellent
	case stats.QualityScore >= 85:
		stats.Level = models.QualityGood
	case stats.QualityScore >= 70:
		stats.Level = models.QualityRegular
	default:
		stats.Level = models.QualityPoor
	}
	return stats
}
