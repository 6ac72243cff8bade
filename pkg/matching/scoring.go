package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Scorer compares client records using a fixed ScoringConfig. It is safe for concurrent use.
type Scorer struct {
	config ScoringConfig
}

// NewScorer creates a new Scorer
func NewScorer(config ScoringConfig) *Scorer {
	return &Scorer{config: config}
}

// Config returns the configuration the scorer was built with.
func (s *Scorer) Config() ScoringConfig {
	return s.config
}

// Compare scores a against b. Optional fields only count when present on both records;
// the name always counts toward the maximum.
func (s *Scorer) Compare(a, b *models.Client) models.PairScore {
	var score, maxScore float64
	reasons := []string{}

	for _, rule := range s.config.Fields {
		av, bv := a.Field(rule.Field), b.Field(rule.Field)
		if models.IsBlank(av) || models.IsBlank(bv) {
			continue
		}
		maxScore += rule.Weight

		an := normalizers.Apply(*av, rule.Normalizer)
		bn := normalizers.Apply(*bv, rule.Normalizer)
		// a value that normalizes to nothing ("N/A" as a document) still counts toward
		// the maximum but can never match
		if an != "" && an == bn {
			score += rule.Weight
			reasons = append(reasons, rule.Reason)
			continue
		}

		if rule.Field == models.FieldPhone && s.config.PartialPhone.Enabled {
			tail := normalizers.LastDigits(an, s.config.PartialPhone.Digits)
			if tail != "" && tail == normalizers.LastDigits(bn, s.config.PartialPhone.Digits) {
				score += s.config.PartialPhone.Weight
				reasons = append(reasons, s.config.PartialPhone.Reason)
			}
		}
	}

	maxScore += s.config.Name.Weight
	if points, reason := s.compareNames(a.Name, b.Name); points > 0 {
		score += points
		reasons = append(reasons, reason)
	}

	if rule := s.config.Address; rule.Enabled && hasAddress(a) && hasAddress(b) {
		maxScore += rule.Weight
		if sameLocation(*a.Address, *b.Address) && sameLocation(*a.City, *b.City) {
			score += rule.Weight
			reasons = append(reasons, rule.Reason)
		}
	}

	percentage := 0.0
	if score > 0 {
		percentage = score / maxScore * 100
	}

	return models.PairScore{
		AnchorID:   a.ID,
		MemberID:   b.ID,
		Score:      percentage,
		RawScore:   score,
		MaxScore:   maxScore,
		Confidence: s.Classify(percentage, score),
		Reasons:    reasons,
	}
}

func (s *Scorer) compareNames(a, b string) (float64, string) {
	rule := s.config.Name
	an, bn := normalizers.NormalizeName(a), normalizers.NormalizeName(b)
	// names that normalize to nothing carry no identity
	if an == "" || bn == "" {
		return 0, ""
	}

	if !rule.Fuzzy {
		if an == bn {
			return rule.Weight, rule.Reason
		}
		return 0, ""
	}

	similarity := Levenshtein(an, bn)
	switch {
	case similarity >= rule.StrongSimilarity:
		return rule.Weight, rule.StrongReason
	case similarity >= rule.WeakSimilarity:
		return rule.WeakWeight, rule.WeakReason
	}
	return 0, ""
}

// sameLocation folds street and city names like personal names, so punctuation and
// connectives ("Rua da Paz, 10" and "Rua Paz 10") do not matter.
func sameLocation(a, b string) bool {
	an := normalizers.NormalizeName(a)
	return an != "" && an == normalizers.NormalizeName(b)
}

func hasAddress(c *models.Client) bool {
	return !models.IsBlank(c.Address) && !models.IsBlank(c.City)
}

// Classify assigns a tier; the first rule met wins.
func (s *Scorer) Classify(percentage, rawScore float64) models.Confidence {
	switch {
	case percentage >= s.config.High.MinPercentage || rawScore >= s.config.High.MinRawScore:
		return models.ConfidenceHigh
	case percentage >= s.config.Medium.MinPercentage || rawScore >= s.config.Medium.MinRawScore:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Includes reports whether a scored pair reaches the inclusion floor of its own tier.
// A pair can be classified High by raw score and still fall below the High floor.
func (s *Scorer) Includes(pair models.PairScore) bool {
	switch pair.Confidence {
	case models.ConfidenceHigh:
		return pair.Score >= s.config.HighFloor
	case models.ConfidenceMedium:
		return pair.Score >= s.config.MediumFloor
	default:
		return pair.Score >= s.config.LowFloor
	}
}

// Levenshtein returns a similarity between 0.0 and 1.0 derived from the edit distance.
func Levenshtein(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshteinDistance(ra, rb))/float64(maxLen)
}

func levenshteinDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)
	for j := range prevRow {
		prevRow[j] = j
	}

	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}
