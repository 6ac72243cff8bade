package matching

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// FieldRule scores one optional client field by exact comparison of normalized values.
type FieldRule struct {
	Field      models.ClientField `json:"field"`
	Weight     float64            `json:"weight"`
	Normalizer string             `json:"normalizer"`
	Reason     string             `json:"reason"`
}

// NameRule scores the client name. With Fuzzy disabled only an exact normalized match
// scores; with it enabled a Levenshtein ratio at or above StrongSimilarity earns the full
// weight and one at or above WeakSimilarity earns WeakWeight.
type NameRule struct {
	Weight           float64 `json:"weight"`
	Reason           string  `json:"reason"`
	Fuzzy            bool    `json:"fuzzy"`
	StrongSimilarity float64 `json:"strong_similarity"`
	StrongReason     string  `json:"strong_reason"`
	WeakSimilarity   float64 `json:"weak_similarity"`
	WeakWeight       float64 `json:"weak_weight"`
	WeakReason       string  `json:"weak_reason"`
}

// PartialPhoneRule awards Weight when phones differ but share their trailing Digits.
type PartialPhoneRule struct {
	Enabled bool    `json:"enabled"`
	Digits  int     `json:"digits"`
	Weight  float64 `json:"weight"`
	Reason  string  `json:"reason"`
}

// AddressRule compares address and city together; both must be present on both records.
type AddressRule struct {
	Enabled bool    `json:"enabled"`
	Weight  float64 `json:"weight"`
	Reason  string  `json:"reason"`
}

// TierRule classifies a pair into a tier when either bound is met.
type TierRule struct {
	MinPercentage float64 `json:"min_percentage"`
	MinRawScore   float64 `json:"min_raw_score"`
}

// ScoringConfig holds every weight and threshold the scorer uses.
type ScoringConfig struct {
	Fields       []FieldRule      `json:"fields"`
	Name         NameRule         `json:"name"`
	PartialPhone PartialPhoneRule `json:"partial_phone"`
	Address      AddressRule      `json:"address"`

	High   TierRule `json:"high"`
	Medium TierRule `json:"medium"`

	// Inclusion floors are percentages a pair must reach for its own tier to be grouped.
	HighFloor   float64 `json:"high_floor"`
	MediumFloor float64 `json:"medium_floor"`
	LowFloor    float64 `json:"low_floor"`
}

const (
	ReasonDocument     = "CPF/CNPJ idêntico"
	ReasonEmail        = "Email idêntico"
	ReasonPhone        = "Telefone idêntico"
	ReasonName         = "Nome idêntico"
	ReasonNameStrong   = "Nome muito similar"
	ReasonNameWeak     = "Nome similar"
	ReasonPhonePartial = "Número de telefone similar"
	ReasonBirthDate    = "Data de nascimento idêntica"
	ReasonAddress      = "Endereço idêntico"
)

// DefaultScoringConfig is the standard profile: document 40, email 35, phone 25 and an
// exact name match 20, with High at 70% or 60 points, Medium at 40% or 30 points and
// inclusion floors of 60/40/30 percent.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		Fields: []FieldRule{
			{Field: models.FieldDocumentID, Weight: 40, Normalizer: normalizers.Document, Reason: ReasonDocument},
			{Field: models.FieldEmail, Weight: 35, Normalizer: normalizers.Email, Reason: ReasonEmail},
			{Field: models.FieldPhone, Weight: 25, Normalizer: normalizers.Phone, Reason: ReasonPhone},
		},
		Name: NameRule{
			Weight: 20,
			Reason: ReasonName,
		},
		High:        TierRule{MinPercentage: 70, MinRawScore: 60},
		Medium:      TierRule{MinPercentage: 40, MinRawScore: 30},
		HighFloor:   60,
		MediumFloor: 40,
		LowFloor:    30,
	}
}

// ExtendedScoringConfig adds fuzzy names, partial phones, birth date and address on top
// of the standard profile.
func ExtendedScoringConfig() ScoringConfig {
	cfg := DefaultScoringConfig()
	cfg.Fields = append(cfg.Fields, FieldRule{
		Field:      models.FieldBirthDate,
		Weight:     10,
		Normalizer: "trim",
		Reason:     ReasonBirthDate,
	})
	cfg.Name = NameRule{
		Weight:           20,
		Reason:           ReasonName,
		Fuzzy:            true,
		StrongSimilarity: 0.9,
		StrongReason:     ReasonNameStrong,
		WeakSimilarity:   0.7,
		WeakWeight:       10,
		WeakReason:       ReasonNameWeak,
	}
	cfg.PartialPhone = PartialPhoneRule{Enabled: true, Digits: 8, Weight: 15, Reason: ReasonPhonePartial}
	cfg.Address = AddressRule{Enabled: true, Weight: 5, Reason: ReasonAddress}
	return cfg
}

// ScoringConfigForProfile resolves a named profile ("standard" or "extended").
func ScoringConfigForProfile(profile string) (ScoringConfig, error) {
	switch profile {
	case "", "standard":
		return DefaultScoringConfig(), nil
	case "extended":
		return ExtendedScoringConfig(), nil
	default:
		return ScoringConfig{}, fmt.Errorf("unknown scoring profile %q", profile)
	}
}

// Validate checks that the configuration can score pairs meaningfully.
func (c ScoringConfig) Validate() error {
	if c.Name.Weight <= 0 {
		return fmt.Errorf("name weight must be positive")
	}
	seen := map[models.ClientField]bool{}
	for _, rule := range c.Fields {
		if rule.Weight <= 0 {
			return fmt.Errorf("field %s weight must be positive", rule.Field)
		}
		if !rule.Field.IsMergeable() {
			return fmt.Errorf("field %s cannot be scored", rule.Field)
		}
		if seen[rule.Field] {
			return fmt.Errorf("field %s is configured twice", rule.Field)
		}
		seen[rule.Field] = true
		if _, ok := normalizers.Get(rule.Normalizer); !ok {
			return fmt.Errorf("field %s uses unknown normalizer %q", rule.Field, rule.Normalizer)
		}
	}
	if c.Name.Fuzzy && (c.Name.WeakSimilarity > c.Name.StrongSimilarity || c.Name.StrongSimilarity > 1) {
		return fmt.Errorf("name similarity thresholds must satisfy weak <= strong <= 1")
	}
	if c.PartialPhone.Enabled && c.PartialPhone.Digits <= 0 {
		return fmt.Errorf("partial phone digits must be positive")
	}
	if c.LowFloor > c.MediumFloor || c.MediumFloor > c.HighFloor {
		return fmt.Errorf("inclusion floors must satisfy low <= medium <= high")
	}
	return nil
}
