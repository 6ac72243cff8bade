package merging

import (
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ComputeFieldDecisions compares survivor and duplicate over every mergeable field.
// A field is inherited only when the survivor's value is blank and the duplicate's is not.
func ComputeFieldDecisions(survivor, duplicate *models.Client) []models.FieldDecision {
	decisions := make([]models.FieldDecision, 0, len(models.MergeableFields))
	for _, field := range models.MergeableFields {
		survivorValue := survivor.Field(field)
		duplicateValue := duplicate.Field(field)
		decisions = append(decisions, models.FieldDecision{
			Field:          field,
			Label:          field.Label(),
			SourceClientID: duplicate.ID,
			SurvivorValue:  survivorValue,
			DuplicateValue: duplicateValue,
			WillInherit:    models.IsBlank(survivorValue) && !models.IsBlank(duplicateValue),
		})
	}
	return decisions
}

// InheritableDecisions keeps the decisions that would back-fill the survivor.
func InheritableDecisions(decisions []models.FieldDecision) []models.FieldDecision {
	out := []models.FieldDecision{}
	for _, d := range decisions {
		if d.WillInherit {
			out = append(out, d)
		}
	}
	return out
}

// planFieldUpdates turns accepted decisions into survivor writes. Values are read from the
// duplicate records, never from the decision, and a field the survivor already has is
// never written. When several duplicates offer the same field the first accepted wins.
func planFieldUpdates(survivor *models.Client, duplicates []models.Client, accepted []models.FieldDecision) ([]models.FieldValue, error) {
	byID := make(map[string]*models.Client, len(duplicates))
	for i := range duplicates {
		byID[duplicates[i].ID] = &duplicates[i]
	}

	updates := []models.FieldValue{}
	planned := map[models.ClientField]bool{}
	for _, decision := range accepted {
		if !decision.WillInherit {
			continue
		}
		if !decision.Field.IsMergeable() {
			return nil, fmt.Errorf("field %q cannot be merged", decision.Field)
		}
		source, ok := byID[decision.SourceClientID]
		if !ok {
			return nil, fmt.Errorf("field %q comes from client %s, which is not a duplicate in this merge", decision.Field, decision.SourceClientID)
		}
		if planned[decision.Field] || !models.IsBlank(survivor.Field(decision.Field)) {
			continue
		}
		value := source.Field(decision.Field)
		if models.IsBlank(value) {
			continue
		}
		planned[decision.Field] = true
		updates = append(updates, models.FieldValue{Field: decision.Field, Value: *value})
	}
	return updates, nil
}
