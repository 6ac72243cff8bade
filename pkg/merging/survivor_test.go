package merging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestSuggestSurvivor(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	twoYears := now.Add(-2 * 365 * 24 * time.Hour)
	tenYears := now.Add(-10 * 365 * 24 * time.Hour)

	complete := client("complete", "Ana",
		with(models.FieldDocumentID, "123"),
		with(models.FieldEmail, "ana@example.com"),
		with(models.FieldPhone, "11999990000"),
		with(models.FieldCity, "Santos"),
		with(models.FieldState, "SP"))
	insured := client("insured", "Ana")
	veteran := client("veteran", "Ana")
	veteran.CreatedAt = tenYears
	recent := client("recent", "Ana", with(models.FieldCity, "Santos"))
	recent.CreatedAt = twoYears

	counts := []models.RelationshipCounts{
		{ClientID: "insured", Policies: 1, Appointments: 2, Claims: 1},
	}

	ranked := SuggestSurvivor([]models.Client{recent, complete, veteran, insured}, counts, now)

	require.Len(t, ranked, 4)
	ids := []string{}
	scores := map[string]float64{}
	for _, c := range ranked {
		ids = append(ids, c.Client.ID)
		scores[c.Client.ID] = c.Score
	}
	assert.Equal(t, []string{"insured", "complete", "veteran", "recent"}, ids)
	assert.InDelta(t, 140, scores["insured"], 0.001)
	assert.InDelta(t, 115, scores["complete"], 0.001)
	assert.InDelta(t, 100, scores["veteran"], 0.001)
	assert.InDelta(t, 40, scores["recent"], 0.001)
}

func TestSuggestSurvivor_TiesKeepOrder(t *testing.T) {
	now := time.Now()
	members := []models.Client{client("b", "Ana"), client("a", "Ana"), client("c", "Ana")}

	ranked := SuggestSurvivor(members, nil, now)

	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].Client.ID)
	assert.Equal(t, "a", ranked[1].Client.ID)
	assert.Equal(t, "c", ranked[2].Client.ID)
	assert.Zero(t, ranked[0].Score)
}
