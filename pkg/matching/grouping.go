package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// processedSet tracks client ids already placed into a group during one pass.
type processedSet map[string]struct{}

func (p processedSet) has(id string) bool {
	_, ok := p[id]
	return ok
}

func (p processedSet) add(ids ...string) {
	for _, id := range ids {
		p[id] = struct{}{}
	}
}

// FindDuplicateGroups runs one left-to-right pass over clients. Each unprocessed anchor is
// compared with every later unprocessed record; the matches that reach their tier's floor
// form a group with the anchor. Groups are ordered High > Medium > Low, then by score.
func (s *Scorer) FindDuplicateGroups(clients []models.Client) []models.DuplicateGroup {
	groups := []models.DuplicateGroup{}
	processed := make(processedSet, len(clients))

	for i := range clients {
		anchor := &clients[i]
		if processed.has(anchor.ID) {
			continue
		}
		if group, ok := s.collectGroup(anchor, clients[i+1:], processed); ok {
			groups = append(groups, group)
		}
	}

	SortGroups(groups)
	return groups
}

// collectGroup scans candidates for matches of anchor and marks the group as processed.
func (s *Scorer) collectGroup(anchor *models.Client, candidates []models.Client, processed processedSet) (models.DuplicateGroup, bool) {
	members := []models.Client{}
	pairs := []models.PairScore{}

	for j := range candidates {
		candidate := &candidates[j]
		if candidate.ID == anchor.ID || processed.has(candidate.ID) {
			continue
		}
		pair := s.Compare(anchor, candidate)
		if !s.Includes(pair) {
			continue
		}
		members = append(members, *candidate)
		pairs = append(pairs, pair)
	}

	if len(members) == 0 {
		return models.DuplicateGroup{}, false
	}

	processed.add(anchor.ID)
	for _, m := range members {
		processed.add(m.ID)
	}

	best := pairs[0]
	for _, pair := range pairs[1:] {
		if pair.Score > best.Score {
			best = pair
		}
	}

	return models.DuplicateGroup{
		Members:      append([]models.Client{*anchor}, members...),
		MatchReasons: best.Reasons,
		Confidence:   best.Confidence,
		Score:        best.Score,
		Pairs:        pairs,
	}, true
}

// SortGroups orders groups by confidence tier, then by descending score. Equal groups keep
// their discovery order.
func SortGroups(groups []models.DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := groups[i].Confidence.Rank(), groups[j].Confidence.Rank()
		if ri != rj {
			return ri > rj
		}
		return groups[i].Score > groups[j].Score
	})
}
