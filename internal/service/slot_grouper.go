package service

import (
	"sort"

	"trialdesk/internal/models"
)

// GroupCandidates collapses search hits sharing one UTC window into slot
// groups. Within a group members are deduplicated by teacher id and ordered
// by teacher id ascending; groups come back in ascending utc_start order.
// Pure function of its input.
func GroupCandidates(candidates []models.SlotCandidate) []models.SlotGroup {
	byStart := make(map[int64]*models.SlotGroup)
	seen := make(map[int64]map[int64]bool)

	for _, c := range candidates {
		key := c.UTCStart.UnixNano()
		group, ok := byStart[key]
		if !ok {
			group = &models.SlotGroup{UTCStart: c.UTCStart, UTCEnd: c.UTCEnd}
			byStart[key] = group
			seen[key] = make(map[int64]bool)
		}
		if seen[key][c.TeacherID] {
			continue
		}
		seen[key][c.TeacherID] = true
		group.Members = append(group.Members, c)
	}

	groups := make([]models.SlotGroup, 0, len(byStart))
	for _, g := range byStart {
		sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].TeacherID < g.Members[j].TeacherID })
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].UTCStart.Before(groups[j].UTCStart) })
	return groups
}
