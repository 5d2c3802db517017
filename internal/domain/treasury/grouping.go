package treasury

import (
	"sort"
)

// Group is a set of pending-periodic operations settled by one dispatch.
type Group struct {
	Representative Operation
	Members        []Operation // includes Representative
	Metadata       PeriodicMetadata
}

// MemberIDs returns the ids of every member, representative first
func (g Group) MemberIDs() []string {
	return g.Metadata.GroupedOperations
}

// GroupOperations groups pending-periodic operations by account and direction,
// since one mint or burn targets one account. The oldest operation of each group
// becomes its representative; ties on created_at break on id. Operations without
// an account are left out. Groups are returned in representative order.
func GroupOperations(ops []Operation) []Group {
	sorted := make([]Operation, 0, len(ops))
	for _, op := range ops {
		if op.Status != OpStatusPendingPeriodic || !op.HasAccount() {
			continue
		}
		sorted = append(sorted, op)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	type key struct {
		account   string
		direction Direction
	}
	index := make(map[key]int)
	var groups []Group
	for _, op := range sorted {
		k := key{account: *op.Account, direction: op.Direction}
		i, ok := index[k]
		if !ok {
			index[k] = len(groups)
			groups = append(groups, Group{Representative: op})
			i = len(groups) - 1
		}
		g := &groups[i]
		g.Members = append(g.Members, op)
		g.Metadata.GroupedOperations = append(g.Metadata.GroupedOperations, op.ID)
		g.Metadata.TotalAmount += op.Amount
	}
	return groups
}
