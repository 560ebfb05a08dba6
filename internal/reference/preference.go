package reference

import (
	"context"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/types"
)

// PreferenceTable is the static preference-group membership. It is built once
// from configuration and never mutated.
type PreferenceTable struct {
	groups map[string]types.PreferenceGroup
}

// NewPreferenceTable builds a table from EAEU and CIS member lists. A country
// listed in both groups is EAEU.
func NewPreferenceTable(eaeu, cis []string) *PreferenceTable {
	t := &PreferenceTable{groups: make(map[string]types.PreferenceGroup, len(eaeu)+len(cis))}
	for _, c := range cis {
		t.groups[normalizeCode(c)] = types.GroupCIS
	}
	for _, c := range eaeu {
		t.groups[normalizeCode(c)] = types.GroupEAEU
	}
	return t
}

// Group returns the preference group of country. Unknown and empty codes are MFN.
func (t *PreferenceTable) Group(country string) types.PreferenceGroup {
	if t == nil {
		return types.GroupMFN
	}
	if g, ok := t.groups[normalizeCode(country)]; ok {
		return g
	}
	return types.GroupMFN
}

// GetPreferenceGroup implements the preference part of Gateway.
func (t *PreferenceTable) GetPreferenceGroup(_ context.Context, country string) (types.PreferenceGroup, error) {
	return t.Group(country), nil
}
