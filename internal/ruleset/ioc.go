package ruleset

import (
	"fmt"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// AddIOC returns rules with the IOC pair at the head, holding the addresses
// of the existing pair followed by addrs. Duplicates keep their first
// position and only the newest MaxIOCAddresses survive.
func AddIOC(rules []domain.Rule, addrs []string) ([]domain.Rule, error) {
	added := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != "" && a != SentinelAddress {
			added = append(added, a)
		}
	}
	if len(added) == 0 {
		return nil, fmt.Errorf("%w: at least one IOC address is required", domain.ErrConfiguration)
	}

	i, err := findPair(rules, IsIOCRule)
	if err != nil {
		return nil, err
	}

	var existing []string
	if i >= 0 {
		existing = iocAddresses(rules[i])
	}
	merged := MergeAddresses(existing, added, MaxIOCAddresses)
	return prependPair(withoutPair(rules, i), append(merged, SentinelAddress)), nil
}

// RemoveIOC returns rules without the IOC pair.
func RemoveIOC(rules []domain.Rule) ([]domain.Rule, error) {
	i, err := findPair(rules, IsIOCRule)
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, domain.ErrNoMatchingRules
	}
	return withoutPair(rules, i), nil
}

// MergeAddresses appends added to existing, dropping repeats and the
// sentinel, and keeps at most the last limit addresses.
func MergeAddresses(existing, added []string, limit int) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, a := range list {
			if a == SentinelAddress || seen[a] {
				continue
			}
			seen[a] = true
			merged = append(merged, a)
		}
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged
}

// iocAddresses returns the blocked addresses of one IOC rule.
func iocAddresses(r domain.Rule) []string {
	list := r.ToIPAddresses
	if len(r.FromIPAddresses) > 0 && r.FromIPAddresses[0] != domain.AnyAddress {
		list = r.FromIPAddresses
	}
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a != SentinelAddress {
			out = append(out, a)
		}
	}
	return out
}
