// Package ruleset edits the rule list of a network security policy.
//
// The connector owns two kinds of rule pairs and finds them again by shape
// alone: isolation pairs (deny any traffic to and from one host) and the IOC
// pair (deny any traffic to and from a list of addresses that ends with
// SentinelAddress). A pair is always an inbound rule immediately followed by
// its outbound counterpart, kept at the head of the list.
//
// Every function here is pure: the input slice and its rules are never
// modified.
package ruleset

import (
	"fmt"
	"slices"

	"github.com/bcnelson/psm-connector/internal/domain"
)

// SentinelAddress marks the address lists of IOC rules. It is taken from
// TEST-NET-1 so it never matches real traffic.
const SentinelAddress = "192.0.2.254"

// MaxIOCAddresses is the most addresses an IOC rule holds, sentinel excluded.
const MaxIOCAddresses = 900

// ActionDeny is the action of every rule the connector creates.
const ActionDeny = "deny"

// anyProtoPort matches every protocol and port.
var anyProtoPort = domain.ProtoPort{Protocol: "any", Ports: ""}

// denyAny reports whether the rule denies all protocols and ports.
func denyAny(r domain.Rule) bool {
	return r.Action == ActionDeny && len(r.ProtoPorts) > 0 && r.ProtoPorts[0] == anyProtoPort
}

// IsIsolationRule reports whether r is one half of the isolation pair for host.
func IsIsolationRule(r domain.Rule, host string) bool {
	if !denyAny(r) {
		return false
	}
	only := []string{host}
	anyAddr := []string{domain.AnyAddress}
	return (slices.Equal(r.FromIPAddresses, only) && slices.Equal(r.ToIPAddresses, anyAddr)) ||
		(slices.Equal(r.FromIPAddresses, anyAddr) && slices.Equal(r.ToIPAddresses, only))
}

// IsIOCRule reports whether r carries the sentinel address.
func IsIOCRule(r domain.Rule) bool {
	return slices.Contains(r.FromIPAddresses, SentinelAddress) ||
		slices.Contains(r.ToIPAddresses, SentinelAddress)
}

// findPair returns the index of the first rule of the matching pair, or -1
// when nothing matches. Anything other than zero or two adjacent matches is a
// rule-state error.
func findPair(rules []domain.Rule, match func(domain.Rule) bool) (int, error) {
	var idx []int
	for i, r := range rules {
		if match(r) {
			idx = append(idx, i)
		}
	}

	switch len(idx) {
	case 0:
		return -1, nil
	case 1:
		return -1, fmt.Errorf("%w: expected two rules, but found one at index %d", domain.ErrRuleState, idx[0])
	case 2:
		if idx[1] != idx[0]+1 {
			return -1, fmt.Errorf("%w: rules are not contiguous (indices %d and %d)", domain.ErrRuleState, idx[0], idx[1])
		}
		return idx[0], nil
	default:
		return -1, fmt.Errorf("%w: expected two rules, but found %d", domain.ErrRuleState, len(idx))
	}
}

// withoutPair returns a copy of rules with the pair starting at i removed.
// A negative i copies the rules unchanged.
func withoutPair(rules []domain.Rule, i int) []domain.Rule {
	out := make([]domain.Rule, 0, len(rules))
	for j, r := range rules {
		if i >= 0 && (j == i || j == i+1) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// denyPair builds the inbound and outbound deny rules for addrs.
func denyPair(addrs []string) (inbound, outbound domain.Rule) {
	inbound = domain.Rule{
		ProtoPorts:      []domain.ProtoPort{anyProtoPort},
		Action:          ActionDeny,
		FromIPAddresses: []string{domain.AnyAddress},
		ToIPAddresses:   slices.Clone(addrs),
	}
	outbound = domain.Rule{
		ProtoPorts:      []domain.ProtoPort{anyProtoPort},
		Action:          ActionDeny,
		FromIPAddresses: slices.Clone(addrs),
		ToIPAddresses:   []string{domain.AnyAddress},
	}
	return inbound, outbound
}

// prependPair puts the pair for addrs at positions 0 (inbound) and 1 (outbound).
func prependPair(rules []domain.Rule, addrs []string) []domain.Rule {
	inbound, outbound := denyPair(addrs)
	out := make([]domain.Rule, 0, len(rules)+2)
	out = append(out, inbound, outbound)
	return append(out, rules...)
}
