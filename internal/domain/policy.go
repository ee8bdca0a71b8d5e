package domain

import (
	"encoding/json"
	"fmt"
	"slices"
)

// AnyAddress matches every IPv4 address in a rule or match selector.
const AnyAddress = "0.0.0.0/0"

// ObjectMeta is the metadata block shared by all appliance resources.
type ObjectMeta struct {
	Name            string            `json:"name,omitempty"`
	Tenant          string            `json:"tenant,omitempty"`
	Namespace       string            `json:"namespace,omitempty"`
	GenerationID    string            `json:"generation-id,omitempty"`
	ResourceVersion string            `json:"resource-version,omitempty"`
	UUID            string            `json:"uuid,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
	SelfLink        string            `json:"self-link,omitempty"`
}

// NetworkSecurityPolicy is the appliance's firewall policy resource.
// Only the rule list is edited; it is always written back whole.
type NetworkSecurityPolicy struct {
	Kind       string                    `json:"kind,omitempty"`
	APIVersion string                    `json:"api-version,omitempty"`
	Meta       ObjectMeta                `json:"meta"`
	Spec       NetworkSecurityPolicySpec `json:"spec"`
}

// NetworkSecurityPolicySpec holds the ordered rule list.
type NetworkSecurityPolicySpec struct {
	AttachTenant bool   `json:"attach-tenant"`
	Rules        []Rule `json:"rules"`
}

// NetworkSecurityPolicyList is the response of the policy list endpoint.
type NetworkSecurityPolicyList struct {
	Kind  string                  `json:"kind,omitempty"`
	Items []NetworkSecurityPolicy `json:"items"`
}

// ProtoPort selects traffic by protocol and port range.
type ProtoPort struct {
	Protocol string `json:"protocol"`
	Ports    string `json:"ports"`
}

// Rule is a single entry of a security policy.
// Fields the connector does not model are kept in Extra and written back as-is.
type Rule struct {
	ProtoPorts      []ProtoPort
	Action          string
	FromIPAddresses []string
	ToIPAddresses   []string

	Extra map[string]json.RawMessage
}

var ruleKeys = []string{"proto-ports", "action", "from-ip-addresses", "to-ip-addresses"}

// MarshalJSON merges the modelled fields over the preserved ones.
func (r Rule) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+len(ruleKeys))
	for k, v := range r.Extra {
		out[k] = v
	}
	if r.ProtoPorts != nil {
		out["proto-ports"] = r.ProtoPorts
	}
	out["action"] = r.Action
	if r.FromIPAddresses != nil {
		out["from-ip-addresses"] = r.FromIPAddresses
	}
	if r.ToIPAddresses != nil {
		out["to-ip-addresses"] = r.ToIPAddresses
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a rule object into modelled and preserved fields.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rule Rule
	fields := map[string]any{
		"proto-ports":       &rule.ProtoPorts,
		"action":            &rule.Action,
		"from-ip-addresses": &rule.FromIPAddresses,
		"to-ip-addresses":   &rule.ToIPAddresses,
	}
	for _, key := range ruleKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, fields[key]); err != nil {
			return fmt.Errorf("decoding rule %s: %w", key, err)
		}
		delete(raw, key)
	}
	if len(raw) > 0 {
		rule.Extra = raw
	}

	*r = rule
	return nil
}

// Clone returns a deep copy so edits never alias a fetched policy.
func (r Rule) Clone() Rule {
	c := Rule{
		Action:          r.Action,
		ProtoPorts:      slices.Clone(r.ProtoPorts),
		FromIPAddresses: slices.Clone(r.FromIPAddresses),
		ToIPAddresses:   slices.Clone(r.ToIPAddresses),
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return c
}
