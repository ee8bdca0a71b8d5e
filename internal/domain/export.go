package domain

import "fmt"

// ExportName is the deterministic resource name used for mirror sessions and
// flow export policies created for a host.
func ExportName(hostIP, collectorIP string) string {
	return fmt.Sprintf("ftnt-%s-%s", hostIP, collectorIP)
}

// IPSelector lists addresses in a match rule.
type IPSelector struct {
	IPAddresses []string `json:"ip-addresses"`
}

// AppProtocolSelector lists protocol/port selectors such as "tcp/443" or "any".
type AppProtocolSelector struct {
	ProtoPorts []string `json:"proto-ports"`
}

// MatchRule selects the traffic that is mirrored or exported.
type MatchRule struct {
	Source               IPSelector          `json:"source"`
	Destination          IPSelector          `json:"destination"`
	AppProtocolSelectors AppProtocolSelector `json:"app-protocol-selectors"`
}

// MirrorSession is an ERSPAN traffic mirror resource.
type MirrorSession struct {
	Kind       string            `json:"kind,omitempty"`
	APIVersion string            `json:"api-version,omitempty"`
	Meta       ObjectMeta        `json:"meta"`
	Spec       MirrorSessionSpec `json:"spec"`
}

// MirrorSessionSpec describes where and what to mirror.
type MirrorSessionSpec struct {
	PacketSize    int               `json:"packet-size,omitempty"`
	Collectors    []MirrorCollector `json:"collectors"`
	MatchRules    []MatchRule       `json:"match-rules"`
	PacketFilters []string          `json:"packet-filters"`
	SpanID        int               `json:"span-id"`
}

// MirrorCollector is an ERSPAN destination.
type MirrorCollector struct {
	Type         string       `json:"type"`
	ExportConfig ExportConfig `json:"export-config"`
	StripVLANHdr bool         `json:"strip-vlan-hdr"`
}

// ExportConfig addresses a collector.
type ExportConfig struct {
	Destination string `json:"destination"`
	Gateway     string `json:"gateway,omitempty"`
	Transport   string `json:"transport,omitempty"`
}

// FlowExportPolicy is an IPFIX flow export resource.
type FlowExportPolicy struct {
	Kind       string               `json:"kind,omitempty"`
	APIVersion string               `json:"api-version,omitempty"`
	Meta       ObjectMeta           `json:"meta"`
	Spec       FlowExportPolicySpec `json:"spec"`
}

// FlowExportPolicySpec describes the flows to export and where to send them.
type FlowExportPolicySpec struct {
	VrfName          string         `json:"vrf-name,omitempty"`
	Interval         string         `json:"interval"`
	TemplateInterval string         `json:"template-interval"`
	Format           string         `json:"format"`
	MatchRules       []MatchRule    `json:"match-rules"`
	Exports          []ExportConfig `json:"exports"`
}
