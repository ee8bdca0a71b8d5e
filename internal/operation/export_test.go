package operation_test

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/operation"
	"github.com/bcnelson/psm-connector/internal/validation"
)

func TestBuildMirrorSession(t *testing.T) {
	p := operation.Params{
		"host_source_ip":         "10.0.0.5",
		"erspan_id":              float64(12),
		"erspan_type":            "erspan_type_3",
		"erspan_collector_ip":    "192.168.1.10",
		"erspan_collector_gw_ip": "192.168.1.1",
		"erspan_match_dest_ip":   "10.0.1.0/24, 10.0.2.7",
		"erspan_match_protocols": []any{"tcp/443", "udp"},
		"packet_size":            "256",
		"strip_vlan":             true,
	}

	session, err := operation.BuildMirrorSession("default", p)
	if err != nil {
		t.Fatal(err)
	}

	if session.Meta.Name != "ftnt-10.0.0.5-192.168.1.10" {
		t.Errorf("Unexpected name %s", session.Meta.Name)
	}
	if session.Meta.Tenant != "default" {
		t.Errorf("Expected tenant default, got %s", session.Meta.Tenant)
	}
	spec := session.Spec
	if spec.SpanID != 12 || spec.PacketSize != 256 {
		t.Errorf("Unexpected span id %d or packet size %d", spec.SpanID, spec.PacketSize)
	}
	if len(spec.Collectors) != 1 || spec.Collectors[0].ExportConfig.Gateway != "192.168.1.1" || !spec.Collectors[0].StripVLANHdr {
		t.Errorf("Unexpected collectors: %+v", spec.Collectors)
	}
	if !slices.Equal(spec.PacketFilters, []string{"all-packets"}) {
		t.Errorf("Unexpected packet filters: %v", spec.PacketFilters)
	}
	if len(spec.MatchRules) != 2 {
		t.Fatalf("Expected 2 match rules, got %d", len(spec.MatchRules))
	}
	out, back := spec.MatchRules[0], spec.MatchRules[1]
	if !slices.Equal(out.Source.IPAddresses, []string{"10.0.0.5"}) || !slices.Equal(out.Destination.IPAddresses, []string{"10.0.1.0/24", "10.0.2.7"}) {
		t.Errorf("Unexpected outbound match: %+v", out)
	}
	if !slices.Equal(back.Source.IPAddresses, out.Destination.IPAddresses) || !slices.Equal(back.Destination.IPAddresses, out.Source.IPAddresses) {
		t.Errorf("Expected the second match to be the reverse, got %+v", back)
	}
	if !slices.Equal(out.AppProtocolSelectors.ProtoPorts, []string{"tcp/443", "udp"}) {
		t.Errorf("Unexpected protocols: %v", out.AppProtocolSelectors.ProtoPorts)
	}
}

func TestBuildMirrorSessionDefaults(t *testing.T) {
	session, err := operation.BuildMirrorSession("default", operation.Params{
		"host_source_ip":      "10.0.0.5",
		"erspan_id":           "3",
		"erspan_type":         "erspan_type_2",
		"erspan_collector_ip": "192.168.1.10",
	})
	if err != nil {
		t.Fatal(err)
	}
	match := session.Spec.MatchRules[0]
	if !slices.Equal(match.Destination.IPAddresses, []string{domain.AnyAddress}) {
		t.Errorf("Expected any destination, got %v", match.Destination.IPAddresses)
	}
	if !slices.Equal(match.AppProtocolSelectors.ProtoPorts, []string{"any"}) {
		t.Errorf("Expected any protocol, got %v", match.AppProtocolSelectors.ProtoPorts)
	}

	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatal(err)
	}
	var obj map[string]map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		t.Fatal(err)
	}
	if _, ok := obj["spec"]["packet-size"]; ok {
		t.Error("Expected packet-size to be omitted when not given")
	}
}

func TestBuildMirrorSessionValidation(t *testing.T) {
	_, err := operation.BuildMirrorSession("default", operation.Params{
		"host_source_ip":         "not-an-ip",
		"erspan_match_protocols": "smtp",
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("Expected ErrConfiguration, got %v", err)
	}

	var errs validation.ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("Expected ValidationErrors, got %T", err)
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"host_source_ip", "erspan_collector_ip", "erspan_type", "erspan_id", "erspan_match_protocols"} {
		if !fields[f] {
			t.Errorf("Expected an error for %s, got %v", f, errs)
		}
	}
}

func TestBuildFlowExportPolicy(t *testing.T) {
	policy, err := operation.BuildFlowExportPolicy("default", operation.Params{
		"host_source_ip":           "10.0.0.5",
		"interval":                 "10s",
		"template_interval":        "5m",
		"ipfix_collector_ip":       "192.168.1.20",
		"ipfix_collector_protocol": "UDP",
		"ipfix_collector_port":     float64(4739),
	})
	if err != nil {
		t.Fatal(err)
	}

	if policy.Meta.Name != "ftnt-10.0.0.5-192.168.1.20" {
		t.Errorf("Unexpected name %s", policy.Meta.Name)
	}
	if policy.Spec.Format != "ipfix" || policy.Spec.Interval != "10s" || policy.Spec.TemplateInterval != "5m" {
		t.Errorf("Unexpected spec: %+v", policy.Spec)
	}
	if len(policy.Spec.Exports) != 1 || policy.Spec.Exports[0].Transport != "udp/4739" {
		t.Errorf("Unexpected exports: %+v", policy.Spec.Exports)
	}
	match := policy.Spec.MatchRules
	if len(match) != 2 || !slices.Equal(match[0].Destination.IPAddresses, []string{domain.AnyAddress}) || !slices.Equal(match[1].Destination.IPAddresses, []string{"10.0.0.5"}) {
		t.Errorf("Unexpected match rules: %+v", match)
	}
}

func TestBuildFlowExportPolicyValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"bad protocol", "ipfix_collector_protocol", "icmp"},
		{"port range", "ipfix_collector_port", "4000-4010"},
		{"port too large", "ipfix_collector_port", "70000"},
		{"missing interval", "interval", ""},
		{"bad gateway", "ipfix_collector_gw_ip", "gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := operation.Params{
				"host_source_ip":           "10.0.0.5",
				"interval":                 "10s",
				"template_interval":        "5m",
				"ipfix_collector_ip":       "192.168.1.20",
				"ipfix_collector_protocol": "udp",
				"ipfix_collector_port":     "4739",
			}
			p[tt.key] = tt.value
			if _, err := operation.BuildFlowExportPolicy("default", p); !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
}
