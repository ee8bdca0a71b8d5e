package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/validation"
)

const (
	paramERSPANID          = "erspan_id"
	paramERSPANType        = "erspan_type"
	paramERSPANCollector   = "erspan_collector_ip"
	paramERSPANGateway     = "erspan_collector_gw_ip"
	paramERSPANDestIPs     = "erspan_match_dest_ip"
	paramERSPANProtocols   = "erspan_match_protocols"
	paramPacketSize        = "packet_size"
	paramStripVLAN         = "strip_vlan"
	paramInterval          = "interval"
	paramTemplateInterval  = "template_interval"
	paramIPFIXCollector    = "ipfix_collector_ip"
	paramIPFIXGateway      = "ipfix_collector_gw_ip"
	paramIPFIXProtocol     = "ipfix_collector_protocol"
	paramIPFIXPort         = "ipfix_collector_port"
	mirrorAllPacketsFilter = "all-packets"
	ipfixFormat            = "ipfix"
)

// requireAddress returns a required parameter that must be an IP or CIDR.
func requireAddress(p Params, key string, errs *validation.ValidationErrors) string {
	v := p.String(key)
	if v == "" {
		errs.Add(key, "", "field is required but blank")
		return ""
	}
	if err := validation.ValidateHostAddress(v); err != nil {
		errs.Add(key, v, err.Error())
	}
	return v
}

// addError collects a parameter error returned by Params.
func addError(errs *validation.ValidationErrors, err error) {
	var ve *validation.ValidationError
	if errors.As(err, &ve) {
		*errs = append(*errs, ve)
		return
	}
	errs.Add("params", "", err.Error())
}

// optionalAddress returns an optional parameter that must be an IP when set.
func optionalAddress(p Params, key string, errs *validation.ValidationErrors) string {
	v := p.String(key)
	if v != "" {
		if err := validation.ValidateHostAddress(v); err != nil {
			errs.Add(key, v, err.Error())
		}
	}
	return v
}

// BuildMirrorSession builds the ERSPAN mirror session body from params.
// Traffic is matched in both directions between the host and the
// destinations, which default to any address on any protocol.
func BuildMirrorSession(tenant string, p Params) (*domain.MirrorSession, error) {
	var errs validation.ValidationErrors

	host := requireAddress(p, paramHostIP, &errs)
	collector := requireAddress(p, paramERSPANCollector, &errs)
	gateway := optionalAddress(p, paramERSPANGateway, &errs)

	erspanType := p.String(paramERSPANType)
	if erspanType == "" {
		errs.Add(paramERSPANType, "", "field is required but blank")
	}
	spanID, ok, err := p.Int(paramERSPANID)
	switch {
	case err != nil:
		addError(&errs, err)
	case !ok:
		errs.Add(paramERSPANID, "", "field is required but blank")
	}
	packetSize, _, err := p.Int(paramPacketSize)
	if err != nil {
		addError(&errs, err)
	}
	stripVLAN, err := p.Bool(paramStripVLAN)
	if err != nil {
		addError(&errs, err)
	}

	dests := p.List(paramERSPANDestIPs)
	if len(dests) == 0 {
		dests = []string{domain.AnyAddress}
	} else {
		errs = append(errs, validation.ValidateAddressList(paramERSPANDestIPs, dests)...)
	}
	protocols := p.List(paramERSPANProtocols)
	if len(protocols) == 0 {
		protocols = []string{"any"}
	}
	for _, proto := range protocols {
		if err := validation.ValidateProtoPort(proto); err != nil {
			errs.Add(paramERSPANProtocols, proto, err.Error())
		}
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &domain.MirrorSession{
		Meta: domain.ObjectMeta{Name: domain.ExportName(host, collector), Tenant: tenant},
		Spec: domain.MirrorSessionSpec{
			PacketSize: packetSize,
			Collectors: []domain.MirrorCollector{{
				Type:         erspanType,
				ExportConfig: domain.ExportConfig{Destination: collector, Gateway: gateway},
				StripVLANHdr: stripVLAN,
			}},
			MatchRules:    bidirectional([]string{host}, dests, protocols),
			PacketFilters: []string{mirrorAllPacketsFilter},
			SpanID:        spanID,
		},
	}, nil
}

// BuildFlowExportPolicy builds the IPFIX flow export body from params.
// All flows to and from the host are exported.
func BuildFlowExportPolicy(tenant string, p Params) (*domain.FlowExportPolicy, error) {
	var errs validation.ValidationErrors

	host := requireAddress(p, paramHostIP, &errs)
	collector := requireAddress(p, paramIPFIXCollector, &errs)
	gateway := optionalAddress(p, paramIPFIXGateway, &errs)

	interval := p.String(paramInterval)
	if interval == "" {
		errs.Add(paramInterval, "", "field is required but blank")
	}
	templateInterval := p.String(paramTemplateInterval)
	if templateInterval == "" {
		errs.Add(paramTemplateInterval, "", "field is required but blank")
	}

	proto := strings.ToLower(p.String(paramIPFIXProtocol))
	if proto == "" {
		errs.Add(paramIPFIXProtocol, "", "field is required but blank")
	} else if err := validation.ValidateTransportProtocol(proto); err != nil {
		errs.Add(paramIPFIXProtocol, proto, err.Error())
	}
	port := p.String(paramIPFIXPort)
	if port == "" {
		errs.Add(paramIPFIXPort, "", "field is required but blank")
	} else if _, err := strconv.Atoi(port); err != nil || validation.ValidatePort(port) != nil {
		errs.Add(paramIPFIXPort, port, "must be a port number between 1 and 65535")
	}

	if err := errs.Err(); err != nil {
		return nil, err
	}

	return &domain.FlowExportPolicy{
		Meta: domain.ObjectMeta{Name: domain.ExportName(host, collector), Tenant: tenant},
		Spec: domain.FlowExportPolicySpec{
			Interval:         interval,
			TemplateInterval: templateInterval,
			Format:           ipfixFormat,
			MatchRules:       bidirectional([]string{host}, []string{domain.AnyAddress}, []string{"any"}),
			Exports: []domain.ExportConfig{{
				Destination: collector,
				Gateway:     gateway,
				Transport:   fmt.Sprintf("%s/%s", proto, port),
			}},
		},
	}, nil
}

// bidirectional matches traffic from a to b and from b to a.
func bidirectional(a, b, protocols []string) []domain.MatchRule {
	return []domain.MatchRule{
		{
			Source:               domain.IPSelector{IPAddresses: a},
			Destination:          domain.IPSelector{IPAddresses: b},
			AppProtocolSelectors: domain.AppProtocolSelector{ProtoPorts: protocols},
		},
		{
			Source:               domain.IPSelector{IPAddresses: b},
			Destination:          domain.IPSelector{IPAddresses: a},
			AppProtocolSelectors: domain.AppProtocolSelector{ProtoPorts: protocols},
		},
	}
}

// exportName returns the name of the export object for host and the
// collector parameter key.
func exportName(p Params, collectorKey string) (string, error) {
	var errs validation.ValidationErrors
	host := requireAddress(p, paramHostIP, &errs)
	collector := requireAddress(p, collectorKey, &errs)
	if err := errs.Err(); err != nil {
		return "", err
	}
	return domain.ExportName(host, collector), nil
}

func enableMirrorExport(ctx context.Context, env *Env, p Params) (any, error) {
	session, err := BuildMirrorSession(env.Client.Tenant(), p)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Creating mirror session", slog.String("name", session.Meta.Name))
	return env.Client.CreateMirrorSession(ctx, session)
}

func deleteMirrorExport(ctx context.Context, env *Env, p Params) (any, error) {
	name, err := exportName(p, paramERSPANCollector)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Deleting mirror session", slog.String("name", name))
	return env.Client.DeleteMirrorSession(ctx, name)
}

func enableIPFIXExport(ctx context.Context, env *Env, p Params) (any, error) {
	policy, err := BuildFlowExportPolicy(env.Client.Tenant(), p)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Creating flow export policy", slog.String("name", policy.Meta.Name))
	return env.Client.CreateFlowExportPolicy(ctx, policy)
}

func deleteIPFIXExport(ctx context.Context, env *Env, p Params) (any, error) {
	name, err := exportName(p, paramIPFIXCollector)
	if err != nil {
		return nil, err
	}
	env.Logger.InfoContext(ctx, "Deleting flow export policy", slog.String("name", name))
	return env.Client.DeleteFlowExportPolicy(ctx, name)
}
