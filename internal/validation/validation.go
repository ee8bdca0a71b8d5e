// Package validation checks operator-supplied addresses, ports and protocol
// selectors before they are sent to the appliance.
package validation

import (
	"fmt"
	"net"
	"strings"
)

// isNum returns true if the byte is an ASCII digit.
func isNum(b byte) bool {
	return b >= '0' && b <= '9'
}

// ValidateHostAddress validates an IP address or CIDR notation.
func ValidateHostAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("address must not be empty")
	}
	// Try parsing as IP
	if ip := net.ParseIP(addr); ip != nil {
		return nil
	}
	// Try parsing as CIDR
	if _, _, err := net.ParseCIDR(addr); err == nil {
		return nil
	}
	return fmt.Errorf("must be a valid IP address or CIDR")
}

// ValidateAddressList validates every entry of an address list.
func ValidateAddressList(field string, addrs []string) ValidationErrors {
	var errs ValidationErrors
	if len(addrs) == 0 {
		errs.Add(field, "", "at least one address is required")
		return errs
	}
	for _, a := range addrs {
		if err := ValidateHostAddress(a); err != nil {
			errs.Add(field, a, err.Error())
		}
	}
	return errs
}

// ValidatePort validates a single port or port range such as 80 or 8000-8080.
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port must not be empty")
	}

	// Check for range (e.g., 80-443)
	if strings.Contains(port, "-") {
		parts := strings.Split(port, "-")
		if len(parts) != 2 {
			return fmt.Errorf("invalid port range: %s", port)
		}
		for _, p := range parts {
			if !isValidPortNumber(p) {
				return fmt.Errorf("invalid port number: %s", p)
			}
		}
		return nil
	}

	if !isValidPortNumber(port) {
		return fmt.Errorf("invalid port number: %s", port)
	}
	return nil
}

// isValidPortNumber checks if a string is a valid port number (1-65535).
func isValidPortNumber(s string) bool {
	if s == "" {
		return false
	}
	num := 0
	for _, b := range []byte(s) {
		if !isNum(b) {
			return false
		}
		num = num*10 + int(b-'0')
		if num > 65535 {
			return false
		}
	}
	return num > 0 && num <= 65535
}

// ValidateTransportProtocol accepts the collector transports the appliance supports.
func ValidateTransportProtocol(proto string) error {
	switch strings.ToLower(proto) {
	case "tcp", "udp":
		return nil
	default:
		return fmt.Errorf("transport protocol must be tcp or udp")
	}
}

// ValidateProtoPort validates an app protocol selector.
// Valid formats: any, icmp, tcp, udp, tcp/443, udp/5000-5010.
func ValidateProtoPort(selector string) error {
	proto, port, hasPort := strings.Cut(strings.ToLower(selector), "/")
	switch proto {
	case "any", "icmp":
		if hasPort {
			return fmt.Errorf("%s does not take a port", proto)
		}
		return nil
	case "tcp", "udp":
		if !hasPort {
			return nil
		}
		return ValidatePort(port)
	case "":
		return fmt.Errorf("protocol must not be empty")
	default:
		return fmt.Errorf("unsupported protocol: %s", proto)
	}
}
