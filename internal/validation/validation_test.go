package validation

import (
	"errors"
	"testing"

	"github.com/bcnelson/psm-connector/internal/domain"
)

func TestValidateHostAddress(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"ipv4", "10.0.0.5", false},
		{"ipv6", "fd00::5", false},
		{"cidr", "10.0.0.0/24", false},
		{"any", "0.0.0.0/0", false},
		{"empty", "", true},
		{"hostname", "server.example.com", true},
		{"bad octet", "10.0.0.256", true},
		{"bad mask", "10.0.0.0/33", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHostAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAddressList(t *testing.T) {
	errs := ValidateAddressList("ioc_ip", []string{"1.2.3.4", "nope", "5.6.7.8", "also-nope"})
	if len(errs) != 2 {
		t.Fatalf("Expected 2 errors, got %d: %v", len(errs), errs)
	}
	if errs[0].Value != "nope" || errs[1].Value != "also-nope" {
		t.Errorf("Unexpected error values: %v", errs)
	}
	if !errors.Is(errs.Err(), domain.ErrConfiguration) {
		t.Errorf("Expected validation errors to classify as configuration errors")
	}

	if errs := ValidateAddressList("ioc_ip", nil); !errs.HasErrors() {
		t.Error("Expected empty list to fail")
	}
	if err := ValidateAddressList("ioc_ip", []string{"1.2.3.4"}).Err(); err != nil {
		t.Errorf("Expected valid list, got %v", err)
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		port    string
		wantErr bool
	}{
		{"2055", false},
		{"1", false},
		{"65535", false},
		{"8000-8080", false},
		{"", true},
		{"0", true},
		{"65536", true},
		{"80-", true},
		{"1-2-3", true},
		{"http", true},
	}

	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			err := ValidatePort(tt.port)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePort(%q) error = %v, wantErr %v", tt.port, err, tt.wantErr)
			}
		})
	}
}

func TestValidateProtoPort(t *testing.T) {
	tests := []struct {
		selector string
		wantErr  bool
	}{
		{"any", false},
		{"icmp", false},
		{"tcp", false},
		{"TCP/443", false},
		{"udp/5000-5010", false},
		{"any/80", true},
		{"tcp/0", true},
		{"sctp/80", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			err := ValidateProtoPort(tt.selector)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProtoPort(%q) error = %v, wantErr %v", tt.selector, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTransportProtocol(t *testing.T) {
	for _, p := range []string{"udp", "TCP"} {
		if err := ValidateTransportProtocol(p); err != nil {
			t.Errorf("Expected %s to be valid, got %v", p, err)
		}
	}
	if err := ValidateTransportProtocol("icmp"); err == nil {
		t.Error("Expected icmp to be rejected")
	}
}
