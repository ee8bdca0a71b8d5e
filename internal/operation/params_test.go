package operation_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/bcnelson/psm-connector/internal/domain"
	"github.com/bcnelson/psm-connector/internal/operation"
)

func TestParamsList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"comma separated", `{"v":"1.2.3.4, 5.6.7.8"}`, []string{"1.2.3.4", "5.6.7.8"}},
		{"blank elements dropped", `{"v":" 1.2.3.4,, ,5.6.7.8,"}`, []string{"1.2.3.4", "5.6.7.8"}},
		{"json list", `{"v":["1.2.3.4"," 5.6.7.8 ",""]}`, []string{"1.2.3.4", "5.6.7.8"}},
		{"single value", `{"v":"1.2.3.4"}`, []string{"1.2.3.4"}},
		{"number", `{"v":42}`, []string{"42"}},
		{"empty string", `{"v":""}`, []string{}},
		{"missing", `{}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := operation.DecodeParams([]byte(tt.input))
			if err != nil {
				t.Fatal(err)
			}
			got := p.List("v")
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParamsScalars(t *testing.T) {
	p, err := operation.DecodeParams([]byte(`{"id":7,"size":"128","strip":"true","flag":false,"name":"  eth0 ","frac":1.5,"bad":"x"}`))
	if err != nil {
		t.Fatal(err)
	}

	if got := p.String("name"); got != "eth0" {
		t.Errorf("Expected trimmed string, got %q", got)
	}
	if got := p.String("id"); got != "7" {
		t.Errorf("Expected number formatted as 7, got %q", got)
	}
	if n, ok, err := p.Int("id"); err != nil || !ok || n != 7 {
		t.Errorf("Expected 7, got %d %v %v", n, ok, err)
	}
	if n, ok, err := p.Int("size"); err != nil || !ok || n != 128 {
		t.Errorf("Expected 128 from a string, got %d %v %v", n, ok, err)
	}
	if _, ok, err := p.Int("missing"); err != nil || ok {
		t.Errorf("Expected missing int to be absent, got %v %v", ok, err)
	}
	if _, _, err := p.Int("frac"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected a configuration error for 1.5, got %v", err)
	}
	if _, _, err := p.Int("bad"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected a configuration error for x, got %v", err)
	}
	if b, err := p.Bool("strip"); err != nil || !b {
		t.Errorf("Expected true, got %v %v", b, err)
	}
	if b, err := p.Bool("flag"); err != nil || b {
		t.Errorf("Expected false, got %v %v", b, err)
	}
	if _, err := p.Bool("bad"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected a configuration error, got %v", err)
	}
}

func TestRequireString(t *testing.T) {
	p := operation.Params{"host_source_ip": "   "}
	if _, err := p.RequireString("host_source_ip"); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("Expected ErrConfiguration for a blank value, got %v", err)
	}
}

func TestDecodeParams(t *testing.T) {
	p, err := operation.DecodeParams(nil)
	if err != nil || len(p) != 0 {
		t.Errorf("Expected empty params, got %v %v", p, err)
	}
	if _, err := operation.DecodeParams([]byte(`[1,2]`)); err == nil {
		t.Error("Expected an error for a non-object")
	}
}
