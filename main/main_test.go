package main

import (
	"reflect"
	"testing"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"program only", []string{"kiana"}, []string{"kiana"}},
		{
			"single dash long flags",
			[]string{"kiana", "-mode", "region", "-region=0,0,200,100", "-headless"},
			[]string{"kiana", "--mode", "region", "--region=0,0,200,100", "--headless"},
		},
		{
			"double dash untouched",
			[]string{"kiana", "--from", "de", "--to=en"},
			[]string{"kiana", "--from", "de", "--to=en"},
		},
		{
			"unknown and after terminator untouched",
			[]string{"kiana", "-x", "--", "-mode"},
			[]string{"kiana", "-x", "--", "-mode"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeLegacyArgs(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeLegacyArgs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd(&appOptions{})
	for _, name := range []string{"mode", "region", "interval", "from", "to", "backend", "log-level", "api-addr", "config", "api-key-path", "headless"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}

func TestRootCmdRejectsPositionalArgs(t *testing.T) {
	if err := runWithArgs([]string{"kiana", "extra"}); err == nil {
		t.Fatal("expected error for positional argument")
	}
}

func TestRootCmdParsesFlags(t *testing.T) {
	opts := &appOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--headless", "--config", "/tmp/kiana.env", "--interval", "2.5"}); err != nil {
		t.Fatal(err)
	}
	if !opts.headless || opts.envFile != "/tmp/kiana.env" {
		t.Errorf("opts = %+v", *opts)
	}
	if f := cmd.Flags().Lookup("interval"); !f.Changed || f.Value.String() != "2.5" {
		t.Errorf("interval flag = %v (changed=%v)", f.Value, f.Changed)
	}
}
