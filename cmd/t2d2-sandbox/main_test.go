package main

import (
	"net/http"
	"reflect"
	"testing"
)

func TestParseFailConfig(t *testing.T) {
	tests := []struct {
		raw     string
		want    failConfig
		wantErr bool
	}{
		{raw: "", want: failConfig{}},
		{raw: "rate=0.25", want: failConfig{rate: 0.25, code: http.StatusInternalServerError}},
		{raw: " rate = 0.5 , code = 503 ", want: failConfig{rate: 0.5, code: 503}},
		{raw: "code=429,", want: failConfig{code: 429}},
		{raw: "rate", wantErr: true},
		{raw: "rate=abc", wantErr: true},
		{raw: "rate=1.5", wantErr: true},
		{raw: "code=x", wantErr: true},
		{raw: "burst=3", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseFailConfig(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseFailConfig(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseFailConfig(%q): %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFailConfig(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestExports(t *testing.T) {
	got := exports(":8787", ":8788", "/api", "sandbox-key")
	want := []string{
		"export T2D2_API_URL=http://localhost:8787/api/",
		"export T2D2_API_KEY=sandbox-key",
		"export T2D2_S3_ENDPOINT=http://localhost:8788",
		"export AWS_ACCESS_KEY_ID=t2d2-sandbox",
		"export AWS_SECRET_ACCESS_KEY=t2d2-sandbox",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("exports = %v, want %v", got, want)
	}
	if got := exports("0.0.0.0:9000", "0.0.0.0:9001", "", "k")[0]; got != "export T2D2_API_URL=http://0.0.0.0:9000/" {
		t.Fatalf("unexpected export %q", got)
	}
	if got := hostPort("127.0.0.1:8788"); got != "127.0.0.1:8788" {
		t.Fatalf("hostPort = %q", got)
	}
}
