package main

import (
	"strings"
	"testing"
	"time"
)

func TestParseDeduperTTL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr string
	}{
		{name: "empty uses default", raw: "", want: defaultDeduperTTL},
		{name: "valid duration", raw: "30m", want: 30 * time.Minute},
		{name: "not a duration", raw: "soon", wantErr: "invalid DEDUPER_TTL"},
		{name: "zero", raw: "0s", wantErr: `invalid DEDUPER_TTL: "0s"`},
		{name: "negative", raw: "-1h", wantErr: `invalid DEDUPER_TTL: "-1h"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDeduperTTL(tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("parseDeduperTTL(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
