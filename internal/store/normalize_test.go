package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bob", "bob"},
		{"Bob@Example.com", "bob@example.com"},
		{"already-lower", "already-lower"},
		{"MiXeD.CaSe+Tag@Example.COM", "mixed.case+tag@example.com"},
		{"", ""},
		{"ÜMLAUT", "ümlaut"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"Bob", "bob@example.com", "MiXeD"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}
