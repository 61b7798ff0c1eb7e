package patientid_test

import (
	"errors"
	"testing"

	"patientboard/internal/patientid"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name string
		want int64
	}{
		{"1234", 1234},
		{" 1234 ", 1234},
		{"1234-Maria Silva", 1234},
		{"77 - Joao", 77},
		{"9-", 9},
	}
	for _, tc := range cases {
		got, err := patientid.Parse(tc.name)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, name := range []string{"", "Maria", "abc-123", "0", "-5", "12a-Joao", "OBJETIVA"} {
		if _, err := patientid.Parse(name); !errors.Is(err, patientid.ErrInvalidID) {
			t.Fatalf("Parse(%q): expected ErrInvalidID, got %v", name, err)
		}
	}
}
