package classify_test

import (
	"testing"

	"github.com/stormline/dispatch/internal/classify"
)

func TestCompliant(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Turn off the water at the mains and call a licensed plumber.", true},
		{"Mould should be removed by a professional within 48 hours.", true},
		{"", true},
		{"This is not medical advice, but take an aspirin.", false},
		{"You could be diagnosed with an infection from the water.", false},
		{"A doctor would prescribe antibiotics for that.", false},
		{"For legal advice about your lease, talk to us.", false},
		{"You should sue the builder.", false},
		{"The landlord accepts full liability here.", false},
		{"You are owed compensation for the damage.", false},
		{"We guarantee the repair will hold.", false},
		{"Your insurance claim will be approved, do not worry.", false},
	}
	for _, tc := range cases {
		if got := classify.Compliant(tc.text); got != tc.want {
			t.Errorf("Compliant(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
