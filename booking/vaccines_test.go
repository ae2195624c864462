package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardiseVaccineName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"flu", "Influenza (INF)", true},
		{"Flu shot", "Influenza (INF)", true},
		{"influenza (inf)", "Influenza (INF)", true},
		{"PCV13", "Pneumococcal Conjugate (PCV13)", true},
		{"hpv vaccine", "Human Papillomavirus (HPV)", true},
		{"Hep B", "Hepatitis B (HepB)", true},
		{"Tdap vaccination", "Tetanus, Diphtheria, Pertussis (Tdap)", true},
		{"chickenpox jab", "Varicella (VAR)", true},
		{"MMR", "Measles, Mumps, Rubella (MMR)", true},
		{"covid", "", false},
		{"", "", false},
		{"vaccine", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := StandardiseVaccineName(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalVaccinesMatchThemselves(t *testing.T) {
	for _, name := range CanonicalVaccines {
		got, ok := StandardiseVaccineName(name)
		assert.True(t, ok, name)
		assert.Equal(t, name, got)
	}
}
