package booking

import (
	"regexp"
	"strings"
)

// CanonicalVaccines lists the official vaccine names in display order.
var CanonicalVaccines = []string{
	"Influenza (INF)",
	"Pneumococcal Conjugate (PCV13)",
	"Human Papillomavirus (HPV)",
	"Tetanus, Diphtheria, Pertussis (Tdap)",
	"Hepatitis B (HepB)",
	"Measles, Mumps, Rubella (MMR)",
	"Varicella (VAR)",
}

// vaccineAliases maps normalised free text to a canonical name.
var vaccineAliases = map[string]string{
	"flu":            "Influenza (INF)",
	"influenza":      "Influenza (INF)",
	"inf":            "Influenza (INF)",
	"pneumococcal":   "Pneumococcal Conjugate (PCV13)",
	"pneumonia":      "Pneumococcal Conjugate (PCV13)",
	"pcv":            "Pneumococcal Conjugate (PCV13)",
	"pcv13":          "Pneumococcal Conjugate (PCV13)",
	"hpv":            "Human Papillomavirus (HPV)",
	"papillomavirus": "Human Papillomavirus (HPV)",
	"tdap":           "Tetanus, Diphtheria, Pertussis (Tdap)",
	"tetanus":        "Tetanus, Diphtheria, Pertussis (Tdap)",
	"diphtheria":     "Tetanus, Diphtheria, Pertussis (Tdap)",
	"pertussis":      "Tetanus, Diphtheria, Pertussis (Tdap)",
	"whooping cough": "Tetanus, Diphtheria, Pertussis (Tdap)",
	"hepatitis b":    "Hepatitis B (HepB)",
	"hep b":          "Hepatitis B (HepB)",
	"hepb":           "Hepatitis B (HepB)",
	"mmr":            "Measles, Mumps, Rubella (MMR)",
	"measles":        "Measles, Mumps, Rubella (MMR)",
	"mumps":          "Measles, Mumps, Rubella (MMR)",
	"rubella":        "Measles, Mumps, Rubella (MMR)",
	"varicella":      "Varicella (VAR)",
	"var":            "Varicella (VAR)",
	"chickenpox":     "Varicella (VAR)",
	"chicken pox":    "Varicella (VAR)",
}

var (
	nonWord    = regexp.MustCompile(`[^a-z0-9]+`)
	vaccineTag = regexp.MustCompile(`\s*(vaccine|vaccination|shot|jab)s?$`)
)

func normaliseVaccine(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(nonWord.ReplaceAllString(s, " "))

	return s
}

// StandardiseVaccineName maps free text to a canonical vaccine name.
// Matching ignores case and punctuation and accepts the full name, the
// abbreviation in parentheses and common aliases.
func StandardiseVaccineName(input string) (string, bool) {
	n := normaliseVaccine(input)
	if n == "" {
		return "", false
	}

	candidates := []string{n, strings.TrimSpace(vaccineTag.ReplaceAllString(n, ""))}

	for _, c := range candidates {
		if c == "" {
			continue
		}

		for _, name := range CanonicalVaccines {
			if c == normaliseVaccine(name) || c == abbreviation(name) {
				return name, true
			}
		}

		if name, ok := vaccineAliases[c]; ok {
			return name, true
		}
	}

	return "", false
}

// abbreviation returns the lower-cased text inside the trailing parentheses.
func abbreviation(name string) string {
	open := strings.LastIndexByte(name, '(')
	closing := strings.LastIndexByte(name, ')')

	if open < 0 || closing < open {
		return ""
	}

	return strings.ToLower(name[open+1 : closing])
}
