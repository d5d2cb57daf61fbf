// Package service implements the medication-risk analysis pipeline:
// activity scoring, interaction scanning, risk classification and
// narrative generation.
package service

import (
	"fmt"

	"github.com/pgx-med-guard-server/internal/domain"
)

// scoreModifier is one gated multiplicative adjustment to the activity
// score. Multiplication commutes, so order only affects floating-point
// rounding; the table order is fixed regardless.
type scoreModifier struct {
	label      string
	multiplier float64
	applies    func(profile *domain.GeneticProfile, demo domain.Demographics) bool
}

func genotypeIs(gene, genotype string) func(*domain.GeneticProfile, domain.Demographics) bool {
	return func(p *domain.GeneticProfile, _ domain.Demographics) bool {
		return p.Genotype(gene) == genotype
	}
}

// scoreModifiers is the fixed rule table. Unrecognized genotype values
// match nothing and fall through; absent demographic fields are neutral.
var scoreModifiers = []scoreModifier{
	{"CYP2D6 TT poor metabolizer", 0.5, genotypeIs(domain.GeneCYP2D6, "TT")},
	{"CYP2D6 CT intermediate metabolizer", 0.75, genotypeIs(domain.GeneCYP2D6, "CT")},
	{"CYP2D6 CC normal metabolizer", 1.0, genotypeIs(domain.GeneCYP2D6, "CC")},
	{"CYP2C19 AA poor metabolizer", 0.5, genotypeIs(domain.GeneCYP2C19, "AA")},
	{"CYP2C19 AG intermediate metabolizer", 0.75, genotypeIs(domain.GeneCYP2C19, "AG")},
	{"CYP2C19 GG normal metabolizer", 1.0, genotypeIs(domain.GeneCYP2C19, "GG")},
	{"age over 65", 0.8, func(_ *domain.GeneticProfile, d domain.Demographics) bool {
		return d.Age != nil && *d.Age > 65
	}},
	{"age under 18", 1.1, func(_ *domain.GeneticProfile, d domain.Demographics) bool {
		return d.Age != nil && *d.Age < 18
	}},
	{"female sex", 0.95, func(_ *domain.GeneticProfile, d domain.Demographics) bool {
		return d.Sex == "Female"
	}},
	{"current smoker", 1.2, func(_ *domain.GeneticProfile, d domain.Demographics) bool {
		return d.Smoking == "Current smoker"
	}},
	{"heavy alcohol use", 0.85, func(_ *domain.GeneticProfile, d domain.Demographics) bool {
		return d.AlcoholUse == "Heavy"
	}},
}

// ComputeActivityScore derives the metabolic-activity multiplier from
// genotype calls and demographics. It is total: missing or unrecognized
// inputs are neutral and the result is always strictly positive.
func ComputeActivityScore(profile *domain.GeneticProfile, demo domain.Demographics) domain.ActivityScore {
	score := domain.ActivityScore{Value: 1.0}

	for _, mod := range scoreModifiers {
		if !mod.applies(profile, demo) {
			continue
		}
		score.Value *= mod.multiplier
		score.Modifiers = append(score.Modifiers,
			fmt.Sprintf("%s (x%.2f)", mod.label, mod.multiplier))
	}

	return score
}
