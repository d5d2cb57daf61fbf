package service

import (
	"fmt"
	"strings"

	"github.com/pgx-med-guard-server/internal/domain"
)

// ddiRule maps a trigger-drug substring to interacting-drug substrings
// sharing one risk phrase.
type ddiRule struct {
	trigger     string
	interactors []string
	risk        string
}

// ddiRules is the static drug-drug interaction table. Matching is
// case-insensitive substring containment, checked in both directions for
// every unordered medication pair; duplicate findings are intentional.
var ddiRules = []ddiRule{
	{"warfarin", []string{"aspirin", "ibuprofen", "naproxen"}, "Increased bleeding risk"},
	{"clopidogrel", []string{"omeprazole", "esomeprazole"}, "Reduced antiplatelet effect"},
	{"sildenafil", []string{"nitroglycerin", "isosorbide"}, "Severe hypotension risk"},
	{"tramadol", []string{"sertraline", "fluoxetine", "paroxetine"}, "Serotonin syndrome risk"},
	{"simvastatin", []string{"clarithromycin", "erythromycin"}, "Increased myopathy risk"},
	{"methotrexate", []string{"ibuprofen", "naproxen", "aspirin"}, "Increased methotrexate toxicity"},
}

// gdiRule is one genotype-gated drug check.
type gdiRule struct {
	gene     string
	genotype string
	// negate inverts the genotype condition (matches any call other
	// than genotype, including unknown).
	negate bool
	drugs  []string
	effect string
}

// gdiRules is the static gene-drug interaction table. Conditions are
// independent: one medication may produce several findings.
var gdiRules = []gdiRule{
	{domain.GeneCYP2D6, "TT", false, []string{"codeine", "tramadol"}, "reduced effectiveness"},
	{domain.GeneCYP2D6, "TT", false, []string{"metoprolol", "carvedilol"}, "increased side-effect risk"},
	{domain.GeneCYP2C19, "AA", false, []string{"clopidogrel"}, "reduced effectiveness"},
	{domain.GeneCYP2C19, "AA", false, []string{"omeprazole", "esomeprazole"}, "may need dose adjustment"},
	{domain.GeneCYP2C9, "CC", true, []string{"warfarin"}, "requires careful dose monitoring"},
}

// FindDrugDrugInteractions scans every unordered pair of medications
// against the static trigger/interactor table. One directional match
// appends one finding, so a single pair can yield up to two findings per
// rule; nothing is deduplicated.
func FindDrugDrugInteractions(meds []domain.Medication) []domain.InteractionFinding {
	findings := make([]domain.InteractionFinding, 0)

	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			a := strings.ToLower(meds[i].Name)
			b := strings.ToLower(meds[j].Name)

			for _, rule := range ddiRules {
				for _, interactor := range rule.interactors {
					if strings.Contains(a, rule.trigger) && strings.Contains(b, interactor) {
						findings = append(findings, domain.InteractionFinding{
							Category: domain.DrugDrugFinding,
							Description: fmt.Sprintf("%s + %s: %s",
								meds[i].Name, meds[j].Name, rule.risk),
						})
					}
					if strings.Contains(b, rule.trigger) && strings.Contains(a, interactor) {
						findings = append(findings, domain.InteractionFinding{
							Category: domain.DrugDrugFinding,
							Description: fmt.Sprintf("%s + %s: %s",
								meds[j].Name, meds[i].Name, rule.risk),
						})
					}
				}
			}
		}
	}

	return findings
}

// FindGeneDrugInteractions checks each medication against the
// genotype-gated drug lists. Pure function over its inputs: identical
// calls produce an identical ordered finding list.
func FindGeneDrugInteractions(profile *domain.GeneticProfile, meds []domain.Medication) []domain.InteractionFinding {
	findings := make([]domain.InteractionFinding, 0)

	for _, med := range meds {
		name := strings.ToLower(med.Name)

		for _, rule := range gdiRules {
			call := profile.Genotype(rule.gene)
			matched := call == rule.genotype
			if rule.negate {
				matched = call != rule.genotype
			}
			if !matched {
				continue
			}

			for _, drug := range rule.drugs {
				if strings.Contains(name, drug) {
					findings = append(findings, domain.InteractionFinding{
						Category: domain.GeneDrugFinding,
						Description: fmt.Sprintf("%s with %s genotype %q: %s",
							med.Name, rule.gene, call, rule.effect),
					})
				}
			}
		}
	}

	return findings
}
