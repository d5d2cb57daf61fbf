package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-med-guard-server/internal/domain"
)

func meds(names ...string) []domain.Medication {
	out := make([]domain.Medication, 0, len(names))
	for _, n := range names {
		out = append(out, domain.NewMedication(n, "1 tablet", "Daily"))
	}
	return out
}

func TestFindDrugDrugInteractions_WarfarinAspirin(t *testing.T) {
	findings := FindDrugDrugInteractions(meds("Warfarin", "Aspirin"))

	require.NotEmpty(t, findings)
	assert.Equal(t, domain.DrugDrugFinding, findings[0].Category)
	assert.Contains(t, findings[0].Description, "Warfarin + Aspirin")
	assert.Contains(t, findings[0].Description, "Increased bleeding risk")
}

// Swapping input order must not make the relationship vanish.
func TestFindDrugDrugInteractions_Symmetric(t *testing.T) {
	forward := FindDrugDrugInteractions(meds("Warfarin", "Aspirin"))
	reversed := FindDrugDrugInteractions(meds("Aspirin", "Warfarin"))

	assert.Len(t, reversed, len(forward))
	require.NotEmpty(t, reversed)
	assert.Contains(t, reversed[0].Description, "Increased bleeding risk")
}

func TestFindDrugDrugInteractions_CaseInsensitive(t *testing.T) {
	findings := FindDrugDrugInteractions(meds("WARFARIN sodium", "baby aspirin"))

	require.Len(t, findings, 1)
	assert.Contains(t, findings[0].Description, "Increased bleeding risk")
}

// Substring containment false-positives are preserved behavior, not a
// bug: a product literally named "Aspirin-free" still matches "aspirin".
func TestFindDrugDrugInteractions_SubstringFalsePositive(t *testing.T) {
	findings := FindDrugDrugInteractions(meds("Warfarin", "Aspirin-free pain reliever"))

	assert.NotEmpty(t, findings)
}

func TestFindDrugDrugInteractions_NoPairNoFinding(t *testing.T) {
	assert.Empty(t, FindDrugDrugInteractions(meds("Warfarin")))
	assert.Empty(t, FindDrugDrugInteractions(meds("Acetaminophen", "Lisinopril")))
	assert.Empty(t, FindDrugDrugInteractions(nil))
}

// One pair hitting several rules produces one finding per rule;
// duplicates are expected and never collapsed.
func TestFindDrugDrugInteractions_MultipleRulesAccumulate(t *testing.T) {
	// Ibuprofen interacts with warfarin (bleeding) and methotrexate
	// (toxicity).
	findings := FindDrugDrugInteractions(meds("Warfarin", "Methotrexate", "Ibuprofen"))

	var bleeding, toxicity int
	for _, f := range findings {
		if strings.Contains(f.Description, "bleeding") {
			bleeding++
		}
		if strings.Contains(f.Description, "toxicity") {
			toxicity++
		}
	}
	assert.GreaterOrEqual(t, bleeding, 1)
	assert.GreaterOrEqual(t, toxicity, 1)
}

func TestFindGeneDrugInteractions_CYP2D6(t *testing.T) {
	profile := profileWith(map[string]string{domain.GeneCYP2D6: "TT"})

	findings := FindGeneDrugInteractions(profile, meds("Codeine", "Metoprolol"))

	require.Len(t, findings, 2)
	assert.Contains(t, findings[0].Description, "reduced effectiveness")
	assert.Contains(t, findings[1].Description, "increased side-effect risk")
	for _, f := range findings {
		assert.Equal(t, domain.GeneDrugFinding, f.Category)
	}
}

func TestFindGeneDrugInteractions_CYP2C19(t *testing.T) {
	profile := profileWith(map[string]string{domain.GeneCYP2C19: "AA"})

	findings := FindGeneDrugInteractions(profile, meds("Clopidogrel", "Omeprazole"))

	require.Len(t, findings, 2)
	assert.Contains(t, findings[0].Description, "reduced effectiveness")
	assert.Contains(t, findings[1].Description, "may need dose adjustment")
}

// CYP2C9 rule fires for any non-CC call, including an absent one.
func TestFindGeneDrugInteractions_CYP2C9NonCC(t *testing.T) {
	tests := []struct {
		name     string
		genotype map[string]string
		want     int
	}{
		{"AT genotype", map[string]string{domain.GeneCYP2C9: "AT"}, 1},
		{"unknown genotype", nil, 1},
		{"CC genotype suppresses", map[string]string{domain.GeneCYP2C9: "CC"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := FindGeneDrugInteractions(profileWith(tt.genotype), meds("Warfarin"))
			assert.Len(t, findings, tt.want)
			if tt.want > 0 {
				assert.Contains(t, findings[0].Description, "requires careful dose monitoring")
			}
		})
	}
}

func TestFindGeneDrugInteractions_WrongGenotypeNoFinding(t *testing.T) {
	profile := profileWith(map[string]string{domain.GeneCYP2D6: "CC"})

	assert.Empty(t, FindGeneDrugInteractions(profile, meds("Codeine")))
}

// Pure function: running the scanner twice on identical inputs yields an
// identical ordered list.
func TestFindGeneDrugInteractions_Idempotent(t *testing.T) {
	profile := profileWith(map[string]string{domain.GeneCYP2D6: "TT", domain.GeneCYP2C19: "AA"})
	medications := meds("Codeine", "Clopidogrel", "Omeprazole")

	first := FindGeneDrugInteractions(profile, medications)
	second := FindGeneDrugInteractions(profile, medications)

	assert.Equal(t, first, second)
}
