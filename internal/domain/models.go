// Package domain contains core business entities for pharmacogenomic
// medication-risk analysis: genetic profiles, medications, vitals and the
// traffic-light risk verdict produced by the analysis pipeline.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gene names recognized by the scoring engine. Genotype calls for any
// other key are retained on the profile but never scored.
const (
	GeneCYP2D6  = "CYP2D6"
	GeneCYP2C19 = "CYP2C19"
	GeneCYP2C9  = "CYP2C9"
	GeneCYP3A45 = "CYP3A4/5"
	GeneCYP1A2  = "CYP1A2"
)

// ScoredGenes lists the five metabolism genes the engine understands.
var ScoredGenes = []string{GeneCYP2D6, GeneCYP2C19, GeneCYP2C9, GeneCYP3A45, GeneCYP1A2}

// GeneticProfile is a set of parsed genotype calls keyed by gene name
// (or raw rsid for loci the engine does not recognize).
type GeneticProfile struct {
	Genotypes  map[string]string `json:"genotypes"`
	ImportedAt time.Time         `json:"imported_at"`
	SourceFile string            `json:"source_file,omitempty"`
}

// Genotype returns the genotype call for a gene, or "" when absent.
func (p *GeneticProfile) Genotype(gene string) string {
	if p == nil || p.Genotypes == nil {
		return ""
	}
	return p.Genotypes[gene]
}

// HasData reports whether the profile carries at least one genotype call.
func (p *GeneticProfile) HasData() bool {
	return p != nil && len(p.Genotypes) > 0
}

// Medication is one user-supplied drug entry. Name and Dosage are
// mandatory; ID is stable across edits.
type Medication struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// NewMedication creates a medication entry with a fresh stable identifier.
func NewMedication(name, dosage, frequency string) Medication {
	return Medication{
		ID:        uuid.New(),
		Name:      name,
		Dosage:    dosage,
		Frequency: frequency,
		AddedAt:   time.Now().UTC(),
	}
}

// Validate checks the mandatory fields.
func (m Medication) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return NewValidationError("name", "medication name is required", m.Name)
	}
	if strings.TrimSpace(m.Dosage) == "" {
		return NewValidationError("dosage", "medication dosage is required", m.Dosage)
	}
	return nil
}

// Demographics holds optional non-genetic risk modifiers. Absent fields
// are neutral: they contribute no score multiplier.
type Demographics struct {
	Age        *int   `json:"age,omitempty"`
	Sex        string `json:"sex,omitempty"`
	Smoking    string `json:"smoking,omitempty"`
	AlcoholUse string `json:"alcohol_use,omitempty"`
}

// VitalsSample is one heart-rate/breathing-rate reading from the
// measurement provider.
type VitalsSample struct {
	HeartRate          int       `json:"heart_rate"`
	BreathingRate      int       `json:"breathing_rate"`
	CapturedAt         time.Time `json:"captured_at"`
	HeartRateValid     bool      `json:"heart_rate_valid"`
	BreathingRateValid bool      `json:"breathing_rate_valid"`
}

// IsValid reports whether both metric validity flags are set. Only valid
// samples may feed downstream computation.
func (v VitalsSample) IsValid() bool {
	return v.HeartRateValid && v.BreathingRateValid
}

// ActivityScore is the derived metabolic-activity multiplier. Baseline is
// 1.0; every matching modifier multiplies once, so the value stays > 0.
type ActivityScore struct {
	Value     float64  `json:"value"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// FindingCategory distinguishes the two interaction-scanner outputs.
type FindingCategory string

const (
	DrugDrugFinding FindingCategory = "drug-drug"
	GeneDrugFinding FindingCategory = "gene-drug"
)

// InteractionFinding is one detected conflict. Findings are accumulated,
// never deduplicated: the same pair may legitimately appear more than
// once when several rules match it.
type InteractionFinding struct {
	Category    FindingCategory `json:"category"`
	Description string          `json:"description"`
}

// RiskLevel is the four-valued traffic-light classification.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskDanger  RiskLevel = "danger"
	RiskUnknown RiskLevel = "unknown"
)

// IsValid reports whether the level is one of the four defined values.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskSafe, RiskCaution, RiskDanger, RiskUnknown:
		return true
	default:
		return false
	}
}

// String returns the wire representation of the level.
func (r RiskLevel) String() string {
	return string(r)
}

// RiskVerdict is the final, immutable classification of one analysis
// invocation: exactly one verdict per call.
type RiskVerdict struct {
	Level           RiskLevel            `json:"level"`
	Score           ActivityScore        `json:"score"`
	Findings        []InteractionFinding `json:"findings"`
	Summary         string               `json:"summary"`
	Detailed        string               `json:"detailed"`
	Recommendations []string             `json:"recommendations"`
	GeneratedAt     time.Time            `json:"generated_at"`
}
