package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
)

// AnalyzerService runs the complete risk-analysis pipeline. It is
// stateless between invocations: scores and findings are computed fresh
// on every call and the lookup tables are read-only package constants,
// so concurrent analyses never share mutable state.
//
// Gating the invocation on required inputs is the caller's
// responsibility; every local step here is a total function, and only
// the narrative call can fail.
type AnalyzerService struct {
	logger    *logrus.Logger
	narrative *NarrativeGenerator
}

// NewAnalyzerService creates an analyzer backed by the given text
// generator.
func NewAnalyzerService(logger *logrus.Logger, textGen domain.TextGenerator) *AnalyzerService {
	return &AnalyzerService{
		logger:    logger,
		narrative: NewNarrativeGenerator(logger, textGen),
	}
}

// AnalyzeParams are the inputs to one analysis invocation. Vitals is the
// terminal valid sample from the measurement provider, if one exists;
// invalid samples must not be passed in.
type AnalyzeParams struct {
	Profile *domain.GeneticProfile `json:"profile"`
	Meds    []domain.Medication    `json:"medications"`
	Demo    domain.Demographics    `json:"demographics"`
	Vitals  *domain.VitalsSample   `json:"vitals,omitempty"`
}

// Analyze computes the activity score, scans for interactions,
// classifies the risk level and generates the narrative report. A
// narrative failure, including context cancellation, aborts the
// invocation with no partial verdict.
func (s *AnalyzerService) Analyze(ctx context.Context, params AnalyzeParams) (*domain.RiskVerdict, error) {
	startTime := time.Now()

	s.logger.WithFields(logrus.Fields{
		"genotypes":   len(params.Profile.Genotypes),
		"medications": len(params.Meds),
	}).Info("Starting medication risk analysis")

	// Step 1: metabolic activity score.
	score := ComputeActivityScore(params.Profile, params.Demo)

	// Step 2: interaction scans.
	ddiFindings := FindDrugDrugInteractions(params.Meds)
	gdiFindings := FindGeneDrugInteractions(params.Profile, params.Meds)

	// Step 3: traffic-light classification.
	level := Classify(len(ddiFindings), len(gdiFindings), score)

	findings := make([]domain.InteractionFinding, 0, len(ddiFindings)+len(gdiFindings))
	findings = append(findings, ddiFindings...)
	findings = append(findings, gdiFindings...)

	// Step 4: narrative report from the text service.
	narrative, err := s.narrative.Generate(ctx, NarrativeInputs{
		Profile:  params.Profile,
		Meds:     params.Meds,
		Demo:     params.Demo,
		Vitals:   params.Vitals,
		Score:    score,
		Findings: findings,
		Level:    level,
	})
	if err != nil {
		return nil, err
	}

	verdict := &domain.RiskVerdict{
		Level:           level,
		Score:           score,
		Findings:        findings,
		Summary:         narrative.Summary,
		Detailed:        narrative.Detailed,
		Recommendations: narrative.Recommendations,
		GeneratedAt:     time.Now().UTC(),
	}

	s.logger.WithFields(logrus.Fields{
		"level":           verdict.Level,
		"score":           score.Value,
		"ddi_findings":    len(ddiFindings),
		"gdi_findings":    len(gdiFindings),
		"processing_time": time.Since(startTime),
	}).Info("Medication risk analysis completed")

	return verdict, nil
}
