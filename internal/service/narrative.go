package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
)

// Section markers the lenient parser scans for. Case-sensitive, matched
// anywhere in a line.
const (
	markerSummary         = "SUMMARY"
	markerDetailed        = "DETAILED"
	markerRecommendations = "RECOMMENDATIONS"
)

// fallbackRecommendations is substituted when the response yields no
// bullet items.
var fallbackRecommendations = []string{
	"Review this medication list with your prescribing physician",
	"Do not stop or change any medication without medical advice",
	"Keep your genetic profile and medication list up to date",
}

// Narrative is the free-text portion of a risk verdict.
type Narrative struct {
	Summary         string   `json:"summary"`
	Detailed        string   `json:"detailed"`
	Recommendations []string `json:"recommendations"`
}

// NarrativeGenerator turns classification results into a natural-language
// report via the external text service. The categorical verdict never
// depends on this step; a failure here aborts the whole analysis.
type NarrativeGenerator struct {
	logger  *logrus.Logger
	textGen domain.TextGenerator
}

// NewNarrativeGenerator creates a narrative generator.
func NewNarrativeGenerator(logger *logrus.Logger, textGen domain.TextGenerator) *NarrativeGenerator {
	return &NarrativeGenerator{
		logger:  logger,
		textGen: textGen,
	}
}

// NarrativeInputs carries everything the prompt embeds.
type NarrativeInputs struct {
	Profile  *domain.GeneticProfile
	Meds     []domain.Medication
	Demo     domain.Demographics
	Vitals   *domain.VitalsSample
	Score    domain.ActivityScore
	Findings []domain.InteractionFinding
	Level    domain.RiskLevel
}

// Generate builds the prompt, calls the text service and parses the
// response. Transport, status and decode failures from the service
// propagate to the caller; parse-level gaps fall back silently.
func (g *NarrativeGenerator) Generate(ctx context.Context, in NarrativeInputs) (*Narrative, error) {
	prompt := g.BuildPrompt(in)

	raw, err := g.textGen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("narrative generation failed: %w", err)
	}

	// Structured output first; the documented lenient parse is the
	// secondary path.
	if narrative, ok := parseStructured(raw); ok {
		g.logger.WithField("path", "structured").Debug("Parsed narrative response")
		return narrative, nil
	}

	narrative := parseLenient(raw)
	g.logger.WithFields(logrus.Fields{
		"path":            "lenient",
		"recommendations": len(narrative.Recommendations),
	}).Debug("Parsed narrative response")
	return narrative, nil
}

// BuildPrompt assembles the structured prompt, embedding all analysis
// inputs and the required three-section output format.
func (g *NarrativeGenerator) BuildPrompt(in NarrativeInputs) string {
	var b strings.Builder

	b.WriteString("You are a clinical pharmacology assistant. Analyze the following patient data and medication risk assessment.\n\n")

	b.WriteString("GENETIC PROFILE:\n")
	if in.Profile.HasData() {
		for _, gene := range domain.ScoredGenes {
			if call := in.Profile.Genotype(gene); call != "" {
				fmt.Fprintf(&b, "- %s: %s\n", gene, call)
			}
		}
	} else {
		b.WriteString("- no genotype data available\n")
	}

	b.WriteString("\nMEDICATIONS:\n")
	if len(in.Meds) == 0 {
		b.WriteString("- none\n")
	}
	for _, med := range in.Meds {
		fmt.Fprintf(&b, "- %s %s", med.Name, med.Dosage)
		if med.Frequency != "" {
			fmt.Fprintf(&b, " (%s)", med.Frequency)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nPATIENT:\n")
	if in.Demo.Age != nil {
		fmt.Fprintf(&b, "- age: %d\n", *in.Demo.Age)
	}
	if in.Demo.Sex != "" {
		fmt.Fprintf(&b, "- sex: %s\n", in.Demo.Sex)
	}
	if in.Demo.Smoking != "" {
		fmt.Fprintf(&b, "- smoking: %s\n", in.Demo.Smoking)
	}
	if in.Demo.AlcoholUse != "" {
		fmt.Fprintf(&b, "- alcohol: %s\n", in.Demo.AlcoholUse)
	}
	if in.Vitals != nil && in.Vitals.IsValid() {
		fmt.Fprintf(&b, "- baseline vitals: %d BPM heart rate, %d BPM breathing rate\n",
			in.Vitals.HeartRate, in.Vitals.BreathingRate)
	}

	fmt.Fprintf(&b, "\nCOMPUTED METABOLIC ACTIVITY SCORE: %.2f (baseline 1.0)\n", in.Score.Value)
	fmt.Fprintf(&b, "RISK LEVEL: %s\n", strings.ToUpper(in.Level.String()))

	b.WriteString("\nDETECTED INTERACTIONS:\n")
	if len(in.Findings) == 0 {
		b.WriteString("- none detected\n")
	}
	for _, f := range in.Findings {
		fmt.Fprintf(&b, "- [%s] %s\n", f.Category, f.Description)
	}

	b.WriteString("\nRespond with exactly three labeled sections:\n")
	b.WriteString("SUMMARY: a two-sentence plain-language summary for the patient.\n")
	b.WriteString("DETAILED: a detailed explanation of the risk assessment.\n")
	b.WriteString("RECOMMENDATIONS: exactly three bullet items, one action each.\n")

	return b.String()
}

// parseStructured attempts to decode the raw response as the JSON shape
// requested via structured output mode.
func parseStructured(raw string) (*Narrative, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var n Narrative
	if err := json.Unmarshal([]byte(trimmed), &n); err != nil {
		return nil, false
	}
	if n.Summary == "" && n.Detailed == "" && len(n.Recommendations) == 0 {
		return nil, false
	}

	if n.Summary == "" {
		n.Summary = fallbackSummary(raw)
	}
	if n.Detailed == "" {
		n.Detailed = trimmed
	}
	if len(n.Recommendations) == 0 {
		n.Recommendations = append([]string(nil), fallbackRecommendations...)
	}
	return &n, true
}

// parseLenient scans the response line by line for the three section
// markers, accumulating wrapped text per section and pulling
// bullet-prefixed lines out as recommendation items. Missing sections get
// hardcoded fallbacks; this path never fails.
func parseLenient(raw string) *Narrative {
	var (
		summary  []string
		detailed []string
		recs     []string
		section  string
	)

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.Contains(line, markerRecommendations):
			section = markerRecommendations
			if rest := contentAfterMarker(trimmed, markerRecommendations); rest != "" {
				recs = appendBullet(recs, rest)
			}
			continue
		case strings.Contains(line, markerDetailed):
			section = markerDetailed
			if rest := contentAfterMarker(trimmed, markerDetailed); rest != "" {
				detailed = append(detailed, rest)
			}
			continue
		case strings.Contains(line, markerSummary):
			section = markerSummary
			if rest := contentAfterMarker(trimmed, markerSummary); rest != "" {
				summary = append(summary, rest)
			}
			continue
		}

		if trimmed == "" {
			continue
		}

		switch section {
		case markerSummary:
			summary = append(summary, trimmed)
		case markerDetailed:
			detailed = append(detailed, trimmed)
		case markerRecommendations:
			recs = appendBullet(recs, trimmed)
		}
	}

	n := &Narrative{
		Summary:         strings.Join(summary, " "),
		Detailed:        strings.Join(detailed, " "),
		Recommendations: recs,
	}

	if n.Summary == "" {
		n.Summary = fallbackSummary(raw)
	}
	if n.Detailed == "" {
		n.Detailed = strings.TrimSpace(raw)
	}
	if len(n.Recommendations) == 0 {
		n.Recommendations = append([]string(nil), fallbackRecommendations...)
	}

	return n
}

// contentAfterMarker returns the text following "MARKER:" on the marker
// line itself, if any.
func contentAfterMarker(line, marker string) string {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return ""
	}
	rest := line[idx+len(marker):]
	rest = strings.TrimLeft(rest, ": ")
	return strings.TrimSpace(rest)
}

// appendBullet adds a recommendation line, stripping common bullet
// prefixes. Non-bulleted lines inside the section are kept too, since
// models do not reliably emit bullets.
func appendBullet(recs []string, line string) []string {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
			break
		}
	}
	if line == "" {
		return recs
	}
	return append(recs, line)
}

// fallbackSummary derives a summary from a naive keyword search over the
// raw response when no SUMMARY section was found.
func fallbackSummary(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "high"):
		return "The analysis indicates a high level of medication risk. Review the detailed report with your physician."
	case strings.Contains(lower, "moderate"):
		return "The analysis indicates a moderate level of medication risk. Review the detailed report with your physician."
	default:
		return "The analysis completed. Review the detailed report with your physician."
	}
}
