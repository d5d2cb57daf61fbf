package service

import "github.com/pgx-med-guard-server/internal/domain"

// Classify maps interaction counts and the activity score onto the
// traffic-light risk level. The rules are evaluated in this exact order
// and short-circuit; all score comparisons are strict at the boundaries.
//
// The ordering leaves a residual unknown band for scores in
// (0.7,0.8) or (1.2,1.3) with zero findings. That gap is part of the
// threshold design and is preserved deliberately.
func Classify(ddiCount, gdiCount int, score domain.ActivityScore) domain.RiskLevel {
	total := ddiCount + gdiCount
	v := score.Value

	switch {
	case total >= 3 || v < 0.5 || v > 1.5:
		return domain.RiskDanger
	case total >= 1 || v < 0.7 || v > 1.3:
		return domain.RiskCaution
	case total == 0 && v >= 0.8 && v <= 1.2:
		return domain.RiskSafe
	default:
		return domain.RiskUnknown
	}
}
