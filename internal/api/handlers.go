package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
	"github.com/pgx-med-guard-server/internal/service"
)

// maxImportSize caps uploaded genome exports at 16 MiB.
const maxImportSize = 16 << 20

// analyzeRequest carries the per-invocation inputs that are not loaded
// from the store.
type analyzeRequest struct {
	Demographics domain.Demographics `json:"demographics"`
}

// handleAnalyze loads the stored inputs, gates the invocation and runs
// the full analysis pipeline.
func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	uid := userID(c)
	ctx := c.Request.Context()

	profile, err := s.store.GetProfile(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to load genetic profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load genetic profile"})
		return
	}
	if profile == nil {
		profile = &domain.GeneticProfile{}
	}

	meds, err := s.store.GetMedications(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to load medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load medications"})
		return
	}

	// The engine's local steps are total; gating on required inputs
	// happens here, before invocation.
	if !profile.HasData() && len(meds) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   domain.ErrInsufficientData.Error(),
			"missing": []string{"genetic_profile", "medications"},
		})
		return
	}

	verdict, err := s.analyzer.Analyze(ctx, service.AnalyzeParams{
		Profile: profile,
		Meds:    meds,
		Demo:    req.Demographics,
		Vitals:  s.latestValidVitals(ctx, uid),
	})
	if err != nil {
		s.respondAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, verdict)
}

// latestValidVitals prefers the live provider; falls back to the last
// persisted sample. Returns nil when no valid sample exists.
func (s *Server) latestValidVitals(ctx context.Context, uid string) *domain.VitalsSample {
	if sample, err := s.vitals.LatestValid(uid); err == nil {
		return sample
	}

	sample, err := s.store.GetVitals(ctx, uid)
	if err != nil {
		return nil
	}
	if !sample.IsValid() {
		return nil
	}
	return sample
}

// respondAnalysisError maps engine failures onto HTTP statuses. Text
// service failures are terminal for the invocation: no partial verdict
// is ever returned.
func (s *Server) respondAnalysisError(c *gin.Context, err error) {
	var invalidResp *domain.InvalidResponseError
	var transport *domain.TransportFailureError

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "analysis timed out"})
	case errors.As(err, &invalidResp):
		s.logger.WithFields(logrus.Fields{
			"status":  invalidResp.StatusCode,
			"preview": invalidResp.Message,
		}).Error("Text service returned invalid response")
		c.JSON(http.StatusBadGateway, gin.H{"error": invalidResp.Error()})
	case errors.As(err, &transport):
		s.logger.WithError(err).Error("Text service unreachable")
		c.JSON(http.StatusBadGateway, gin.H{"error": "text service unreachable"})
	default:
		s.logger.WithError(err).Error("Analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analysis failed"})
	}
}

// handleProfileImport parses an uploaded genome export and stores the
// resulting genetic profile.
func (s *Server) handleProfileImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}

	profile, err := s.parser.Parse(data, header.Filename)
	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
			return
		}
		s.logger.WithError(err).Error("Failed to parse genome export")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse genome export"})
		return
	}

	uid := userID(c)
	if err := s.store.SaveProfile(c.Request.Context(), uid, profile); err != nil {
		s.logger.WithError(err).Error("Failed to save genetic profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save genetic profile"})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":   uid,
		"genotypes": len(profile.Genotypes),
		"source":    header.Filename,
	}).Info("Genetic profile imported")

	c.JSON(http.StatusCreated, gin.H{
		"genotypes":   len(profile.Genotypes),
		"imported_at": profile.ImportedAt,
		"source_file": profile.SourceFile,
	})
}

// handleGetProfile returns the stored genetic profile.
func (s *Server) handleGetProfile(c *gin.Context) {
	profile, err := s.store.GetProfile(c.Request.Context(), userID(c))
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no genetic profile imported"})
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load genetic profile")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load genetic profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// handleListMedications returns the current medication list. An empty
// list is a normal state, not an error.
func (s *Server) handleListMedications(c *gin.Context) {
	meds, err := s.store.GetMedications(c.Request.Context(), userID(c))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to load medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load medications"})
		return
	}
	if meds == nil {
		meds = []domain.Medication{}
	}
	c.JSON(http.StatusOK, gin.H{"medications": meds})
}

// addMedicationRequest is the payload for adding a medication.
type addMedicationRequest struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// handleAddMedication appends a medication to the user's list.
func (s *Server) handleAddMedication(c *gin.Context) {
	var req addMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	med := domain.NewMedication(req.Name, req.Dosage, req.Frequency)
	if err := med.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	uid := userID(c)
	ctx := c.Request.Context()

	meds, err := s.store.GetMedications(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to load medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load medications"})
		return
	}

	meds = append(meds, med)
	if err := s.store.SaveMedications(ctx, uid, meds); err != nil {
		s.logger.WithError(err).Error("Failed to save medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save medications"})
		return
	}

	c.JSON(http.StatusCreated, med)
}

// handleRemoveMedication removes one medication by its stable ID.
func (s *Server) handleRemoveMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid medication id"})
		return
	}

	uid := userID(c)
	ctx := c.Request.Context()

	meds, err := s.store.GetMedications(ctx, uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to load medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load medications"})
		return
	}

	kept := meds[:0]
	removed := false
	for _, m := range meds {
		if m.ID == id {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "medication not found"})
		return
	}

	if err := s.store.SaveMedications(ctx, uid, kept); err != nil {
		s.logger.WithError(err).Error("Failed to save medications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save medications"})
		return
	}

	c.Status(http.StatusNoContent)
}

// handleLatestVitals returns the most recent valid vitals sample, live
// or persisted.
func (s *Server) handleLatestVitals(c *gin.Context) {
	sample := s.latestValidVitals(c.Request.Context(), userID(c))
	if sample == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no valid vitals sample observed"})
		return
	}
	c.JSON(http.StatusOK, sample)
}
