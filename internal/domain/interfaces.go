package domain

import "context"

// Store round-trips analysis inputs through a simple key-value style
// persistence layer. The engine itself never touches the store; handlers
// load inputs from it before invoking the analyzer.
type Store interface {
	SaveProfile(ctx context.Context, userID string, profile *GeneticProfile) error
	GetProfile(ctx context.Context, userID string) (*GeneticProfile, error)

	SaveMedications(ctx context.Context, userID string, meds []Medication) error
	GetMedications(ctx context.Context, userID string) ([]Medication, error)

	SaveVitals(ctx context.Context, userID string, sample VitalsSample) error
	GetVitals(ctx context.Context, userID string) (*VitalsSample, error)

	Close() error
}

// VitalsProvider yields measurement samples as an external device
// produces them. Implementations must deliver immutable samples; the
// engine consumes only the terminal sample with both validity flags set.
type VitalsProvider interface {
	// Subscribe returns a channel of samples for the given user. The
	// channel is closed when ctx is cancelled.
	Subscribe(ctx context.Context, userID string) (<-chan VitalsSample, error)
	// LatestValid returns the most recent sample whose validity flags
	// are both true, or ErrNotFound when none has been observed.
	LatestValid(userID string) (*VitalsSample, error)
}

// TextGenerator is the boundary to the external generative-text service.
// A failure here is terminal for the enclosing analysis invocation.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
