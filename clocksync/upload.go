package clocksync

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Outcome is the per-record result of a submit. AlreadyExists is a success.
type Outcome int

const (
	OutcomeUploaded Outcome = iota
	OutcomeAlreadyExists
	OutcomeRejected
	OutcomeTransientError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransientError:
		return "transient_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Durable reports whether the record is known to be stored in the ledger.
func (o Outcome) Durable() bool {
	return o == OutcomeUploaded || o == OutcomeAlreadyExists
}

type SubmitResult struct {
	Outcome Outcome
	// Err is set for Rejected and TransientError.
	Err error
}

// UploadGate performs the check-then-write against the ledger. It is safe under a
// single writer only: two processes can both pass the existence check.
type UploadGate struct {
	ledger Ledger
	log    zerolog.Logger
}

func NewUploadGate(ledger Ledger, log zerolog.Logger) *UploadGate {
	return &UploadGate{ledger: ledger, log: log.With().Str("component", "upload").Logger()}
}

func (g *UploadGate) Submit(ctx context.Context, rec NormalizedRecord) SubmitResult {
	if err := validateForUpload(rec); err != nil {
		g.log.Error().Err(err).Str("doc_id", rec.ID).Msg("record rejected")
		return SubmitResult{Outcome: OutcomeRejected, Err: fmt.Errorf("%w: %v", ErrUploadRejected, err)}
	}

	exists, err := g.ledger.Exists(ctx, rec.ID)
	if err != nil {
		return SubmitResult{Outcome: OutcomeTransientError, Err: fmt.Errorf("%w: exists %s: %v", ErrTransient, rec.ID, err)}
	}
	if exists {
		g.log.Debug().Str("doc_id", rec.ID).Msg("already in ledger")
		return SubmitResult{Outcome: OutcomeAlreadyExists}
	}

	created, err := g.ledger.Create(ctx, AttendanceDocument{
		ID:        rec.ID,
		StaffID:   rec.SubjectID,
		Timestamp: rec.Timestamp,
		Status:    rec.Status,
		WorkCode:  rec.WorkCode,
	})
	if err != nil {
		return SubmitResult{Outcome: OutcomeTransientError, Err: fmt.Errorf("%w: create %s: %v", ErrTransient, rec.ID, err)}
	}
	if !created {
		return SubmitResult{Outcome: OutcomeAlreadyExists}
	}
	return SubmitResult{Outcome: OutcomeUploaded}
}

func validateForUpload(rec NormalizedRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("missing doc_id")
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp for %s", rec.ID)
	}
	return ValidateSubjectID(rec.SubjectID)
}
