package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/intelliwatt/intelliwatt/internal/storage"
)

// Notifier is told about failed validations so a human can review the
// plan before it reaches comparisons.
type Notifier interface {
	NotifyValidationFailed(ctx context.Context, res Result) error
}

// Service runs validations and persists their records. FAIL and SKIP
// records form the review queue.
type Service struct {
	validator *Validator
	store     storage.Storage
	notifier  Notifier
}

// NewService wires the persistence layer around a validator. notifier may
// be nil.
func NewService(validator *Validator, store storage.Storage, notifier Notifier) *Service {
	return &Service{validator: validator, store: store, notifier: notifier}
}

// Run validates one plan, saves the record, and raises a notification on
// FAIL. Notification errors are logged, not returned; the record is the
// source of truth.
func (s *Service) Run(ctx context.Context, in Input) (Result, error) {
	res, err := s.validator.Validate(ctx, in)
	if err != nil {
		return res, err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return res, fmt.Errorf("marshal validation result: %w", err)
	}
	rec := storage.EflValidationRecord{
		ID:                uuid.NewString(),
		PlanID:            res.PlanID,
		Status:            string(res.Status),
		TdspSource:        string(res.TdspSource),
		MaxDeviationCents: res.MaxDeviationCents,
		QueueReason:       res.QueueReason,
		Payload:           payload,
	}
	if err := s.store.SaveValidation(ctx, rec); err != nil {
		return res, fmt.Errorf("save validation record: %w", err)
	}

	if res.Status == StatusFail && s.notifier != nil {
		if err := s.notifier.NotifyValidationFailed(ctx, res); err != nil {
			log.Printf("[validate] failure notification for plan %s not sent: %v", res.PlanID, err)
		}
	}
	return res, nil
}

// ReviewQueue lists persisted records with the given status, newest
// first.
func (s *Service) ReviewQueue(ctx context.Context, status Status, limit int) ([]storage.EflValidationRecord, error) {
	return s.store.ListValidations(ctx, string(status), limit)
}
