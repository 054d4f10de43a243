package record

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for the given id.
var ErrNotFound = errors.New("record not found")

type Repository interface {
	Create(ctx context.Context, rec *PatientRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientRecord, error)
	Update(ctx context.Context, rec *PatientRecord) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error)
	ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*PatientRecord, int, error)
}
