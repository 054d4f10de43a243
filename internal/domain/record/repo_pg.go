package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recCols = `id, patient_ref, version, supersedes_id, assessment, accepted_diagnoses,
	plan, status, reviewer_id, reviewed_at, audit, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, rec *PatientRecord) error {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	assessmentJSON, planJSON, auditJSON, err := marshalRec(rec)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_record (
			id, patient_ref, version, supersedes_id, assessment, accepted_diagnoses,
			plan, status, reviewer_id, reviewed_at, audit, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		rec.ID, rec.PatientRef, rec.Version, rec.SupersedesID, assessmentJSON,
		rec.AcceptedDiagnoses, planJSON, rec.Review.Status, rec.Review.ReviewerID,
		rec.Review.ReviewedAt, auditJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	return scanRec(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recCols+` FROM patient_record WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, rec *PatientRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	assessmentJSON, planJSON, auditJSON, err := marshalRec(rec)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_record SET
			patient_ref=$2, version=$3, supersedes_id=$4, assessment=$5,
			accepted_diagnoses=$6, plan=$7, status=$8, reviewer_id=$9,
			reviewed_at=$10, audit=$11, updated_at=$12
		WHERE id = $1`,
		rec.ID, rec.PatientRef, rec.Version, rec.SupersedesID, assessmentJSON,
		rec.AcceptedDiagnoses, planJSON, rec.Review.Status, rec.Review.ReviewerID,
		rec.Review.ReviewedAt, auditJSON, rec.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_record WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recCols+` FROM patient_record
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	recs, err := scanRecs(rows)
	return recs, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*PatientRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_record WHERE patient_ref = $1`, patientRef).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recCols+` FROM patient_record
		WHERE patient_ref = $1
		ORDER BY version DESC, created_at DESC LIMIT $2 OFFSET $3`, patientRef, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	recs, err := scanRecs(rows)
	return recs, total, err
}

func marshalRec(rec *PatientRecord) (assessmentJSON, planJSON, auditJSON []byte, err error) {
	if rec.Assessment != nil {
		if assessmentJSON, err = json.Marshal(rec.Assessment); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal assessment: %w", err)
		}
	}
	if planJSON, err = json.Marshal(rec.Plan); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal plan: %w", err)
	}
	if auditJSON, err = json.Marshal(rec.Audit); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal audit: %w", err)
	}
	return assessmentJSON, planJSON, auditJSON, nil
}

func scanRec(row pgx.Row) (*PatientRecord, error) {
	var (
		rec            PatientRecord
		assessmentJSON []byte
		planJSON       []byte
		auditJSON      []byte
	)
	err := row.Scan(
		&rec.ID, &rec.PatientRef, &rec.Version, &rec.SupersedesID, &assessmentJSON,
		&rec.AcceptedDiagnoses, &planJSON, &rec.Review.Status, &rec.Review.ReviewerID,
		&rec.Review.ReviewedAt, &auditJSON, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(assessmentJSON) > 0 {
		rec.Assessment = &assessment.Record{}
		if err := json.Unmarshal(assessmentJSON, rec.Assessment); err != nil {
			return nil, fmt.Errorf("unmarshal assessment: %w", err)
		}
	}
	if len(planJSON) > 0 {
		if err := json.Unmarshal(planJSON, &rec.Plan); err != nil {
			return nil, fmt.Errorf("unmarshal plan: %w", err)
		}
	}
	if len(auditJSON) > 0 {
		if err := json.Unmarshal(auditJSON, &rec.Audit); err != nil {
			return nil, fmt.Errorf("unmarshal audit: %w", err)
		}
	}
	return &rec, nil
}

func scanRecs(rows pgx.Rows) ([]*PatientRecord, error) {
	var recs []*PatientRecord
	for rows.Next() {
		rec, err := scanRec(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
