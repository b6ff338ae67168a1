package clinical

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/resourceaccess/internal/platform/db"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Condition Repository ===========

type conditionRepoPG struct{ pool *pgxpool.Pool }

func NewConditionRepoPG(pool *pgxpool.Pool) ConditionRepository { return &conditionRepoPG{pool: pool} }

func (r *conditionRepoPG) Upsert(ctx context.Context, row *conditionRow) error {
	body, err := json.Marshal(row.Resource)
	if err != nil {
		return fmt.Errorf("encode condition: %w", err)
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO condition (id, resource, patient_id, code, clinical_status, verification_status,
			category, onset_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			resource = EXCLUDED.resource,
			patient_id = EXCLUDED.patient_id,
			code = EXCLUDED.code,
			clinical_status = EXCLUDED.clinical_status,
			verification_status = EXCLUDED.verification_status,
			category = EXCLUDED.category,
			onset_date = EXCLUDED.onset_date,
			updated_at = EXCLUDED.updated_at`,
		row.Resource.ID, body, row.PatientID, row.Code, row.ClinicalStatus, row.VerificationStatus,
		row.Category, row.OnsetDate, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert condition %s: %w", row.Resource.ID, err)
	}
	return nil
}

func (r *conditionRepoPG) GetByID(ctx context.Context, id string) (*fhirmodels.Condition, error) {
	c, err := db.GetResource[fhirmodels.Condition](ctx, conn(ctx, r.pool),
		`SELECT resource FROM condition WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get condition %s: %w", id, err)
	}
	return c, nil
}

func (r *conditionRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Condition, error) {
	items, err := db.ListResources[fhirmodels.Condition](ctx, conn(ctx, r.pool),
		`SELECT resource FROM condition WHERE patient_id = $1 ORDER BY updated_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list conditions for patient %s: %w", patientID, err)
	}
	return items, nil
}

// =========== Observation Repository ===========

type observationRepoPG struct{ pool *pgxpool.Pool }

func NewObservationRepoPG(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) Upsert(ctx context.Context, row *observationRow) error {
	body, err := json.Marshal(row.Resource)
	if err != nil {
		return fmt.Errorf("encode observation: %w", err)
	}
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO observation (id, resource, patient_id, code, status, category, effective_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			resource = EXCLUDED.resource,
			patient_id = EXCLUDED.patient_id,
			code = EXCLUDED.code,
			status = EXCLUDED.status,
			category = EXCLUDED.category,
			effective_date = EXCLUDED.effective_date,
			updated_at = EXCLUDED.updated_at`,
		row.Resource.ID, body, row.PatientID, row.Code, row.Status, row.Category, row.EffectiveDate, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert observation %s: %w", row.Resource.ID, err)
	}
	return nil
}

func (r *observationRepoPG) GetByID(ctx context.Context, id string) (*fhirmodels.Observation, error) {
	o, err := db.GetResource[fhirmodels.Observation](ctx, conn(ctx, r.pool),
		`SELECT resource FROM observation WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get observation %s: %w", id, err)
	}
	return o, nil
}

func (r *observationRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.Observation, error) {
	items, err := db.ListResources[fhirmodels.Observation](ctx, conn(ctx, r.pool), `
		SELECT resource FROM observation WHERE patient_id = $1
		ORDER BY effective_date DESC NULLS LAST, updated_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list observations for patient %s: %w", patientID, err)
	}
	return items, nil
}
