package medication

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

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository { return &requestRepoPG{pool: pool} }

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *requestRepoPG) Upsert(ctx context.Context, row *requestRow) error {
	body, err := json.Marshal(row.Resource)
	if err != nil {
		return fmt.Errorf("encode medication request: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_request (id, resource, patient_id, code, status, intent, authored_on, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			resource = EXCLUDED.resource,
			patient_id = EXCLUDED.patient_id,
			code = EXCLUDED.code,
			status = EXCLUDED.status,
			intent = EXCLUDED.intent,
			authored_on = EXCLUDED.authored_on,
			updated_at = EXCLUDED.updated_at`,
		row.Resource.ID, body, row.PatientID, row.Code, row.Status, row.Intent, row.AuthoredOn, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert medication request %s: %w", row.Resource.ID, err)
	}
	return nil
}

func (r *requestRepoPG) GetByID(ctx context.Context, id string) (*fhirmodels.MedicationRequest, error) {
	m, err := db.GetResource[fhirmodels.MedicationRequest](ctx, r.conn(ctx),
		`SELECT resource FROM medication_request WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get medication request %s: %w", id, err)
	}
	return m, nil
}

func (r *requestRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.MedicationRequest, error) {
	items, err := db.ListResources[fhirmodels.MedicationRequest](ctx, r.conn(ctx), `
		SELECT resource FROM medication_request WHERE patient_id = $1
		ORDER BY authored_on DESC NULLS LAST, updated_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medication requests for patient %s: %w", patientID, err)
	}
	return items, nil
}
