package diagnostics

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

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository { return &reportRepoPG{pool: pool} }

func (r *reportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *reportRepoPG) Upsert(ctx context.Context, row *reportRow) error {
	body, err := json.Marshal(row.Resource)
	if err != nil {
		return fmt.Errorf("encode diagnostic report: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO diagnostic_report (id, resource, patient_id, code, status, category, effective_date, updated_at)
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
		return fmt.Errorf("upsert diagnostic report %s: %w", row.Resource.ID, err)
	}
	return nil
}

func (r *reportRepoPG) GetByID(ctx context.Context, id string) (*fhirmodels.DiagnosticReport, error) {
	report, err := db.GetResource[fhirmodels.DiagnosticReport](ctx, r.conn(ctx),
		`SELECT resource FROM diagnostic_report WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get diagnostic report %s: %w", id, err)
	}
	return report, nil
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID string) ([]*fhirmodels.DiagnosticReport, error) {
	items, err := db.ListResources[fhirmodels.DiagnosticReport](ctx, r.conn(ctx), `
		SELECT resource FROM diagnostic_report WHERE patient_id = $1
		ORDER BY effective_date DESC NULLS LAST, updated_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list diagnostic reports for patient %s: %w", patientID, err)
	}
	return items, nil
}
