package diagnostics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ehr/resourceaccess/internal/platform/fhir"
	"github.com/ehr/resourceaccess/pkg/fhirmodels"
)

type fakeReportRepo struct {
	mu   sync.Mutex
	rows map[string]*reportRow
	err  error
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{rows: make(map[string]*reportRow)}
}

func (f *fakeReportRepo) Upsert(_ context.Context, row *reportRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows[row.Resource.ID] = row
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id string) (*fhirmodels.DiagnosticReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if row, ok := f.rows[id]; ok {
		return row.Resource, nil
	}
	return nil, nil
}

// ListByPatient mirrors the SQL ordering: effective date descending with
// undated reports last.
func (f *fakeReportRepo) ListByPatient(_ context.Context, patientID string) ([]*fhirmodels.DiagnosticReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var rows []*reportRow
	for _, row := range f.rows {
		if row.PatientID == patientID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].EffectiveDate, rows[j].EffectiveDate
		switch {
		case a == nil && b == nil:
			return rows[i].UpdatedAt.After(rows[j].UpdatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	out := make([]*fhirmodels.DiagnosticReport, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Resource)
	}
	return out, nil
}

type recordingLogger struct {
	mu      sync.Mutex
	actions []fhirmodels.AuditAction
	ids     []string
}

func (r *recordingLogger) LogAction(_ context.Context, _ string, action fhirmodels.AuditAction, _, resourceID string, _ map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	r.ids = append(r.ids, resourceID)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

func newTestService() (*ReportService, *fakeReportRepo, *recordingLogger) {
	repo := newFakeReportRepo()
	audit := &recordingLogger{}
	svc := NewReportService(repo, audit)
	svc.now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	return svc, repo, audit
}

func lipidPanel(patient string) *fhirmodels.DiagnosticReport {
	r := fhirmodels.NewDiagnosticReport()
	r.Status = fhirmodels.StatusFinal
	r.Subject = fhirmodels.Reference{Reference: "Patient/" + patient}
	r.Code = &fhirmodels.CodeableConcept{
		Text:   "Lipid panel",
		Coding: []fhirmodels.Coding{{System: "http://loinc.org", Code: "57698-3"}},
	}
	r.Category = []fhirmodels.CodeableConcept{{Coding: []fhirmodels.Coding{{Code: "LAB"}}}}
	r.Conclusion = "LDL mildly elevated"
	r.Result = []fhirmodels.Reference{{Reference: "Observation/o1"}, {Reference: "Observation/o2"}}
	return r
}

func TestSaveDiagnosticReport_DerivesColumns(t *testing.T) {
	svc, repo, audit := newTestService()

	r := lipidPanel("p1")
	r.EffectivePeriod = &fhirmodels.Period{Start: "2024-03-05T10:00:00Z"}
	saved, err := svc.SaveDiagnosticReport(context.Background(), r, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := repo.rows[saved.ID]
	if row.PatientID != "p1" || row.Code != "57698-3" || row.Status != "final" || row.Category != "LAB" {
		t.Errorf("row = %+v", row)
	}
	if row.EffectiveDate == nil || !row.EffectiveDate.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("effective date from period start = %v", row.EffectiveDate)
	}
	if audit.count() != 1 || audit.actions[0] != fhirmodels.AuditUpdate {
		t.Errorf("audit = %+v", audit.actions)
	}
}

func TestSaveDiagnosticReport_IssuedFallback(t *testing.T) {
	svc, repo, _ := newTestService()

	r := lipidPanel("p1")
	r.Issued = "2024-03-07T09:00:00Z"
	saved, err := svc.SaveDiagnosticReport(context.Background(), r, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if d := repo.rows[saved.ID].EffectiveDate; d == nil || d.Day() != 7 {
		t.Errorf("effective date = %v, want issued", d)
	}
}

func TestSaveDiagnosticReport_Invalid(t *testing.T) {
	svc, repo, audit := newTestService()

	r := lipidPanel("p1")
	r.Status = "done"
	if _, err := svc.SaveDiagnosticReport(context.Background(), r, "u1"); !fhir.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.rows) != 0 || audit.count() != 0 {
		t.Error("invalid report must not be stored or audited")
	}
}

func TestSaveDiagnosticReport_StorageFailure(t *testing.T) {
	svc, repo, audit := newTestService()
	repo.err = errors.New("timeout")

	_, err := svc.SaveDiagnosticReport(context.Background(), lipidPanel("p1"), "u1")
	if fhir.StatusCode(err) != 500 {
		t.Fatalf("expected 500, got %v", err)
	}
	if audit.count() != 0 {
		t.Error("failed save must not be audited")
	}
}

func TestGetDiagnosticReportsByPatient_Ordering(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	undated := lipidPanel("p1")
	undated.ID = "undated"
	march := lipidPanel("p1")
	march.ID = "march"
	march.EffectiveDateTime = "2024-03-01"
	may := lipidPanel("p1")
	may.ID = "may"
	may.EffectiveDateTime = "2024-05-01"
	for _, r := range []*fhirmodels.DiagnosticReport{undated, march, may} {
		if _, err := svc.SaveDiagnosticReport(ctx, r, "u1"); err != nil {
			t.Fatal(err)
		}
	}

	items, err := svc.GetDiagnosticReportsByPatient(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, r := range items {
		ids = append(ids, r.ID)
	}
	if len(ids) != 3 || ids[0] != "may" || ids[1] != "march" || ids[2] != "undated" {
		t.Errorf("order = %v", ids)
	}

	if _, err := svc.GetDiagnosticReportsByPatient(ctx, ""); !fhir.IsValidation(err) {
		t.Errorf("empty patient id: %v", err)
	}
}

func TestGetDiagnosticReportByID(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	r, err := svc.GetDiagnosticReportByID(ctx, "missing")
	if err != nil || r != nil {
		t.Errorf("expected nil, nil; got %v, %v", r, err)
	}

	saved, err := svc.SaveDiagnosticReport(ctx, lipidPanel("p1"), "u1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.GetDiagnosticReportByID(ctx, saved.ID)
	if err != nil || got == nil || got.Conclusion != "LDL mildly elevated" {
		t.Errorf("got %+v, %v", got, err)
	}
}
