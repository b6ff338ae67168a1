package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ehr/resourceaccess/pkg/fhirmodels"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, headers map[string]string) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(ClientConfig{BaseURL: srv.URL + "/fhir", Headers: headers}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func writeFHIR(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", FHIRMediaType)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{BaseURL: "not a url"}, zerolog.Nop()); err == nil {
		t.Error("expected error for relative base URL")
	}
}

func TestClient_GetResource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/fhir/Condition/c1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != FHIRMediaType {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != FHIRMediaType {
			t.Errorf("Content-Type = %q", got)
		}
		writeFHIR(w, http.StatusOK, `{"resourceType":"Condition","id":"c1","subject":{"reference":"Patient/p1"},"code":{"text":"Asthma"}}`)
	}, nil)

	var cond fhirmodels.Condition
	if err := c.GetResource(context.Background(), "Condition", "c1", &cond); err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if cond.ID != "c1" || cond.Code.Text != "Asthma" {
		t.Errorf("decoded condition = %+v", cond)
	}
}

func TestClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
	}{
		{"not found", http.StatusNotFound, `{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"not-found","diagnostics":"Condition/c1 not found"}]}`, KindNotFound},
		{"bad request", http.StatusBadRequest, "bad request", KindValidation},
		{"unauthorized", http.StatusUnauthorized, "", KindAuthentication},
		{"forbidden", http.StatusForbidden, "", KindAuthorization},
		{"unavailable", http.StatusServiceUnavailable, "down", KindGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeFHIR(w, tt.status, tt.body)
			}, nil)
			var cond fhirmodels.Condition
			err := c.GetResource(context.Background(), "Condition", "c1", &cond)
			var fe *Error
			if !errors.As(err, &fe) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if fe.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", fe.Kind, tt.kind)
			}
			if fe.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.status)
			}
		})
	}
}

func TestClient_OperationOutcomeDetail(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeFHIR(w, http.StatusNotFound, `{"resourceType":"OperationOutcome","issue":[{"severity":"error","code":"not-found","diagnostics":"Condition/c1 not found"}]}`)
	}, nil)
	err := c.GetResource(context.Background(), "Condition", "c1", &fhirmodels.Condition{})
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	oo, ok := AsError(err).Detail.(*OperationOutcome)
	if !ok || len(oo.Issue) != 1 {
		t.Fatalf("Detail = %#v", AsError(err).Detail)
	}
	if oo.Issue[0].Diagnostics != "Condition/c1 not found" || oo.Issue[0].Severity != IssueSeverityError {
		t.Errorf("issue = %+v", oo.Issue[0])
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := NewClient(ClientConfig{BaseURL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	srv.Close()

	err = c.DeleteResource(context.Background(), "Condition", "c1")
	if got := StatusCode(err); got != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502 (err=%v)", got, err)
	}
}

func TestClient_HeadersOverrideDefaults(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Values("Accept"); len(got) != 1 || got[0] != "application/json" {
			t.Errorf("Accept = %v, want [application/json]", got)
		}
		if got := r.Header.Get("X-Tenant-ID"); got != "t1" {
			t.Errorf("X-Tenant-ID = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != FHIRMediaType {
			t.Errorf("Content-Type = %q", got)
		}
		writeFHIR(w, http.StatusOK, `{"resourceType":"Condition","id":"c1","subject":{"reference":"Patient/p1"}}`)
	}, map[string]string{"accept": "application/json", "X-Tenant-ID": "t1"})

	if err := c.GetResource(context.Background(), "Condition", "c1", &fhirmodels.Condition{}); err != nil {
		t.Fatalf("GetResource: %v", err)
	}
}

func TestClient_SearchResources(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/fhir/Observation" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("patient"); got != "p1" {
			t.Errorf("patient = %q", got)
		}
		if got := r.URL.Query().Get("code"); got != "8867-4" {
			t.Errorf("code = %q", got)
		}
		writeFHIR(w, http.StatusOK, `{"resourceType":"Bundle","type":"searchset","entry":[
			{"resource":{"resourceType":"Observation","id":"o1","status":"final","subject":{"reference":"Patient/p1"},"valueQuantity":{"value":72,"unit":"/min"}}},
			{"resource":{"resourceType":"OperationOutcome","issue":[{"severity":"warning","code":"processing"}]},"search":{"mode":"outcome"}}
		]}`)
	}, nil)

	bundle, err := c.SearchResources(context.Background(), "Observation", map[string]string{"patient": "p1", "code": "8867-4"})
	if err != nil {
		t.Fatalf("SearchResources: %v", err)
	}
	obs, err := DecodeEntries[fhirmodels.Observation](bundle, fhirmodels.ResourceObservation)
	if err != nil {
		t.Fatalf("DecodeEntries: %v", err)
	}
	if len(obs) != 1 || obs[0].ID != "o1" {
		t.Fatalf("observations = %+v", obs)
	}
	if got := fhirmodels.FormatObservationValue(obs[0]); got != "72 /min" {
		t.Errorf("value = %q", got)
	}
}

func TestClient_CreateResource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/fhir/Condition" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = "server-1"
		out, _ := json.Marshal(body)
		writeFHIR(w, http.StatusCreated, string(out))
	}, nil)

	cond := fhirmodels.NewCondition()
	cond.Subject = fhirmodels.Reference{Reference: "Patient/p1"}
	var created fhirmodels.Condition
	if err := c.CreateResource(context.Background(), cond, &created); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	if created.ID != "server-1" {
		t.Errorf("ID = %q, want server-1", created.ID)
	}
}

func TestClient_CreateResource_MissingType(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, nil)
	err := c.CreateResource(context.Background(), map[string]string{"id": "x"}, nil)
	if !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestClient_UpdateResource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/fhir/Condition/c1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		writeFHIR(w, http.StatusOK, string(body))
	}, nil)

	cond := fhirmodels.NewCondition()
	cond.Subject = fhirmodels.Reference{Reference: "Patient/p1"}
	if err := c.UpdateResource(context.Background(), cond, nil); !IsValidation(err) {
		t.Errorf("update without id: expected validation error, got %v", err)
	}

	cond.ID = "c1"
	var updated fhirmodels.Condition
	if err := c.UpdateResource(context.Background(), cond, &updated); err != nil {
		t.Fatalf("UpdateResource: %v", err)
	}
	if updated.ID != "c1" {
		t.Errorf("ID = %q", updated.ID)
	}
}

func TestClient_DeleteResource(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/fhir/Observation/o1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}, nil)
	if err := c.DeleteResource(context.Background(), "Observation", "o1"); err != nil {
		t.Fatalf("DeleteResource: %v", err)
	}
	if err := c.DeleteResource(context.Background(), "Observation", ""); !IsValidation(err) {
		t.Errorf("empty id: expected validation error, got %v", err)
	}
}
