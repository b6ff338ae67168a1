package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type doc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.raw
	return nil
}

// fakeRows implements the parts of pgx.Rows the helpers use.
type fakeRows struct {
	pgx.Rows
	data   [][]byte
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	*(dest[0].(*[]byte)) = r.data[r.pos-1]
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     { r.closed = true }

type fakeQuerier struct {
	row      fakeRow
	rows     *fakeRows
	queryErr error
}

func (q *fakeQuerier) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	if q.queryErr != nil {
		return nil, q.queryErr
	}
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return q.row
}

func TestGetResource(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{raw: []byte(`{"id":"a","name":"alpha"}`)}}
	got, err := GetResource[doc](context.Background(), q, "SELECT")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "a" || got.Name != "alpha" {
		t.Errorf("got %+v", got)
	}
}

func TestGetResource_NoRows(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	got, err := GetResource[doc](context.Background(), q, "SELECT")
	if err != nil || got != nil {
		t.Errorf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestGetResource_Errors(t *testing.T) {
	boom := errors.New("boom")
	if _, err := GetResource[doc](context.Background(), &fakeQuerier{row: fakeRow{err: boom}}, "SELECT"); !errors.Is(err, boom) {
		t.Errorf("expected scan error, got %v", err)
	}
	if _, err := GetResource[doc](context.Background(), &fakeQuerier{row: fakeRow{raw: []byte(`{`)}}, "SELECT"); err == nil {
		t.Error("expected decode error")
	}
}

func TestListResources_PreservesOrder(t *testing.T) {
	rows := &fakeRows{data: [][]byte{[]byte(`{"id":"2"}`), []byte(`{"id":"1"}`)}}
	items, err := ListResources[doc](context.Background(), &fakeQuerier{rows: rows}, "SELECT")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID != "2" || items[1].ID != "1" {
		t.Errorf("items = %+v", items)
	}
	if !rows.closed {
		t.Error("rows should be closed")
	}
}

func TestListResources_EmptyIsNonNil(t *testing.T) {
	items, err := ListResources[doc](context.Background(), &fakeQuerier{rows: &fakeRows{}}, "SELECT")
	if err != nil || items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %v, %v", items, err)
	}
	if _, err := ListResources[doc](context.Background(), &fakeQuerier{queryErr: errors.New("down")}, "SELECT"); err == nil {
		t.Error("expected query error")
	}
}
