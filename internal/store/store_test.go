package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/travo-ai/travo/internal/log"
)

// fakeRows implements pgx.Rows over pre-typed values. Scan assigns
// each value to the matching destination pointer.
type fakeRows struct {
	rows [][]any
	pos  int
}

func (f *fakeRows) Close()                                       {}
func (f *fakeRows) Err() error                                   { return nil }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (f *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	// pgx.Row usage (QueryRow) scans without calling Next first.
	idx := f.pos - 1
	if idx < 0 {
		idx = 0
	}
	row := f.rows[idx]
	for i, d := range dest {
		switch p := d.(type) {
		case *pgtype.UUID:
			*p = row[i].(pgtype.UUID)
		case *string:
			*p = row[i].(string)
		case *[]byte:
			if row[i] == nil {
				*p = nil
			} else {
				*p = row[i].([]byte)
			}
		case *pgtype.Timestamptz:
			*p = row[i].(pgtype.Timestamptz)
		}
	}
	return nil
}

type fakeDB struct {
	rows    *fakeRows
	execTag pgconn.CommandTag
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return f.rows, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.rows
}

func (f *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return f.execTag, nil
}

func messageRow(id uuid.UUID, userID uuid.UUID, role, text string, at time.Time) []any {
	return []any{
		uuidToPg(id), uuidToPg(userID), role, text, nil,
		pgtype.Timestamptz{Time: at, Valid: true},
	}
}

func TestAppendRejectsUnknownRole(t *testing.T) {
	s := New(&fakeDB{}, log.NewNop())
	if _, err := s.Append(context.Background(), uuid.New(), Role("system"), "x", nil); err == nil {
		t.Fatal("Append with role system succeeded, want error")
	}
}

func TestAppendReturnsGeneratedFields(t *testing.T) {
	id := uuid.New()
	at := time.Now().UTC().Truncate(time.Second)
	db := &fakeDB{rows: &fakeRows{rows: [][]any{
		{uuidToPg(id), pgtype.Timestamptz{Time: at, Valid: true}},
	}}}

	s := New(db, log.NewNop())
	userID := uuid.New()
	msg, err := s.Append(context.Background(), userID, RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if msg.ID != id {
		t.Errorf("ID = %v, want %v", msg.ID, id)
	}
	if !msg.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", msg.CreatedAt, at)
	}
	if msg.UserID != userID || msg.Role != RoleUser || msg.Text != "hello" {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestListRecentReturnsAscending(t *testing.T) {
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Query returns newest first, as the SQL does.
	db := &fakeDB{rows: &fakeRows{rows: [][]any{
		messageRow(uuid.New(), userID, "assistant", "third", base.Add(2*time.Minute)),
		messageRow(uuid.New(), userID, "user", "second", base.Add(time.Minute)),
		messageRow(uuid.New(), userID, "user", "first", base),
	}}}

	s := New(db, log.NewNop())
	msgs, err := s.ListRecent(context.Background(), userID, 20, uuid.New())
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
	if !msgs[0].CreatedAt.Before(msgs[1].CreatedAt) {
		t.Error("messages not in ascending time order")
	}
}

func TestDeleteAllReturnsCount(t *testing.T) {
	db := &fakeDB{execTag: pgconn.NewCommandTag("DELETE 7")}
	s := New(db, log.NewNop())

	n, err := s.DeleteAll(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}
