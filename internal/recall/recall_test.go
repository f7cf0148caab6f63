package recall_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sagewright/colossi/internal/recall"
	"github.com/sagewright/colossi/pkg/provider/embeddings/mock"
)

// stringRows implements pgx.Rows over a fixed list of single-column string
// results.
type stringRows struct {
	values []string
	idx    int
}

func (r *stringRows) Close()                                       {}
func (r *stringRows) Err() error                                   { return nil }
func (r *stringRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stringRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stringRows) RawValues() [][]byte                          { return nil }
func (r *stringRows) Conn() *pgx.Conn                              { return nil }
func (r *stringRows) Values() ([]any, error)                       { return nil, nil }

func (r *stringRows) Next() bool {
	if r.idx >= len(r.values) {
		return false
	}
	r.idx++
	return true
}

func (r *stringRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.values[r.idx-1]
	return nil
}

type mockDB struct {
	execSQL   []string
	execArgs  [][]any
	queryRows pgx.Rows
	queryArgs [][]any
}

func (db *mockDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.execSQL = append(db.execSQL, sql)
	db.execArgs = append(db.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *mockDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	db.queryArgs = append(db.queryArgs, args)
	if db.queryRows == nil {
		return &stringRows{}, nil
	}
	return db.queryRows, nil
}

func TestRecallIndex(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	emb := &mock.Provider{EmbedResult: []float32{0.1, 0.2}, DimensionsValue: 2}
	r, err := recall.New(db, emb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := r.Index(context.Background(), "sess-1", "You open the gate."); err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if len(emb.EmbedCalls) != 1 || emb.EmbedCalls[0].Text != "You open the gate." {
		t.Errorf("EmbedCalls = %+v", emb.EmbedCalls)
	}
	if len(db.execArgs) != 1 {
		t.Fatalf("Exec calls = %d", len(db.execArgs))
	}
	if db.execArgs[0][1] != "sess-1" || db.execArgs[0][2] != "You open the gate." {
		t.Errorf("insert args = %v", db.execArgs[0])
	}
}

func TestRecallIndexEmbedFailure(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	emb := &mock.Provider{EmbedErr: errors.New("backend down")}
	r, err := recall.New(db, emb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := r.Index(context.Background(), "sess-1", "entry"); err == nil {
		t.Error("Index() error = nil, want embed failure")
	}
	if len(db.execSQL) != 0 {
		t.Error("Index wrote despite embed failure")
	}
}

func TestRecallRelevant(t *testing.T) {
	t.Parallel()

	db := &mockDB{queryRows: &stringRows{values: []string{"older snippet", "other snippet"}}}
	emb := &mock.Provider{EmbedResult: []float32{0.1, 0.2}}
	r, err := recall.New(db, emb, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Relevant(context.Background(), "sess-1", "open the gate", 2)
	if err != nil {
		t.Fatalf("Relevant() error = %v", err)
	}
	if len(got) != 2 || got[0] != "older snippet" {
		t.Errorf("Relevant() = %v", got)
	}

	// k <= 0 short-circuits without embedding.
	emb.Reset()
	if got, err := r.Relevant(context.Background(), "sess-1", "x", 0); err != nil || got != nil {
		t.Errorf("Relevant(k=0) = (%v, %v)", got, err)
	}
	if len(emb.EmbedCalls) != 0 {
		t.Error("Relevant(k=0) embedded anyway")
	}
}

func TestNoop(t *testing.T) {
	t.Parallel()

	var n recall.Noop
	if err := n.Index(context.Background(), "s", "e"); err != nil {
		t.Errorf("Noop.Index() = %v", err)
	}
	if got, err := n.Relevant(context.Background(), "s", "a", 3); err != nil || got != nil {
		t.Errorf("Noop.Relevant() = (%v, %v)", got, err)
	}
}
