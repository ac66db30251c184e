package application

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

const (
	pathA = "data/table_a.json"
	pathB = "data/table_b.json"
)

var rowTime = time.Date(2025, 11, 4, 8, 30, 0, 0, time.UTC)

func fixtureDocument(t *testing.T) string {
	t.Helper()
	doc := model.TableDocument{
		Columns: []model.Column{
			{ID: "c1", Name: "Policy Name", Type: "text", Format: model.ColumnFormat{Type: "text"}},
			{ID: "c2", Name: "Regions", Type: "multi", Format: model.ColumnFormat{Type: "select", IsArray: true}},
		},
		Rows: []model.Row{
			{ID: "r1", Name: "First", Index: 0, Values: model.Map{"Policy Name": model.Text("First"), "Regions": model.List{model.Text("EU")}}, CreatedAt: rowTime, UpdatedAt: rowTime},
			{ID: "r2", Name: "Second", Index: 1, Values: model.Map{"Policy Name": model.Text("Second")}, CreatedAt: rowTime, UpdatedAt: rowTime},
		},
	}
	out, err := doc.MarshalIndent()
	require.NoError(t, err)
	return string(out)
}

type engineFixture struct {
	engine   *RowMutationEngine
	store    *fakeDocumentStore
	clock    *fakeClock
	observer *fakeMutationObserver
}

func newEngineFixture(t *testing.T, users UserSource) *engineFixture {
	t.Helper()
	store := newFakeDocumentStore()
	store.seed(pathA, fixtureDocument(t))
	store.seed(pathB, fixtureDocument(t))
	clock := newFakeClock(time.Date(2026, 1, 2, 3, 4, 5, 678_000_000, time.UTC))
	observer := &fakeMutationObserver{}
	engine := NewRowMutationEngine(store, NewInputSanitizer(), NewTableRegistry(pathA, pathB), users,
		WithMutationClock(clock.Now),
		WithRowIDGenerator(func() string { return "new-fixed" }),
		WithMutationObserver(observer),
	)
	return &engineFixture{engine: engine, store: store, clock: clock, observer: observer}
}

func TestAppend_AddsRowAsPureAddition(t *testing.T) {
	f := newEngineFixture(t, staticUser{login: "octocat"})
	original := fixtureDocument(t)

	res, err := f.engine.Append(context.Background(), model.TableA, RowInput{
		Name:   "Third",
		Values: model.Map{"Policy Name": model.Text("Third ✓ 政策")},
	})
	require.NoError(t, err)

	puts := f.store.putRequests()
	require.Len(t, puts, 1)
	put := puts[0]
	assert.Equal(t, pathA, put.Path)
	assert.Equal(t, "main", put.Branch)
	assert.Equal(t, "sha-1", put.Fingerprint)
	assert.Equal(t, "Add new row to tableA by octocat", put.Message)

	// Everything up to the last row's closing brace is untouched.
	head := strings.TrimSuffix(original, "\n  ]\n}\n")
	assert.True(t, strings.HasPrefix(put.Content, head))
	assert.True(t, strings.HasSuffix(put.Content, "    }\n  ]\n}\n"))

	doc, err := model.ParseTableDocument([]byte(put.Content))
	require.NoError(t, err)
	require.Len(t, doc.Rows, 3)
	added := doc.Rows[2]
	assert.Equal(t, "new-fixed", added.ID)
	assert.Equal(t, "Third", added.Name)
	assert.Equal(t, 2, added.Index)
	assert.Equal(t, model.Text("Third ✓ 政策"), added.Values["Policy Name"])
	assert.Equal(t, f.clock.Now().Truncate(time.Millisecond), added.CreatedAt)
	assert.Equal(t, added.CreatedAt, added.UpdatedAt)
	assert.Len(t, doc.Columns, 2)

	assert.Equal(t, "new-fixed", res.Row.ID)
	assert.Equal(t, "commit-3", res.Write.CommitSHA)
	assert.Equal(t, []recordedMutation{{"tableA", "append", "ok"}}, f.observer.seen)
}

func TestAppend_DefaultNameAndCommitUser(t *testing.T) {
	f := newEngineFixture(t, nil)

	res, err := f.engine.Append(context.Background(), model.TableB, RowInput{})
	require.NoError(t, err)

	assert.Equal(t, "Row new-fixed", res.Row.Name)
	assert.Equal(t, model.Map{}, res.Row.Values)
	assert.Equal(t, "Add new row to tableB by User", f.store.putRequests()[0].Message)
}

func TestAppend_PreservesCRLF(t *testing.T) {
	f := newEngineFixture(t, nil)
	crlf := strings.ReplaceAll(fixtureDocument(t), "\n", "\r\n")
	f.store.seed(pathA, crlf)

	_, err := f.engine.Append(context.Background(), model.TableA, RowInput{Name: "x"})
	require.NoError(t, err)

	content := f.store.putRequests()[0].Content
	assert.True(t, strings.HasPrefix(content, strings.TrimSuffix(crlf, "\r\n  ]\r\n}\r\n")))
	assert.Equal(t, strings.Count(content, "\n"), strings.Count(content, "\r\n"), "every line ending is CRLF")

	doc, err := model.ParseTableDocument([]byte(content))
	require.NoError(t, err)
	assert.Len(t, doc.Rows, 3)
}

func TestAppend_NoTrailingNewline(t *testing.T) {
	f := newEngineFixture(t, nil)
	original := strings.TrimSuffix(fixtureDocument(t), "\n")
	f.store.seed(pathA, original)

	_, err := f.engine.Append(context.Background(), model.TableA, RowInput{Name: "x"})
	require.NoError(t, err)

	content := f.store.putRequests()[0].Content
	assert.True(t, strings.HasPrefix(content, strings.TrimSuffix(original, "\n  ]\n}")))
	assert.True(t, strings.HasSuffix(content, "    }\n  ]\n}"), "no line ending added after the closing brace")

	doc, err := model.ParseTableDocument([]byte(content))
	require.NoError(t, err)
	assert.Len(t, doc.Rows, 3)
}

func TestAppend_StructuralMismatchIssuesNoWrite(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"compact document", `{"columns":[],"rows":[{"id":"r1","name":"a","index":0,"values":{}}]}`},
		{"key after rows", strings.TrimSuffix(fixtureDocument(t), "\n}\n") + ",\n  \"meta\": 1\n}\n"},
		{"empty rows", "{\n  \"columns\": [],\n  \"rows\": []\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, nil)
			f.store.seed(pathA, tt.content)

			_, err := f.engine.Append(context.Background(), model.TableA, RowInput{Name: "x"})
			require.ErrorIs(t, err, model.ErrStructuralMismatch)
			assert.Empty(t, f.store.putRequests())
			assert.Equal(t, "structural_mismatch", f.observer.seen[0].outcome)
		})
	}
}

func TestAppend_ParseFailure(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.store.seed(pathA, "{ not json")

	_, err := f.engine.Append(context.Background(), model.TableA, RowInput{Name: "x"})
	require.ErrorIs(t, err, model.ErrParseFailure)
	assert.Empty(t, f.store.putRequests())
}

func TestAppend_ValidationFailsBeforeAnyRemoteCall(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Append(context.Background(), model.TableA, RowInput{
		Values: model.Map{"Notes": model.Text("<script>alert(1)</script>")},
	})

	require.ErrorIs(t, err, model.ErrValidationFailed)
	assert.Equal(t, "Notes: Potentially dangerous content detected and removed", err.Error())
	assert.Zero(t, f.store.getCount())
	assert.Empty(t, f.store.putRequests())
}

func TestAppend_ConflictIsDistinct(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.store.staleAfterGet = true

	_, err := f.engine.Append(context.Background(), model.TableA, RowInput{Name: "x"})

	require.ErrorIs(t, err, model.ErrConflictWriteRejected)
	assert.NotErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, "conflict", model.ErrorCode(err))
	assert.Equal(t, 1, f.store.getCount(), "no automatic retry")
	assert.Equal(t, "conflict", f.observer.seen[0].outcome)
}

func TestAppend_UnknownTable(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Append(context.Background(), model.TableID("tableC"), RowInput{Name: "x"})
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, f.store.getCount())
}

func TestUpdate_MergesAndRewrites(t *testing.T) {
	f := newEngineFixture(t, staticUser{login: "octocat"})
	name := "First (revised)"
	otherID := "hijacked"

	res, err := f.engine.Update(context.Background(), model.TableA, "r1", RowPatch{
		ID:     &otherID,
		Name:   &name,
		Values: model.Map{"Policy Name": model.Text("First (revised)")},
	})
	require.NoError(t, err)

	put := f.store.putRequests()[0]
	assert.Equal(t, "Update row r1 in tableA by octocat", put.Message)
	assert.Equal(t, "sha-1", put.Fingerprint)
	assert.True(t, strings.HasSuffix(put.Content, "\n}\n"))

	doc, err := model.ParseTableDocument([]byte(put.Content))
	require.NoError(t, err)
	require.Len(t, doc.Rows, 2)
	row := doc.Rows[0]
	assert.Equal(t, "r1", row.ID)
	assert.Equal(t, name, row.Name)
	assert.Equal(t, model.Map{"Policy Name": model.Text("First (revised)")}, row.Values, "values replaced wholesale")
	assert.Equal(t, rowTime, row.CreatedAt)
	assert.True(t, row.UpdatedAt.After(rowTime))
	assert.Equal(t, "r2", doc.Rows[1].ID)
	assert.Equal(t, "r1", res.Row.ID)
}

func TestUpdate_SetValuesMergesKeys(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Update(context.Background(), model.TableA, "r1", RowPatch{
		SetValues: model.Map{"Status": model.Text("Adopted")},
	})
	require.NoError(t, err)

	doc, err := model.ParseTableDocument([]byte(f.store.putRequests()[0].Content))
	require.NoError(t, err)
	values := doc.Rows[0].Values
	assert.Equal(t, model.Text("Adopted"), values["Status"])
	assert.Equal(t, model.Text("First"), values["Policy Name"])
	assert.Equal(t, "First", doc.Rows[0].Name)
}

func TestUpdate_UpdatedAtAlwaysAdvances(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.clock.Set(rowTime.Add(-time.Hour))

	res, err := f.engine.Update(context.Background(), model.TableA, "r2", RowPatch{})
	require.NoError(t, err)

	assert.True(t, res.Row.UpdatedAt.After(rowTime))
	assert.Equal(t, rowTime.Add(time.Millisecond), res.Row.UpdatedAt)
}

func TestUpdate_NotFoundIssuesNoWrite(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Update(context.Background(), model.TableA, "missing", RowPatch{})

	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, f.store.putRequests())
	assert.Equal(t, []recordedMutation{{"tableA", "update", "not_found"}}, f.observer.seen)
}

func TestUpdate_ConflictIsDistinct(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.store.staleAfterGet = true

	_, err := f.engine.Update(context.Background(), model.TableB, "r1", RowPatch{})

	require.ErrorIs(t, err, model.ErrConflictWriteRejected)
	assert.NotErrorIs(t, err, model.ErrNotFound)
}

func TestUpdate_ValidationFailure(t *testing.T) {
	f := newEngineFixture(t, nil)

	_, err := f.engine.Update(context.Background(), model.TableA, "r1", RowPatch{
		SetValues: model.Map{"Link": model.Text("javascript:alert(1)")},
	})

	require.ErrorIs(t, err, model.ErrValidationFailed)
	assert.Zero(t, f.store.getCount())
}

func TestFetch(t *testing.T) {
	f := newEngineFixture(t, nil)

	doc, file, err := f.engine.Fetch(context.Background(), model.TableB)
	require.NoError(t, err)
	assert.Len(t, doc.Rows, 2)
	assert.Equal(t, "sha-2", file.Fingerprint)
}
