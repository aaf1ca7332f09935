package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cornell-notes/internal/note"
)

var (
	tableCheckSQL = regexp.QuoteMeta(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`)
	createSQL     = regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS cornell`)
	selectSQL     = regexp.QuoteMeta(`SELECT uid, title, link, icon_url, description, tags, screenshot, point, summary FROM cornell ORDER BY id ASC`)
	insertSQL     = regexp.QuoteMeta(`INSERT INTO cornell (uid, title, link, icon_url, description, tags, screenshot, point, summary)`)
	updateSQL     = regexp.QuoteMeta(`UPDATE cornell`)
	deleteSQL     = regexp.QuoteMeta(`DELETE FROM cornell WHERE uid = $1`)
)

func columns() []string {
	return []string{"uid", "title", "link", "icon_url", "description", "tags", "screenshot", "point", "summary"}
}

func newMockRepo(t *testing.T) (*NoteRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return repo, mock
}

func sampleNote() note.Note {
	return note.Note{
		UID:        "uid-1",
		Title:      "Example",
		Link:       "https://example.com",
		IconURL:    "https://example.com/favicon.ico",
		Tags:       []string{"go", "web"},
		Screenshot: "https://cdn.example.com/demo/image/upload/v1/cornell/uid-1.png",
		Point:      "- one",
		Summary:    "short",
	}
}

func TestNewWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(nil, "")
	require.Error(t, err)
	_, err = NewWithPool(mock, "notes; DROP TABLE x")
	require.Error(t, err)

	repo, err := NewWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, DefaultTable, repo.table)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestInsertCreatesTableOnce(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	n := sampleNote()

	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectExec(createSQL).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(insertSQL).
		WithArgs(n.UID, n.Title, n.Link, n.IconURL, n.Description, "go,web", n.Screenshot, n.Point, n.Summary).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	second := n
	second.UID = "uid-2"
	second.Tags = nil
	mock.ExpectExec(insertSQL).
		WithArgs(second.UID, second.Title, second.Link, second.IconURL, second.Description, "", second.Screenshot, second.Point, second.Summary).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), n))
	require.NoError(t, repo.Insert(context.Background(), second))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSkipsCreateWhenTableExists(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	n := sampleNote()

	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectExec(insertSQL).WithAnyArgs().WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Insert(context.Background(), n))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRejectsInvalidNote(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	n := sampleNote()
	n.Tags = []string{"a,b"}

	err := repo.Insert(context.Background(), n)
	require.True(t, note.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWrapsDriverErrors(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectExec(insertSQL).WithAnyArgs().WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), sampleNote())
	var perr *note.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "insert", perr.Op)
	require.Equal(t, "uid-1", perr.UID)
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListUnbounded(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(selectSQL + "$").
		WillReturnRows(mock.NewRows(columns()).
			AddRow("uid-1", "One", "https://one.example", "https://one.example/i.png", "d", "a,b", "shot", "p", "s").
			AddRow("uid-2", "Two", "https://two.example", nil, nil, nil, nil, nil, nil))

	notes, err := repo.List(context.Background(), note.ListOptions{})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	require.Equal(t, []string{"a", "b"}, notes[0].Tags)
	require.Equal(t, "https://one.example/i.png", notes[0].IconURL)
	require.Equal(t, "uid-2", notes[1].UID)
	require.Empty(t, notes[1].IconURL)
	require.Empty(t, notes[1].Screenshot)
	require.NotNil(t, notes[1].Tags)
	require.Empty(t, notes[1].Tags)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPage(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(selectSQL + regexp.QuoteMeta(` LIMIT $1 OFFSET $2`)).
		WithArgs(10, 20).
		WillReturnRows(mock.NewRows(columns()))

	notes, err := repo.List(context.Background(), note.ListOptions{Page: 2, PageSize: 10, Limited: true})
	require.NoError(t, err)
	require.NotNil(t, notes)
	require.Empty(t, notes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsBadPage(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectQuery(tableCheckSQL).WithArgs("cornell").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(int64(1)))

	_, err := repo.List(context.Background(), note.ListOptions{Limited: true})
	require.True(t, note.IsValidation(err))
}

func TestUpdateRewritesAllFields(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	n := sampleNote()
	mock.ExpectExec(updateSQL).
		WithArgs(n.Title, n.Link, n.IconURL, n.Description, "go,web", n.Screenshot, n.Point, n.Summary, n.UID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), n))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUnknownUID(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	n := sampleNote()
	mock.ExpectExec(updateSQL).
		WithArgs(n.Title, n.Link, n.IconURL, n.Description, "go,web", n.Screenshot, n.Point, n.Summary, n.UID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), n)
	require.ErrorIs(t, err, note.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	mock.ExpectExec(deleteSQL).WithArgs("uid-1").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(deleteSQL).WithArgs("missing").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "uid-1"))
	require.ErrorIs(t, repo.Delete(context.Background(), "missing"), note.ErrNotFound)
	require.True(t, note.IsValidation(repo.Delete(context.Background(), "")))
	require.NoError(t, mock.ExpectationsWereMet())
}
