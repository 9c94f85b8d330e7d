package cart

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/validation"
)

// --- Mock implementations ---

type mockBookRepo struct {
	byID   map[string]catalog.Book
	getErr error
}

func (m *mockBookRepo) GetByID(_ context.Context, id string) (*catalog.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	b, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &b, nil
}

func (m *mockBookRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Book, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []catalog.Book
	for _, id := range ids {
		if b, ok := m.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeLineRepo keeps lines in insertion order and enforces (user, book)
// uniqueness like the real stores.
type fakeLineRepo struct {
	lines     []Line
	createErr error
}

func (f *fakeLineRepo) Create(_ context.Context, l *Line) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.lines {
		if existing.UserID == l.UserID && existing.BookID == l.BookID {
			return &DuplicateLineError{UserID: l.UserID, BookID: l.BookID}
		}
	}
	f.lines = append(f.lines, *l)
	return nil
}

func (f *fakeLineRepo) UpdateCount(_ context.Context, userID, id string, count int) (*Line, error) {
	for i := range f.lines {
		if f.lines[i].ID == id && f.lines[i].UserID == userID {
			f.lines[i].Count = count
			l := f.lines[i]
			return &l, nil
		}
	}
	return nil, ErrLineNotFound
}

func (f *fakeLineRepo) Delete(_ context.Context, userID, id string) error {
	for i := range f.lines {
		if f.lines[i].ID == id && f.lines[i].UserID == userID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (f *fakeLineRepo) ListByUser(_ context.Context, userID string) ([]Line, error) {
	var out []Line
	for _, l := range f.lines {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLineRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	kept := f.lines[:0]
	var n int64
	for _, l := range f.lines {
		if l.UserID == userID {
			n++
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return n, nil
}

// --- Helpers ---

func newBookRepo(books ...catalog.Book) *mockBookRepo {
	byID := make(map[string]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	return &mockBookRepo{byID: byID}
}

func newTestBook(id, title string, price int64) catalog.Book {
	return catalog.Book{
		ID:       id,
		Title:    title,
		Price:    decimal.NewFromInt(price),
		Discount: decimal.Zero,
	}
}

func newTestService(lines *fakeLineRepo, books *mockBookRepo) *Service {
	s := NewService(lines, books)
	s.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

// --- Tests ---

func TestAdd_CreatesLine(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	l, err := svc.Add(context.Background(), "u1", "b1", 2)
	require.NoError(t, err)

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, "u1", l.UserID)
	assert.Equal(t, "b1", l.BookID)
	assert.Equal(t, 2, l.Count)
	require.Len(t, lines.lines, 1)
}

func TestAdd_Duplicate(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	_, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.NoError(t, err)

	_, err = svc.Add(context.Background(), "u1", "b1", 3)

	var dup *DuplicateLineError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "u1", dup.UserID)
	assert.Equal(t, "b1", dup.BookID)
	assert.Equal(t, []string{"user", "book"}, dup.Fields())
	assert.Contains(t, err.Error(), "(user, book) must be unique")
}

func TestAdd_SameBookDifferentUsers(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	_, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "u2", "b1", 1)
	require.NoError(t, err)

	assert.Len(t, lines.lines, 2)
}

func TestAdd_Validation(t *testing.T) {
	tests := []struct {
		name      string
		bookID    string
		count     int
		wantField string
	}{
		{name: "zero count", bookID: "b1", count: 0, wantField: "count"},
		{name: "negative count", bookID: "b1", count: -2, wantField: "count"},
		{name: "missing book id", bookID: "", count: 1, wantField: "book"},
		{name: "unknown book", bookID: "nope", count: 1, wantField: "book"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := &fakeLineRepo{}
			svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

			_, err := svc.Add(context.Background(), "u1", tt.bookID, tt.count)

			var verr *validation.Error
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.wantField)
			assert.Empty(t, lines.lines)
		})
	}
}

func TestAdd_CatalogError(t *testing.T) {
	books := &mockBookRepo{getErr: errors.New("db down")}
	svc := newTestService(&fakeLineRepo{}, books)

	_, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get book")
}

func TestUpdateCount(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	l, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.NoError(t, err)

	updated, err := svc.UpdateCount(context.Background(), "u1", l.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Count)
	assert.Equal(t, "b1", updated.BookID)
}

func TestUpdateCount_OtherUsersLine(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	l, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateCount(context.Background(), "u2", l.ID, 5)
	require.ErrorIs(t, err, ErrLineNotFound)
	assert.Equal(t, 1, lines.lines[0].Count)
}

func TestUpdateCount_InvalidCount(t *testing.T) {
	svc := newTestService(&fakeLineRepo{}, newBookRepo())

	_, err := svc.UpdateCount(context.Background(), "u1", "l1", 0)

	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "gte", verr.Fields["count"])
}

func TestRemove(t *testing.T) {
	lines := &fakeLineRepo{}
	svc := newTestService(lines, newBookRepo(newTestBook("b1", "Dune", 20)))

	l, err := svc.Add(context.Background(), "u1", "b1", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(context.Background(), "u1", l.ID))
	assert.Empty(t, lines.lines)

	require.ErrorIs(t, svc.Remove(context.Background(), "u1", l.ID), ErrLineNotFound)
}

func TestList_ResolvesBooks(t *testing.T) {
	lines := &fakeLineRepo{}
	books := newBookRepo(newTestBook("b1", "Dune", 20), newTestBook("b2", "Emma", 8))
	svc := newTestService(lines, books)

	_, err := svc.Add(context.Background(), "u1", "b2", 1)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), "u1", "b1", 3)
	require.NoError(t, err)

	got, err := svc.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Emma", got[0].Book.Title)
	assert.Equal(t, "Dune", got[1].Book.Title)
	assert.Equal(t, 3, got[1].Count)
}

func TestResolve_DanglingBook(t *testing.T) {
	lines := &fakeLineRepo{lines: []Line{{ID: "l1", UserID: "u1", BookID: "gone", Count: 1}}}
	r := NewResolver(lines, newBookRepo())

	_, err := r.Resolve(context.Background(), "u1")

	var bnf *BookNotFoundError
	require.ErrorAs(t, err, &bnf)
	assert.Equal(t, "l1", bnf.LineID)
	assert.Equal(t, "gone", bnf.BookID)
}

func TestResolve_EmptyCart(t *testing.T) {
	r := NewResolver(&fakeLineRepo{}, newBookRepo())

	got, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
