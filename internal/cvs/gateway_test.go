package cvs

import (
	"context"
	"errors"
	"testing"
	"time"
)

// failingRepo fails every operation, standing in for a broken primary store.
type failingRepo struct {
	err error
}

func (f *failingRepo) Create(ctx context.Context, cv CV) error { return f.err }
func (f *failingRepo) GetByURLId(ctx context.Context, urlID string) (CV, error) {
	return CV{}, f.err
}
func (f *failingRepo) GetByCustomURLName(ctx context.Context, name string) (CV, error) {
	return CV{}, f.err
}
func (f *failingRepo) Update(ctx context.Context, cv CV) error { return f.err }
func (f *failingRepo) IncrementView(ctx context.Context, urlID string, at time.Time) error {
	return f.err
}
func (f *failingRepo) RecordSectionInteraction(ctx context.Context, urlID, sectionID, sectionTitle string, at time.Time) error {
	return f.err
}
func (f *failingRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]CV, error) {
	return nil, f.err
}
func (f *failingRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	return 0, f.err
}
func (f *failingRepo) Delete(ctx context.Context, urlID string) error { return f.err }

func testCV(urlID, userID string) CV {
	return CV{
		ID:         "id-" + urlID,
		URLId:      urlID,
		UserID:     userID,
		FileName:   "cv.pdf",
		UploadDate: time.Now().UTC(),
	}
}

func TestGateway_MemoryMode(t *testing.T) {
	g := NewGateway(nil, NewMemoryRepo())
	if g.Mode() != "memory" {
		t.Fatalf("mode: %q", g.Mode())
	}

	ctx := context.Background()
	if err := g.Create(ctx, testCV("u1", "alice")); err != nil {
		t.Fatalf("create: %v", err)
	}
	cv, err := g.GetByURLId(ctx, "u1")
	if err != nil || cv.URLId != "u1" {
		t.Fatalf("get: %v %+v", err, cv)
	}
}

func TestGateway_WriteFallsBackToMemory(t *testing.T) {
	primary := &failingRepo{err: errors.New("connection refused")}
	g := NewGateway(primary, NewMemoryRepo())
	if g.Mode() != "postgres" {
		t.Fatalf("mode: %q", g.Mode())
	}

	ctx := context.Background()
	// The write must still report success.
	if err := g.Create(ctx, testCV("u1", "alice")); err != nil {
		t.Fatalf("create with broken primary: %v", err)
	}

	// And the record must be readable through the gateway.
	cv, err := g.GetByURLId(ctx, "u1")
	if err != nil {
		t.Fatalf("read after fallback: %v", err)
	}
	if cv.UserID != "alice" {
		t.Fatalf("unexpected record: %+v", cv)
	}
}

func TestGateway_ReadChecksMemoryAfterPrimaryMiss(t *testing.T) {
	mem := NewMemoryRepo()
	g := NewGateway(&MemoryRepo{byURL: map[string]CV{}, byName: map[string]string{}}, mem)

	ctx := context.Background()
	cv := testCV("u2", "bob")
	cv.CustomURLName = "bob-abc123"
	if err := mem.Create(ctx, cv); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	got, err := g.GetByURLId(ctx, "u2")
	if err != nil || got.URLId != "u2" {
		t.Fatalf("urlId read: %v %+v", err, got)
	}
	got, err = g.GetByCustomURLName(ctx, "bob-abc123")
	if err != nil || got.URLId != "u2" {
		t.Fatalf("custom name read: %v %+v", err, got)
	}
}

func TestGateway_ListMergesFallbackRecords(t *testing.T) {
	primary := NewMemoryRepo()
	mem := NewMemoryRepo()
	g := NewGateway(primary, mem)

	ctx := context.Background()
	older := testCV("p1", "alice")
	older.UploadDate = time.Now().UTC().Add(-time.Hour)
	if err := primary.Create(ctx, older); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
	if err := mem.Create(ctx, testCV("m1", "alice")); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	list, err := g.ListByUser(ctx, "alice", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected merged list of 2, got %d", len(list))
	}
	if list[0].URLId != "m1" {
		t.Fatalf("expected newest first, got %q", list[0].URLId)
	}

	count, err := g.CountByUser(ctx, "alice")
	if err != nil || count != 2 {
		t.Fatalf("count: %v %d", err, count)
	}
}

func TestGateway_ViewCountersFallBack(t *testing.T) {
	primary := &failingRepo{err: errors.New("connection refused")}
	g := NewGateway(primary, NewMemoryRepo())

	ctx := context.Background()
	if err := g.Create(ctx, testCV("u3", "carol")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := g.IncrementView(ctx, "u3", time.Now().UTC()); err != nil {
		t.Fatalf("increment view: %v", err)
	}
	if err := g.RecordSectionInteraction(ctx, "u3", "section-0", "Experience", time.Now().UTC()); err != nil {
		t.Fatalf("record interaction: %v", err)
	}

	cv, err := g.GetByURLId(ctx, "u3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cv.Views != 1 || len(cv.SectionInteractions) != 1 {
		t.Fatalf("counters not applied: views=%d interactions=%d", cv.Views, len(cv.SectionInteractions))
	}
}
