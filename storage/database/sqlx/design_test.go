package sqlxrepos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
	"github.com/trezcool/certstudio/storage/database"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "certstudio.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := database.Migrate(context.Background(), db, "up"); err != nil {
		t.Fatal(err)
	}
	return db
}

func testDesign(id, owner, title string, createdAt time.Time) certificate.Design {
	return certificate.Design{
		ID:       id,
		OwnerID:  owner,
		Title:    title,
		FileName: title + ".png",
		Mode:     certificate.ModeFreeform,
		Document: certificate.Document{
			Texts: []certificate.TextElement{{ID: "t1", X: 50, Y: 50, Text: "Awarded to %{{name}}%", FontSize: 24, FontFamily: "Arial", Fill: "#000000"}},
		},
		Placeholders: certificate.Placeholders{{ID: "p1", Label: "Name", Token: "name", IsVisible: true}},
		Checksum:     "abc",
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func TestDesignRepository(t *testing.T) {
	repo := NewDesignRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	d1 := testDesign("d1", "owner-1", "Go 101", now)
	d1.IssuedTo = "Ann Smith"
	created, err := repo.CreateDesign(ctx, d1)
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "d1" {
		t.Errorf("CreateDesign() = %+v", created)
	}
	if _, err := repo.CreateDesign(ctx, testDesign("d2", "owner-1", "Go 101", now)); err != certificate.ErrTitleExists {
		t.Errorf("CreateDesign(same title) error = %v, want %v", err, certificate.ErrTitleExists)
	}
	for i, d := range []certificate.Design{
		testDesign("d3", "owner-2", "Go 101", now.Add(time.Hour)),
		testDesign("d4", "owner-1", "Rust 100%", now.Add(2*time.Hour)),
	} {
		if _, err := repo.CreateDesign(ctx, d); err != nil {
			t.Fatalf("CreateDesign(%d) error = %v", i, err)
		}
	}

	got, err := repo.GetDesignByID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Go 101" || got.IssuedTo != "Ann Smith" || got.IssuedToEmail != "" || !got.CreatedAt.Equal(now) {
		t.Errorf("GetDesignByID() = %+v", got)
	}
	if len(got.Document.Texts) != 1 || got.Document.Texts[0].Text != "Awarded to %{{name}}%" {
		t.Errorf("document = %+v", got.Document)
	}
	if len(got.Placeholders) != 1 || got.Placeholders[0].Token != "name" {
		t.Errorf("placeholders = %+v", got.Placeholders)
	}
	if _, err := repo.GetDesignByID(ctx, "nope"); err != certificate.ErrNotFound {
		t.Errorf("GetDesignByID(unknown) error = %v", err)
	}

	tests := []struct {
		name   string
		filter certificate.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{"d1", "d3", "d4"}},
		{name: "owner", filter: certificate.QueryFilter{OwnerID: "owner-1"}, want: []string{"d1", "d4"}},
		{name: "search title", filter: certificate.QueryFilter{Search: "go"}, want: []string{"d1", "d3"}},
		{name: "search issued to", filter: certificate.QueryFilter{Search: "smith"}, want: []string{"d1"}},
		{name: "search wildcard is literal", filter: certificate.QueryFilter{Search: "100%"}, want: []string{"d4"}},
		{name: "mode", filter: certificate.QueryFilter{Mode: certificate.ModeTemplated}, want: []string{}},
		{
			name:   "ordering",
			filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "created_at", Ascending: false}}},
			want:   []string{"d4", "d3", "d1"},
		},
		{
			name:   "unknown ordering is ignored",
			filter: certificate.QueryFilter{Ordering: []core.DBOrdering{{Field: "1; DROP TABLE designs", Ascending: true}}},
			want:   []string{"d4", "d3", "d1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.filter.Ordering == nil {
				tt.filter.Ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
			}
			designs, err := repo.FilterDesigns(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := make([]string, 0, len(designs))
			for _, d := range designs {
				ids = append(ids, d.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("FilterDesigns() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("FilterDesigns() = %v, want %v", ids, tt.want)
				}
			}
		})
	}

	if err := repo.DeleteDesign(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteDesign(ctx, "d1"); err != certificate.ErrNotFound {
		t.Errorf("DeleteDesign(deleted) error = %v", err)
	}
}
