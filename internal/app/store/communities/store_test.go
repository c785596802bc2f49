package communitystore

import (
	"errors"
	"testing"

	"github.com/devcanvas/devcanvas/internal/domain/models"
	"github.com/devcanvas/devcanvas/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Go Developers", "go-developers"},
		{"  Rust & WebAssembly!  ", "rust-webassembly"},
		{"C++", "c"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c, err := store.Create(ctx, models.Community{Name: " Go Developers "})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.Slug != "go-developers" || c.Name != "Go Developers" {
		t.Errorf("Create() slug/name = %q/%q", c.Slug, c.Name)
	}
	if c.Members == nil {
		t.Error("Create() should initialise members")
	}

	got, err := store.GetBySlug(ctx, "go-developers")
	if err != nil || got.ID != c.ID {
		t.Errorf("GetBySlug() = %v, %v", got, err)
	}
	if ok, _ := store.Exists(ctx, "go-developers"); !ok {
		t.Error("Exists() = false, want true")
	}
	if _, err := store.GetBySlug(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBySlug(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStore_Create_Errors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Community{Name: "Go Developers"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, models.Community{Name: "go developers"}); !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateSlug", err)
	}
	if _, err := store.Create(ctx, models.Community{Name: "!!!"}); !errors.Is(err, errEmptySlug) {
		t.Errorf("punctuation-only Create() error = %v, want errEmptySlug", err)
	}
}

func TestStore_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"Web Dev", "Game Dev", "Data Science"} {
		if _, err := store.Create(ctx, models.Community{Name: name}); err != nil {
			t.Fatalf("Create(%s) error = %v", name, err)
		}
	}

	all, total, err := store.List(ctx, "", 1, 20)
	if err != nil || total != 3 {
		t.Fatalf("List() total = %d, %v", total, err)
	}
	if all[0].Name != "Data Science" || all[2].Name != "Web Dev" {
		t.Errorf("List() not ordered by name: %v, %v, %v", all[0].Name, all[1].Name, all[2].Name)
	}

	dev, total, err := store.List(ctx, "DEV", 1, 20)
	if err != nil || total != 2 || len(dev) != 2 {
		t.Errorf("List(DEV) = %d items, total %d, %v", len(dev), total, err)
	}

	none, total, err := store.List(ctx, "(", 1, 20)
	if err != nil || total != 0 || len(none) != 0 {
		t.Errorf("List(regex metachar) = %v, %d, %v", none, total, err)
	}
}

func TestStore_ToggleMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Community{Name: "Gophers"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	a, b := primitive.NewObjectID(), primitive.NewObjectID()

	joined, n, err := store.ToggleMembership(ctx, "gophers", a)
	if err != nil || !joined || n != 1 {
		t.Errorf("join a = %v/%d, %v", joined, n, err)
	}
	joined, n, err = store.ToggleMembership(ctx, "gophers", b)
	if err != nil || !joined || n != 2 {
		t.Errorf("join b = %v/%d, %v", joined, n, err)
	}
	joined, n, err = store.ToggleMembership(ctx, "gophers", a)
	if err != nil || joined || n != 1 {
		t.Errorf("leave a = %v/%d, %v", joined, n, err)
	}

	if _, _, err := store.ToggleMembership(ctx, "missing", a); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing community error = %v, want ErrNotFound", err)
	}
}
