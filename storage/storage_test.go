package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"products-api/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "products.db")
	db, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { Close(db) })
	return db, path
}

func setupStore(t *testing.T) *ProductStore {
	t.Helper()
	db, _ := setupTestDB(t)
	if err := NewInitializer(db).Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return NewProductStore(db)
}

func strPtr(s string) *string { return &s }
func intPtr(i int64) *int64   { return &i }
func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestOpenUnsupportedURL(t *testing.T) {
	if _, err := Open("mysql://localhost/products"); err == nil {
		t.Error("Open should reject unsupported URLs")
	}
	if _, err := Open("sqlite://"); err == nil {
		t.Error("Open should reject an empty sqlite path")
	}
}

func TestOpenCreatesDataDirectory(t *testing.T) {
	_, path := setupTestDB(t)
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("Data directory should exist: %v", err)
	}
}

func TestInitializeSeedsEmptyStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	products, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("Expected 1 seed row, got %d", len(products))
	}

	seed := products[0]
	if seed.Name == nil || *seed.Name != "Air Source Heat Pump" {
		t.Errorf("Unexpected seed name: %v", seed.Name)
	}
	if seed.Manufacture == nil || *seed.Manufacture != "Generic Manufacturer" {
		t.Errorf("Unexpected seed manufacture: %v", seed.Manufacture)
	}
	if seed.Price == nil || *seed.Price != 45000 {
		t.Errorf("Unexpected seed price: %v", seed.Price)
	}
	if !seed.Output.Valid || !seed.Output.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Unexpected seed output: %v", seed.Output)
	}
	if !seed.Width.Valid || !seed.Width.Decimal.Equal(decimal.NewFromInt(80)) {
		t.Errorf("Unexpected seed width: %v", seed.Width)
	}
	if !seed.Height.Valid || !seed.Height.Decimal.Equal(decimal.NewFromInt(120)) {
		t.Errorf("Unexpected seed height: %v", seed.Height)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	initializer := NewInitializer(db)

	for i := 0; i < 3; i++ {
		if err := initializer.Initialize(ctx); err != nil {
			t.Fatalf("Initialize run %d failed: %v", i+1, err)
		}
	}

	count, err := NewProductStore(db).Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 row after repeated initialization, got %d", count)
	}
}

func TestInitializeDoesNotReseedNonEmptyStore(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()
	initializer := NewInitializer(db)
	store := NewProductStore(db)

	if err := initializer.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete seed failed: %v", err)
	}
	if _, err := store.Create(ctx, models.ProductInput{Name: strPtr("Pump2")}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := initializer.Initialize(ctx); err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}

	products, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 1 || *products[0].Name != "Pump2" {
		t.Errorf("Non-empty store should not be reseeded, got %+v", products)
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	in := models.ProductInput{
		Name:        strPtr("Pump2"),
		Manufacture: strPtr("Acme"),
		Output:      dec("7.25"),
		Price:       intPtr(30000),
		Width:       dec("60.5"),
		Height:      dec("90"),
	}

	created, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != 2 {
		t.Errorf("Expected generated id 2 after the seed row, got %d", created.ID)
	}
	assertFields(t, created, in)

	fetched, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.ID != created.ID {
		t.Errorf("Expected id %d, got %d", created.ID, fetched.ID)
	}
	assertFields(t, fetched, in)
}

func TestCreateWithNullFields(t *testing.T) {
	store := setupStore(t)

	created, err := store.Create(context.Background(), models.ProductInput{Name: strPtr("Pump2"), Price: intPtr(30000)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Manufacture != nil || created.Output.Valid || created.Width.Valid || created.Height.Valid {
		t.Errorf("Unset fields should come back null, got %+v", created)
	}
}

func TestGetNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get(context.Background(), 99999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUpdateReplacesAllFields(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	in := models.ProductInput{Name: strPtr("X"), Price: intPtr(1)}
	updated, err := store.Update(ctx, 1, in)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.ID != 1 {
		t.Errorf("Update should keep id 1, got %d", updated.ID)
	}
	assertFields(t, updated, in)

	fetched, err := store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	assertFields(t, fetched, in)
}

func TestUpdateNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Update(context.Background(), 42, models.ProductInput{Name: strPtr("X")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIsFinal(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete should be ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Second delete should be ErrNotFound, got %v", err)
	}
}

func TestIDsAreNotReusedAfterDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	second, err := store.Create(ctx, models.ProductInput{Name: strPtr("a")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Delete(ctx, second.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	third, err := store.Create(ctx, models.ProductInput{Name: strPtr("b")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if third.ID <= second.ID {
		t.Errorf("Expected id greater than %d, got %d", second.ID, third.ID)
	}
}

func TestListOrderedByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for _, name := range []string{"c", "a", "b"} {
		if _, err := store.Create(ctx, models.ProductInput{Name: strPtr(name)}); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	// touching an older row must not move it
	if _, err := store.Update(ctx, 2, models.ProductInput{Name: strPtr("z")}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	products, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 4 {
		t.Fatalf("Expected 4 products, got %d", len(products))
	}
	for i := 1; i < len(products); i++ {
		if products[i-1].ID >= products[i].ID {
			t.Errorf("Products not in ascending id order: %d before %d", products[i-1].ID, products[i].ID)
		}
	}
}

func TestListEmpty(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	products, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if products == nil || len(products) != 0 {
		t.Errorf("Expected an empty non-nil slice, got %#v", products)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.db")
	ctx := context.Background()

	db, err := Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := NewInitializer(db).Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	created, err := NewProductStore(db).Create(ctx, models.ProductInput{Name: strPtr("durable")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := Close(db); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open("sqlite://" + path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer Close(db)
	if err := NewInitializer(db).Initialize(ctx); err != nil {
		t.Fatalf("Initialize after reopen failed: %v", err)
	}

	fetched, err := NewProductStore(db).Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if *fetched.Name != "durable" {
		t.Errorf("Expected name 'durable', got %q", *fetched.Name)
	}
}

func TestNonFiniteRowIsAnErrorNotAPanic(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// REAL overflows to Inf in sqlite
	if err := store.db.Exec("INSERT INTO products (name, output) VALUES (?, 1e999)", "big").Error; err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if _, err := store.List(ctx); err == nil {
		t.Error("List should fail on a non-finite decimal")
	}
	_, err := store.Get(ctx, 2)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Get should fail with a scan error, got %v", err)
	}

	// the connection was released, so the store keeps working
	if err := store.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	products, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("Expected only the seed row, got %d", len(products))
	}
}

func assertFields(t *testing.T, got *models.Product, want models.ProductInput) {
	t.Helper()
	if !equalString(got.Name, want.Name) {
		t.Errorf("name: got %v, want %v", got.Name, want.Name)
	}
	if !equalString(got.Manufacture, want.Manufacture) {
		t.Errorf("manufacture: got %v, want %v", got.Manufacture, want.Manufacture)
	}
	if (got.Price == nil) != (want.Price == nil) || (got.Price != nil && *got.Price != *want.Price) {
		t.Errorf("price: got %v, want %v", got.Price, want.Price)
	}
	for _, f := range []struct {
		name      string
		got, want decimal.NullDecimal
	}{
		{"output", got.Output, want.Output},
		{"width", got.Width, want.Width},
		{"height", got.Height, want.Height},
	} {
		if f.got.Valid != f.want.Valid || (f.got.Valid && !f.got.Decimal.Equal(f.want.Decimal)) {
			t.Errorf("%s: got %v, want %v", f.name, f.got, f.want)
		}
	}
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
