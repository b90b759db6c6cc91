package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/wishlist-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestSubmissionsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_submissions.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS submissions",
		"CHECK (status IN ('queued', 'created', 'created_with_warnings', 'failed'))",
		"ON submissions (shop_id, wishlist_id, customer_id, created_at DESC)",
		"DROP TABLE IF EXISTS submissions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestWishlistMigrationEnforcesActiveNameAndQuantity(t *testing.T) {
	content := readMigration(t, "*_create_wishlists.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS wishlists_active_name_key",
		"WHERE is_archived = false",
		"CONSTRAINT wishlist_items_wishlist_variant_key UNIQUE (wishlist_id, variant_id)",
		"CHECK (quantity BETWEEN 1 AND 999)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Submission Totals!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_submission_totals.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file found for %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
