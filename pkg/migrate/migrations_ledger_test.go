package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAccountsMigrationGuardsBalance(t *testing.T) {
	assertContains(t, readMigration(t, "create_accounts"), []string{
		"CREATE TABLE IF NOT EXISTS accounts",
		"CHECK (balance >= 0)",
		"version bigint NOT NULL DEFAULT 0",
		"subscription_plan plan_name_enum NOT NULL DEFAULT 'free'",
		"DROP TABLE IF EXISTS accounts",
	})
}

func TestLedgerEntriesMigrationIsAppendOnly(t *testing.T) {
	assertContains(t, readMigration(t, "create_ledger_entries"), []string{
		"CREATE TABLE IF NOT EXISTS ledger_entries",
		"FOREIGN KEY (account_id) REFERENCES accounts(id) ON DELETE CASCADE",
		"CHECK (amount <> 0)",
		"ux_ledger_entries_account_sequence ON ledger_entries (account_id, sequence)",
		"ux_ledger_entries_reference ON ledger_entries (reference) WHERE reference IS NOT NULL",
		"BEFORE UPDATE ON ledger_entries",
		"DROP TABLE IF EXISTS ledger_entries",
	})
}

func TestEnumsMigrationListsLedgerKinds(t *testing.T) {
	assertContains(t, readMigration(t, "create_enums"), []string{
		"CREATE TYPE ledger_kind_enum AS ENUM ('blog', 'image', 'resume', 'code', 'purchase', 'refund')",
		"DROP TYPE IF EXISTS ledger_kind_enum",
	})
}

func TestPlansMigrationSeedsCatalog(t *testing.T) {
	assertContains(t, readMigration(t, "create_plans"), []string{
		"CREATE TABLE IF NOT EXISTS plans",
		"('free', 0.00, 1000",
		"('enterprise', 99.99, 100000",
		"ON CONFLICT (name) DO NOTHING",
	})
}
