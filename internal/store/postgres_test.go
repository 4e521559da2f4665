package store

import (
	"testing"
	"testing/fstest"

	"qsteel/db/migrations"
)

func TestListMigrationFiles(t *testing.T) {
	f := fstest.MapFS{
		"zzz.txt":                {Data: []byte("ignore")},
		"0002_dispatches.sql":    {Data: []byte("--")},
		"0001_ledger_blocks.sql": {Data: []byte("--")},
		"subdir/0003_more.sql":   {Data: []byte("--")},
	}
	got, err := listMigrationFiles(f)
	if err != nil {
		t.Fatalf("listMigrationFiles: %v", err)
	}
	if len(got) != 2 || got[0] != "0001_ledger_blocks.sql" || got[1] != "0002_dispatches.sql" {
		t.Fatalf("unexpected migration list: %v", got)
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	got, err := listMigrationFiles(migrations.Files)
	if err != nil {
		t.Fatalf("listMigrationFiles: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected embedded migrations, got %v", got)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 50, -1: 50, 10: 10, 500: 500, 501: 50} {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
