package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/lotas/trackerguard/internal/types"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "trackerguard.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("got %d migrations recorded, want %d", count, len(migrations))
	}
}

func TestOpenDB_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "again.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("got %d migrations recorded, want %d", count, len(migrations))
	}
}

func TestLoadPanelData_Empty(t *testing.T) {
	db := testDB(t)

	data, err := LoadPanelData(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadPanelData: %v", err)
	}
	if len(data.SelectedAppIDs) != 0 || data.PausedBlocking || len(data.SiteWhitelist) != 0 {
		t.Errorf("expected zero data, got %+v", data)
	}
	if data.SelectedAppIDs == nil {
		t.Error("SelectedAppIDs should be an empty map, not nil")
	}
}

func TestApplyPatch_RoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	patches := []types.Patch{
		{types.KeySelectedAppIDs: types.SelectedAppIDs{41: 1, 7: 1}},
		{types.KeySiteWhitelist: []string{"news.com"}, types.KeySiteBlacklist: []string{"ads.example"}},
		{types.KeyNeedsReload: map[string]any{"changes": map[string]bool{"whitelist": true}}},
		{types.KeyPausedBlocking: true, types.KeyPausedBlockingTimeout: 1800},
		{types.KeySelectedAppIDs: types.SelectedAppIDs{7: 1}},
	}
	for _, p := range patches {
		if err := ApplyPatch(ctx, db, "test", p); err != nil {
			t.Fatalf("ApplyPatch(%v): %v", p.Keys(), err)
		}
	}

	data, err := LoadPanelData(ctx, db)
	if err != nil {
		t.Fatalf("LoadPanelData: %v", err)
	}
	if got, want := data.SelectedAppIDs, (types.SelectedAppIDs{7: 1}); !reflect.DeepEqual(got, want) {
		t.Errorf("SelectedAppIDs: got %v, want %v", got, want)
	}
	if !reflect.DeepEqual(data.SiteWhitelist, []string{"news.com"}) {
		t.Errorf("SiteWhitelist: got %v", data.SiteWhitelist)
	}
	if !reflect.DeepEqual(data.SiteBlacklist, []string{"ads.example"}) {
		t.Errorf("SiteBlacklist: got %v", data.SiteBlacklist)
	}
	if !data.PausedBlocking {
		t.Error("PausedBlocking: got false, want true")
	}
	if data.PausedBlockingTimeout != 1800 {
		t.Errorf("PausedBlockingTimeout: got %d, want 1800", data.PausedBlockingTimeout)
	}
	if got, want := data.Pending(), (types.PendingReloadChanges{types.ChangeWhitelist: true}); !reflect.DeepEqual(got, want) {
		t.Errorf("Pending: got %v, want %v", got, want)
	}
}

func TestApplyPatch_EmptyIsNoOp(t *testing.T) {
	db := testDB(t)
	if err := ApplyPatch(context.Background(), db, "test", types.Patch{}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM patch_log").Scan(&n)
	if n != 0 {
		t.Errorf("got %d patch log rows, want 0", n)
	}
}

func TestApplyPatch_SyncsSiteHosts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := ApplyPatch(ctx, db, "test", types.Patch{
		types.KeySiteWhitelist: []string{"a.com", "b.com"},
		types.KeySiteBlacklist: []string{},
	}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if err := ApplyPatch(ctx, db, "test", types.Patch{
		types.KeySiteWhitelist: []string{"b.com"},
		types.KeySiteBlacklist: []string{"a.com"},
	}); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	hosts, err := ListHosts(ctx, db, "")
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2: %+v", len(hosts), hosts)
	}
	if hosts[0].List != types.Blacklist || hosts[0].Host != "a.com" {
		t.Errorf("hosts[0]: got %s/%s, want blacklist/a.com", hosts[0].List, hosts[0].Host)
	}
	if hosts[1].List != types.Whitelist || hosts[1].Host != "b.com" {
		t.Errorf("hosts[1]: got %s/%s, want whitelist/b.com", hosts[1].List, hosts[1].Host)
	}

	white, err := ListHosts(ctx, db, types.Whitelist)
	if err != nil {
		t.Fatalf("ListHosts(whitelist): %v", err)
	}
	if len(white) != 1 || white[0].Host != "b.com" {
		t.Errorf("whitelist: got %+v", white)
	}
}

func TestRecentPatches(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	ApplyPatch(ctx, db, "panel", types.Patch{types.KeyPausedBlocking: true, types.KeyPausedBlockingTimeout: 0})
	ApplyPatch(ctx, db, "cli", types.Patch{types.KeySelectedAppIDs: types.SelectedAppIDs{3: 1}})

	entries, err := RecentPatches(ctx, db, 10)
	if err != nil {
		t.Fatalf("RecentPatches: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Source != "cli" {
		t.Errorf("newest first: got source %q, want cli", entries[0].Source)
	}
	if !reflect.DeepEqual(entries[1].Keys, []string{types.KeyPausedBlocking, types.KeyPausedBlockingTimeout}) {
		t.Errorf("keys: got %v", entries[1].Keys)
	}
	if entries[1].Patch[types.KeyPausedBlocking] != true {
		t.Errorf("payload: got %v", entries[1].Patch)
	}

	limited, _ := RecentPatches(ctx, db, 1)
	if len(limited) != 1 {
		t.Errorf("limit: got %d entries, want 1", len(limited))
	}
}

func TestPanelStore_Write(t *testing.T) {
	db := testDB(t)
	store := NewPanelStore(db, "bridge")
	if store.Name() != "sqlite" {
		t.Errorf("Name: got %q", store.Name())
	}
	if err := store.Write(context.Background(), types.Patch{types.KeySelectedAppIDs: types.SelectedAppIDs{9: 1}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := LoadPanelData(context.Background(), db)
	if err != nil {
		t.Fatalf("LoadPanelData: %v", err)
	}
	if data.SelectedAppIDs[9] != 1 {
		t.Errorf("got %v, want 9 selected", data.SelectedAppIDs)
	}
}
