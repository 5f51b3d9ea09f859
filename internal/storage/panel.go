package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lotas/trackerguard/internal/codec"
	"github.com/lotas/trackerguard/internal/types"
	"github.com/mitchellh/mapstructure"
)

// PanelData is the persisted panel state, merged from every patch written so
// far. Keys follow the background process's naming.
type PanelData struct {
	SelectedAppIDs        types.SelectedAppIDs `mapstructure:"selected_app_ids"`
	SiteWhitelist         []string             `mapstructure:"site_whitelist"`
	SiteBlacklist         []string             `mapstructure:"site_blacklist"`
	NeedsReload           NeedsReload          `mapstructure:"needsReload"`
	PausedBlocking        bool                 `mapstructure:"paused_blocking"`
	PausedBlockingTimeout int                  `mapstructure:"paused_blocking_timeout"`
}

// NeedsReload is the persisted pending-reload record.
type NeedsReload struct {
	Changes map[string]bool `mapstructure:"changes"`
}

// Pending converts the persisted record to pending reload changes.
func (d PanelData) Pending() types.PendingReloadChanges {
	out := make(types.PendingReloadChanges, len(d.NeedsReload.Changes))
	for k, v := range d.NeedsReload.Changes {
		if v {
			out[types.ChangeKind(k)] = true
		}
	}
	return out
}

// PatchEntry is one row of the patch log.
type PatchEntry struct {
	ID        int64
	Keys      []string
	Source    string
	Patch     types.Patch
	CreatedAt time.Time
}

// ApplyPatch merges a patch into panel_data and appends it to the patch log
// in a single transaction. Site list keys are mirrored into site_hosts.
func ApplyPatch(ctx context.Context, db *sql.DB, source string, patch types.Patch) error {
	if len(patch) == 0 {
		return nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range patch.Keys() {
		blob, err := encodeValue(patch[key])
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO panel_data (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, blob,
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
	}

	for _, list := range []types.ListKind{types.Whitelist, types.Blacklist} {
		v, ok := patch[listKey(list)]
		if !ok {
			continue
		}
		hosts, err := toStrings(v)
		if err != nil {
			return fmt.Errorf("decode %s: %w", listKey(list), err)
		}
		if err := replaceHosts(ctx, tx, list, hosts); err != nil {
			return err
		}
	}

	payload, err := encodeValue(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO patch_log (keys, payload, source) VALUES (?, ?, ?)",
		strings.Join(patch.Keys(), ","), payload, source,
	); err != nil {
		return fmt.Errorf("insert patch log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadPanelData reads every stored key and decodes the merged result.
// A fresh database yields zero-valued data.
func LoadPanelData(ctx context.Context, db *sql.DB) (PanelData, error) {
	var data PanelData
	rows, err := db.QueryContext(ctx, "SELECT key, value FROM panel_data")
	if err != nil {
		return data, fmt.Errorf("query panel data: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]any)
	for rows.Next() {
		var key string
		var blob []byte
		if err := rows.Scan(&key, &blob); err != nil {
			return data, fmt.Errorf("scan panel data: %w", err)
		}
		v, err := decodeValue(blob)
		if err != nil {
			return data, fmt.Errorf("decode %s: %w", key, err)
		}
		raw[key] = v
	}
	if err := rows.Err(); err != nil {
		return data, fmt.Errorf("iterate panel data: %w", err)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &data,
	})
	if err != nil {
		return data, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return data, fmt.Errorf("decode panel data: %w", err)
	}
	if data.SelectedAppIDs == nil {
		data.SelectedAppIDs = types.SelectedAppIDs{}
	}
	return data, nil
}

// RecentPatches returns up to limit patch log entries, newest first.
func RecentPatches(ctx context.Context, db *sql.DB, limit int) ([]PatchEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id, keys, source, payload, created_at FROM patch_log ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query patch log: %w", err)
	}
	defer rows.Close()

	var result []PatchEntry
	for rows.Next() {
		var e PatchEntry
		var keys string
		var blob []byte
		if err := rows.Scan(&e.ID, &keys, &e.Source, &blob, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan patch log: %w", err)
		}
		if keys != "" {
			e.Keys = strings.Split(keys, ",")
		}
		v, err := decodeValue(blob)
		if err != nil {
			return nil, fmt.Errorf("decode patch %d: %w", e.ID, err)
		}
		if m, ok := v.(map[string]any); ok {
			e.Patch = types.Patch(m)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patch log: %w", err)
	}
	return result, nil
}

// PanelStore writes outbox patches to the local database.
type PanelStore struct {
	db     *sql.DB
	source string
}

// NewPanelStore returns a sink that records patches under source.
func NewPanelStore(db *sql.DB, source string) *PanelStore {
	return &PanelStore{db: db, source: source}
}

func (s *PanelStore) Name() string { return "sqlite" }

func (s *PanelStore) Write(ctx context.Context, p types.Patch) error {
	return ApplyPatch(ctx, s.db, s.source, p)
}

func encodeValue(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return codec.Compress(data)
}

func decodeValue(blob []byte) (any, error) {
	data, err := codec.Decompress(blob)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func listKey(list types.ListKind) string {
	if list == types.Whitelist {
		return types.KeySiteWhitelist
	}
	return types.KeySiteBlacklist
}

func toStrings(v any) ([]string, error) {
	switch hosts := v.(type) {
	case []string:
		return hosts, nil
	case []any:
		out := make([]string, 0, len(hosts))
		for _, h := range hosts {
			s, ok := h.(string)
			if !ok {
				return nil, fmt.Errorf("host %v is %T, not string", h, h)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected %T", v)
	}
}
