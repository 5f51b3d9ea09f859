package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lotas/trackerguard/internal/types"
)

// SiteHost is one row of site_hosts.
type SiteHost struct {
	List    types.ListKind
	Host    string
	AddedAt time.Time
}

// ListHosts returns the hosts of one list ordered by host. An empty list
// kind returns both lists.
func ListHosts(ctx context.Context, db *sql.DB, list types.ListKind) ([]SiteHost, error) {
	query := "SELECT list, host, added_at FROM site_hosts"
	var args []any
	if list != "" {
		query += " WHERE list = ?"
		args = append(args, string(list))
	}
	query += " ORDER BY list, host"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query site hosts: %w", err)
	}
	defer rows.Close()

	var result []SiteHost
	for rows.Next() {
		var h SiteHost
		var kind string
		if err := rows.Scan(&kind, &h.Host, &h.AddedAt); err != nil {
			return nil, fmt.Errorf("scan site host: %w", err)
		}
		h.List = types.ListKind(kind)
		result = append(result, h)
	}
	return result, rows.Err()
}

// replaceHosts makes site_hosts for list match hosts. Rows for hosts that
// stay on the list keep their added_at.
func replaceHosts(ctx context.Context, tx *sql.Tx, list types.ListKind, hosts []string) error {
	keep := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		keep[h] = true
	}

	rows, err := tx.QueryContext(ctx, "SELECT host FROM site_hosts WHERE list = ?", string(list))
	if err != nil {
		return fmt.Errorf("query %s hosts: %w", list, err)
	}
	var stale []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			rows.Close()
			return fmt.Errorf("scan %s host: %w", list, err)
		}
		if !keep[h] {
			stale = append(stale, h)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s hosts: %w", list, err)
	}

	for _, h := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM site_hosts WHERE list = ? AND host = ?", string(list), h); err != nil {
			return fmt.Errorf("delete %s host %q: %w", list, h, err)
		}
	}
	for _, h := range hosts {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO site_hosts (list, host) VALUES (?, ?)",
			string(list), h,
		); err != nil {
			return fmt.Errorf("insert %s host %q: %w", list, h, err)
		}
	}
	return nil
}
