package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/config"
	"github.com/lotas/trackerguard/internal/export"
	"github.com/lotas/trackerguard/internal/notify"
	"github.com/lotas/trackerguard/internal/outbox"
	"github.com/lotas/trackerguard/internal/pagefile"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/server"
	"github.com/lotas/trackerguard/internal/sitepolicy"
	"github.com/lotas/trackerguard/internal/storage"
	"github.com/lotas/trackerguard/internal/types"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var (
		pagePath string
		jsonFlag bool
		outFile  string
		withDB   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a page's panel state as markdown or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := pagefile.Read(pagePath)
			if err != nil {
				return err
			}
			if withDB {
				db, err := openDB(cfg)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()
				stored, err := storage.LoadPanelData(cmd.Context(), db)
				if err != nil {
					return err
				}
				data = mergeStored(data, stored)
			}

			p := panel.New(panel.Options{Preferences: cfg.Preferences()})
			p.Load(data)

			var output string
			if jsonFlag {
				output, err = export.JSON(p)
				if err != nil {
					return fmt.Errorf("generate JSON: %w", err)
				}
			} else {
				output = export.Markdown(p)
			}

			if outFile != "" {
				return os.WriteFile(outFile, []byte(output), 0o644)
			}
			fmt.Print(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "Recorded page dump to export (.json, .jsonlz4 or a directory)")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Export as JSON instead of markdown")
	cmd.Flags().StringVar(&outFile, "out", "", "Output file path (default: stdout)")
	cmd.Flags().BoolVar(&withDB, "with-db", false, "Use site lists and pending changes from the local database")
	cmd.MarkFlagRequired("page")
	return cmd
}

// mergeStored replaces the page dump's site lists, pending changes and pause
// state with the locally mirrored ones.
func mergeStored(data panel.PageData, stored storage.PanelData) panel.PageData {
	data.Whitelist = stored.SiteWhitelist
	data.Blacklist = stored.SiteBlacklist
	data.Pending = stored.Pending()
	data.Page.PausedBlocking = stored.PausedBlocking
	return data
}

func hostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage the trusted and restricted site lists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [trusted|restricted]",
		Short: "List hosts on the site lists",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var kind types.ListKind
			if len(args) == 1 {
				k, err := server.ParseList(args[0])
				if err != nil {
					return err
				}
				kind = k
			}
			return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				hosts, err := storage.ListHosts(ctx, db, kind)
				if err != nil {
					return err
				}
				if len(hosts) == 0 {
					fmt.Println("No hosts.")
					return nil
				}
				for _, h := range hosts {
					fmt.Printf("%-10s %-40s %s\n", listLabel(h.List), h.Host, h.AddedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <trusted|restricted> <host>",
		Short: "Add a host, moving it off the other list if needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := server.ParseList(args[0])
			if err != nil {
				return err
			}
			return editLists(cmd.Context(), func(lists *sitepolicy.Lists) error {
				res, err := lists.AddHost(kind, args[1])
				if err != nil {
					return err
				}
				if res.Warning != nil {
					fmt.Fprintf(os.Stderr, "Warning: %v\n", res.Warning)
				}
				fmt.Printf("Added %s to %s.\n", res.Host, listLabel(kind))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <trusted|restricted> <host>",
		Short: "Remove a host from a list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := server.ParseList(args[0])
			if err != nil {
				return err
			}
			return editLists(cmd.Context(), func(lists *sitepolicy.Lists) error {
				if !lists.RemoveHost(kind, args[1]) {
					return fmt.Errorf("%s is not on the %s list", args[1], listLabel(kind))
				}
				fmt.Printf("Removed %s from %s.\n", args[1], listLabel(kind))
				return nil
			})
		},
	})

	return cmd
}

// editLists loads the stored site lists, applies fn and records the result.
func editLists(ctx context.Context, fn func(*sitepolicy.Lists) error) error {
	return withDB(ctx, func(ctx context.Context, db *sql.DB) error {
		data, err := storage.LoadPanelData(ctx, db)
		if err != nil {
			return err
		}
		lists := sitepolicy.NewLists(data.SiteWhitelist, data.SiteBlacklist)
		if err := fn(lists); err != nil {
			return err
		}
		return storage.ApplyPatch(ctx, db, "cli", lists.Patch())
	})
}

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Show changes waiting for a page reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				data, err := storage.LoadPanelData(ctx, db)
				if err != nil {
					return err
				}
				kinds := data.Pending().Kinds()
				if len(kinds) == 0 {
					fmt.Println("Nothing pending.")
					return nil
				}
				for _, k := range kinds {
					fmt.Println(k)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ack",
		Short: "Clear pending changes as if the page was reloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				data, err := storage.LoadPanelData(ctx, db)
				if err != nil {
					return err
				}
				ob := outbox.New(outbox.Options{}, storage.NewPanelStore(db, "cli"))
				r := notify.New(types.Preferences{}, data.Pending(), ob)
				r.AcknowledgeReload()
				fmt.Printf("Cleared %d pending change(s).\n", ob.Flush(ctx))
				return nil
			})
		},
	})

	return cmd
}

func doctorCmd() *cobra.Command {
	var pagePath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database and an optional page dump",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var problems int
			report := func(ok bool, format string, a ...any) {
				mark := "ok  "
				if !ok {
					mark = "FAIL"
					problems++
				}
				fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, a...))
			}

			cfg, err := loadConfig()
			if err != nil {
				report(false, "config: %v", err)
				cfg = config.Default()
			} else {
				src := cfg.Source
				if src == "" {
					src = "defaults"
				}
				report(true, "config: %s (port %d)", src, cfg.Port)
			}

			if db, err := openDB(cfg); err != nil {
				report(false, "database %s: %v", cfg.DB, err)
			} else {
				defer db.Close()
				data, err := storage.LoadPanelData(cmd.Context(), db)
				if err != nil {
					report(false, "database %s: %v", cfg.DB, err)
				} else {
					report(true, "database %s: %d selected, %d trusted, %d restricted, %d pending",
						cfg.DB, len(data.SelectedAppIDs), len(data.SiteWhitelist), len(data.SiteBlacklist), len(data.Pending()))
					report(!overlaps(data.SiteWhitelist, data.SiteBlacklist), "site lists are disjoint")
				}
			}

			if pagePath != "" {
				data, err := pagefile.Read(pagePath)
				if err != nil {
					report(false, "page %s: %v", pagePath, err)
				} else {
					p := panel.New(panel.Options{})
					p.Load(data)
					page := p.Page()
					err := analyzer.CheckInvariants(p.Categories(), page.SmartBlock, page.SmartBlockActive)
					report(err == nil, "page %s: %s, category counts consistent%s", page.Host, analyzer.Summary(p.Counters()), errSuffix(err))
				}
			}

			if problems > 0 {
				return fmt.Errorf("%d check(s) failed", problems)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pagePath, "page", "", "Also validate a recorded page dump")
	return cmd
}

func withDB(ctx context.Context, fn func(context.Context, *sql.DB) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, db)
}

func listLabel(k types.ListKind) string {
	if k == types.Whitelist {
		return "trusted"
	}
	return "restricted"
}

func overlaps(a, b []string) bool {
	seen := make(map[string]bool, len(a))
	for _, h := range a {
		seen[strings.ToLower(h)] = true
	}
	for _, h := range b {
		if seen[strings.ToLower(h)] {
			return true
		}
	}
	return false
}

func errSuffix(err error) string {
	if err == nil {
		return ""
	}
	return ": " + err.Error()
}
