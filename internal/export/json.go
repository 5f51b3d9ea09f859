package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/sitepolicy"
)

type jsonExport struct {
	Host       string         `json:"host"`
	URL        string         `json:"url,omitempty"`
	Policy     string         `json:"policy"`
	Paused     bool           `json:"paused_blocking,omitempty"`
	ExportedAt time.Time      `json:"exported_at"`
	Summary    string         `json:"summary"`
	Counters   jsonCounters   `json:"counters"`
	Categories []jsonCategory `json:"categories"`
	Whitelist  []string       `json:"site_whitelist"`
	Blacklist  []string       `json:"site_blacklist"`
	Pending    []string       `json:"pending_reload,omitempty"`
}

type jsonCounters struct {
	Total     int `json:"total"`
	Blocked   int `json:"blocked"`
	SSBlocked int `json:"ss_blocked"`
	SSAllowed int `json:"ss_allowed"`
	SBBlocked int `json:"sb_blocked"`
	SBAllowed int `json:"sb_allowed"`
}

type jsonCategory struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	NumShown   int           `json:"num_shown"`
	NumBlocked int           `json:"num_blocked"`
	Trackers   []jsonTracker `json:"trackers"`
}

type jsonTracker struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Blocked   bool     `json:"blocked"`
	DecidedBy string   `json:"decided_by"`
	Manual    bool     `json:"manual_block,omitempty"`
	Visible   bool     `json:"visible"`
	Warnings  []string `json:"warnings,omitempty"`
}

// JSON formats the panel state as a JSON document.
func JSON(p *panel.Panel) (string, error) {
	page := p.Page()
	site := p.SiteState()
	c := p.Counters()

	out := jsonExport{
		Host:       sitepolicy.DeriveHost(page, ""),
		URL:        page.URL,
		Policy:     site.Policy.String(),
		Paused:     page.PausedBlocking,
		ExportedAt: time.Now(),
		Summary:    analyzer.Summary(c),
		Counters: jsonCounters{
			Total:     c.Total,
			Blocked:   c.Blocked,
			SSBlocked: c.SSBlocked,
			SSAllowed: c.SSAllowed,
			SBBlocked: c.SBBlocked,
			SBAllowed: c.SBAllowed,
		},
		Categories: make([]jsonCategory, 0, len(p.Categories())),
		Whitelist:  site.Whitelist,
		Blacklist:  site.Blacklist,
	}
	for _, k := range p.Pending().Kinds() {
		out.Pending = append(out.Pending, string(k))
	}

	for _, cat := range p.Categories() {
		jc := jsonCategory{
			ID:         cat.ID,
			Name:       cat.Name,
			NumShown:   cat.NumShown,
			NumBlocked: cat.NumBlocked,
			Trackers:   make([]jsonTracker, 0, len(cat.Trackers)),
		}
		for _, t := range cat.Trackers {
			layer, blocked := override.Layer(t, page.SmartBlock, page.SmartBlockActive)
			jc.Trackers = append(jc.Trackers, jsonTracker{
				ID:        t.ID,
				Name:      t.Name,
				Blocked:   blocked,
				DecidedBy: layer.String(),
				Manual:    t.Blocked,
				Visible:   t.ShouldShow,
				Warnings:  warnings(t.Warnings.Compatibility, t.Warnings.Insecure, t.Warnings.Slow),
			})
		}
		out.Categories = append(out.Categories, jc)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func warnings(compat, insecure, slow bool) []string {
	var w []string
	if compat {
		w = append(w, "compatibility")
	}
	if insecure {
		w = append(w, "insecure")
	}
	if slow {
		w = append(w, "slow")
	}
	return w
}
