package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/override"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/sitepolicy"
)

// Markdown formats the panel state as a markdown document.
func Markdown(p *panel.Panel) string {
	var b strings.Builder
	page := p.Page()
	site := p.SiteState()

	host := sitepolicy.DeriveHost(page, "")
	if host == "" {
		host = "(no page)"
	}
	fmt.Fprintf(&b, "# Trackers on %s\n", host)
	fmt.Fprintf(&b, "> Exported %s\n", time.Now().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "\n%s. Site policy: %s.", analyzer.Summary(p.Counters()), site.Policy)
	if page.PausedBlocking {
		b.WriteString(" Blocking is paused.")
	}
	b.WriteString("\n")
	if kinds := p.Pending().Kinds(); len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		fmt.Fprintf(&b, "\nPending reload: %s\n", strings.Join(names, ", "))
	}

	for _, cat := range p.Categories() {
		n := len(cat.Trackers)
		noun := "trackers"
		if n == 1 {
			noun = "tracker"
		}
		fmt.Fprintf(&b, "\n## %s (%d %s, %d blocked)\n\n", categoryTitle(cat.Name, cat.ID), n, noun, cat.NumBlocked)

		for _, t := range cat.Trackers {
			layer, blocked := override.Layer(t, page.SmartBlock, page.SmartBlockActive)
			box := " "
			if blocked {
				box = "x"
			}
			line := fmt.Sprintf("- [%s] %s", box, t.Name)
			if layer != override.DecidedManual {
				line += " (" + layer.String() + ")"
			}
			if w := warnings(t.Warnings.Compatibility, t.Warnings.Insecure, t.Warnings.Slow); len(w) > 0 {
				line += " ⚠ " + strings.Join(w, ", ")
			}
			b.WriteString(line + "\n")
		}
	}

	writeList(&b, "Trusted sites", site.Whitelist)
	writeList(&b, "Restricted sites", site.Blacklist)
	return b.String()
}

func categoryTitle(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func writeList(b *strings.Builder, title string, hosts []string) {
	if len(hosts) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, h := range hosts {
		fmt.Fprintf(b, "- %s\n", h)
	}
}
