package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lotas/trackerguard/internal/catalog"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/types"
)

type wireSmartBlock struct {
	Blocked   map[string]bool `json:"blocked"`
	Unblocked map[string]bool `json:"unblocked"`
}

type wirePage struct {
	TabID            int             `json:"tab_id"`
	Host             string          `json:"pageHost"`
	URL              string          `json:"pageUrl"`
	PausedBlocking   bool            `json:"paused_blocking"`
	SmartBlock       *wireSmartBlock `json:"smartBlock"`
	SmartBlockActive bool            `json:"smartBlockActive"`
}

type wireTracker struct {
	ID                   int    `json:"id"`
	CatID                string `json:"catId"`
	Name                 string `json:"name"`
	Blocked              bool   `json:"blocked"`
	SSAllowed            bool   `json:"ss_allowed"`
	SSBlocked            bool   `json:"ss_blocked"`
	ShouldShow           *bool  `json:"shouldShow"`
	WarningCompatibility bool   `json:"warningCompatibility"`
	WarningInsecure      bool   `json:"warningInsecure"`
	WarningSlow          bool   `json:"warningSlow"`
}

type wireCategory struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Trackers []wireTracker `json:"trackers"`
}

type wirePanelData struct {
	SelectedAppIDs map[string]int `json:"selected_app_ids"`
	SiteWhitelist  []string       `json:"site_whitelist"`
	SiteBlacklist  []string       `json:"site_blacklist"`
	NeedsReload    struct {
		Changes map[string]bool `json:"changes"`
	} `json:"needsReload"`
}

// Command is a decoded panel command.
type Command struct {
	ID         string
	Action     string
	CategoryID string
	TrackerID  int
	Blocked    bool
	List       types.ListKind
	Host       string
	Filter     catalog.Filter
	Text       string
	Classes    string
	Override   bool
	Seconds    int
}

// ParsePageContext converts an IncomingMsg of type "pageContext" into the
// inputs for panel.Load.
func ParsePageContext(msg IncomingMsg) (panel.PageData, error) {
	var data panel.PageData

	var wp wirePage
	if len(msg.Page) > 0 {
		if err := json.Unmarshal(msg.Page, &wp); err != nil {
			return data, fmt.Errorf("parse page: %w", err)
		}
	}
	data.Page = types.PageContext{
		TabID:            wp.TabID,
		Host:             wp.Host,
		URL:              wp.URL,
		PausedBlocking:   wp.PausedBlocking,
		SmartBlockActive: wp.SmartBlockActive,
	}
	data.Page.SmartBlock = toOverlay(wp.SmartBlock)

	var cats []wireCategory
	if len(msg.Categories) > 0 {
		if err := json.Unmarshal(msg.Categories, &cats); err != nil {
			return data, fmt.Errorf("parse categories: %w", err)
		}
	}
	data.Categories = toCategories(cats)

	var pd wirePanelData
	if len(msg.PanelData) > 0 {
		if err := json.Unmarshal(msg.PanelData, &pd); err != nil {
			return data, fmt.Errorf("parse panel data: %w", err)
		}
	}
	data.Whitelist = pd.SiteWhitelist
	data.Blacklist = pd.SiteBlacklist
	data.SelectedAppIDs = types.SelectedAppIDs{}
	for k, v := range pd.SelectedAppIDs {
		id, err := strconv.Atoi(k)
		if err != nil {
			return data, fmt.Errorf("parse selected_app_ids key %q: %w", k, err)
		}
		data.SelectedAppIDs[id] = v
	}
	data.Pending = types.PendingReloadChanges{}
	for k, v := range pd.NeedsReload.Changes {
		if v {
			data.Pending[types.ChangeKind(k)] = true
		}
	}
	return data, nil
}

// ParseSmartBlock decodes a "smartBlock" update.
func ParseSmartBlock(msg IncomingMsg) (types.SmartBlockOverlay, bool, error) {
	var sb wireSmartBlock
	if len(msg.SmartBlock) > 0 {
		if err := json.Unmarshal(msg.SmartBlock, &sb); err != nil {
			return types.SmartBlockOverlay{}, false, fmt.Errorf("parse smartBlock: %w", err)
		}
	}
	return toOverlay(&sb), msg.SmartBlockActive, nil
}

// ParseCommand validates the fields a command action needs.
func ParseCommand(msg IncomingMsg) (Command, error) {
	cmd := Command{
		ID:         msg.ID,
		Action:     msg.Action,
		CategoryID: msg.CategoryID,
		TrackerID:  msg.TrackerID,
		Host:       msg.Host,
		Text:       msg.Text,
		Classes:    msg.Classes,
		Override:   msg.Override,
		Seconds:    msg.Seconds,
	}
	if msg.Blocked != nil {
		cmd.Blocked = *msg.Blocked
	}

	needBlocked := func() error {
		if msg.Blocked == nil {
			return fmt.Errorf("command %s: missing blocked", msg.Action)
		}
		return nil
	}

	switch msg.Action {
	case "blockAll":
		return cmd, needBlocked()
	case "blockCategory":
		if msg.CategoryID == "" {
			return cmd, fmt.Errorf("command %s: missing categoryId", msg.Action)
		}
		return cmd, needBlocked()
	case "blockTracker":
		if msg.CategoryID == "" || msg.TrackerID == 0 {
			return cmd, fmt.Errorf("command %s: missing categoryId or trackerId", msg.Action)
		}
		return cmd, needBlocked()
	case "setPolicy", "addHost", "removeHost":
		list, err := ParseList(msg.List)
		if err != nil {
			return cmd, fmt.Errorf("command %s: %w", msg.Action, err)
		}
		cmd.List = list
		if msg.Action != "setPolicy" && msg.Host == "" {
			return cmd, fmt.Errorf("command %s: missing host", msg.Action)
		}
		return cmd, nil
	case "filter":
		f, err := ParseFilter(msg.Filter)
		if err != nil {
			return cmd, err
		}
		cmd.Filter = f
		return cmd, nil
	case "pause":
		if msg.Seconds < 0 {
			return cmd, fmt.Errorf("command pause: negative seconds")
		}
		return cmd, needBlocked()
	case "closeNotification", "status":
		return cmd, nil
	default:
		return cmd, fmt.Errorf("unknown command %q", msg.Action)
	}
}

// ParseList accepts "whitelist"/"blacklist" and the UI names "trusted"/"restricted".
func ParseList(s string) (types.ListKind, error) {
	switch strings.ToLower(s) {
	case "whitelist", "trusted", "trust":
		return types.Whitelist, nil
	case "blacklist", "restricted", "restrict":
		return types.Blacklist, nil
	default:
		return "", fmt.Errorf("unknown list %q", s)
	}
}

// ParseFilter reverses catalog.Filter.String.
func ParseFilter(s string) (catalog.Filter, error) {
	switch {
	case s == "" || s == "all":
		return catalog.ShowAll(), nil
	case s == "blocked":
		return catalog.ShowBlocked(), nil
	case s == "warning":
		return catalog.ShowWarnings(), nil
	case strings.HasPrefix(s, "category:"):
		return catalog.ShowCategory(strings.TrimPrefix(s, "category:")), nil
	case strings.HasPrefix(s, "name:"):
		return catalog.ShowMatching(strings.TrimPrefix(s, "name:")), nil
	default:
		return catalog.Filter{}, fmt.Errorf("unknown filter %q", s)
	}
}

// toCategories converts wire categories. Trackers without an explicit
// shouldShow start visible.
func toCategories(cats []wireCategory) []*types.Category {
	out := make([]*types.Category, 0, len(cats))
	for _, wc := range cats {
		c := &types.Category{ID: wc.ID, Name: wc.Name}
		for _, wt := range wc.Trackers {
			show := true
			if wt.ShouldShow != nil {
				show = *wt.ShouldShow
			}
			c.Trackers = append(c.Trackers, &types.Tracker{
				ID:         wt.ID,
				CategoryID: wc.ID,
				Name:       wt.Name,
				Blocked:    wt.Blocked,
				SSAllowed:  wt.SSAllowed,
				SSBlocked:  wt.SSBlocked,
				ShouldShow: show,
				Warnings: types.Warnings{
					Compatibility: wt.WarningCompatibility,
					Insecure:      wt.WarningInsecure,
					Slow:          wt.WarningSlow,
				},
			})
		}
		out = append(out, c)
	}
	return out
}

func toOverlay(sb *wireSmartBlock) types.SmartBlockOverlay {
	o := types.SmartBlockOverlay{Blocked: map[int]struct{}{}, Unblocked: map[int]struct{}{}}
	if sb == nil {
		return o
	}
	for k, v := range sb.Blocked {
		if id, err := strconv.Atoi(k); err == nil && v {
			o.Blocked[id] = struct{}{}
		}
	}
	for k, v := range sb.Unblocked {
		if id, err := strconv.Atoi(k); err == nil && v {
			o.Unblocked[id] = struct{}{}
		}
	}
	return o
}
