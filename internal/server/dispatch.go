package server

import (
	"errors"
	"time"

	"github.com/lotas/trackerguard/internal/analyzer"
	"github.com/lotas/trackerguard/internal/applog"
	"github.com/lotas/trackerguard/internal/catalog"
	"github.com/lotas/trackerguard/internal/panel"
	"github.com/lotas/trackerguard/internal/sitepolicy"
)

// Dispatch applies an incoming message to the panel. Commands get a result
// message back; the boolean reports whether one should be sent.
func Dispatch(p *panel.Panel, msg IncomingMsg) (OutgoingMsg, bool) {
	switch msg.Type {
	case MsgPageContext:
		data, err := ParsePageContext(msg)
		if err != nil {
			applog.Error("dispatch.page_context", err)
			return OutgoingMsg{}, false
		}
		p.Load(data)
	case MsgSmartBlock:
		overlay, active, err := ParseSmartBlock(msg)
		if err != nil {
			applog.Error("dispatch.smart_block", err)
			return OutgoingMsg{}, false
		}
		p.UpdateSmartBlock(overlay, active)
	case MsgReloaded:
		p.AcknowledgeReload()
	case MsgPanelOpened:
		p.OpenPanel()
	case MsgCommand:
		cmd, err := ParseCommand(msg)
		if err != nil {
			return failure(msg.ID, err), true
		}
		return execute(p, cmd), true
	default:
		applog.Info("dispatch.unknown", "type", msg.Type)
	}
	return OutgoingMsg{}, false
}

func execute(p *panel.Panel, cmd Command) OutgoingMsg {
	res := OutgoingMsg{ID: cmd.ID, Action: ActionResult}
	var err error
	switch cmd.Action {
	case "blockAll":
		if p.BlockAll(cmd.Blocked) == catalog.OutcomeNoOp {
			res.Warning = "no visible trackers"
		}
	case "blockCategory":
		var outcome catalog.Outcome
		outcome, err = p.SetCategoryBlocked(cmd.CategoryID, cmd.Blocked)
		if err == nil && outcome == catalog.OutcomeNoOp {
			res.Warning = "no visible trackers"
		}
	case "blockTracker":
		var outcome catalog.Outcome
		outcome, err = p.SetTrackerBlocked(cmd.CategoryID, cmd.TrackerID, cmd.Blocked)
		if err == nil && outcome == catalog.OutcomeNoOp {
			res.Warning = "ignored"
		}
	case "setPolicy":
		if _, changed := p.SetPolicy(cmd.List, cmd.Host); !changed {
			res.Warning = "no host for page"
		}
	case "addHost":
		var added sitepolicy.AddResult
		added, err = p.AddHost(cmd.List, cmd.Host)
		if added.Warning != nil {
			res.Warning = added.Warning.Error()
			res.Code = string(added.Warning.Code)
		}
	case "removeHost":
		if !p.RemoveHost(cmd.List, cmd.Host) {
			res.Warning = "not on list"
		}
	case "filter":
		p.SetVisibility(cmd.Filter)
	case "pause":
		p.PauseBlocking(cmd.Blocked, time.Duration(cmd.Seconds)*time.Second)
	case "closeNotification":
		p.CloseNotification()
	case "status":
		p.ShowStatus(cmd.Text, cmd.Classes, cmd.Override)
	}
	if err != nil {
		return failure(cmd.ID, err)
	}
	ok := true
	res.OK = &ok
	res.Summary = analyzer.Summary(p.Counters())
	return res
}

func failure(id string, err error) OutgoingMsg {
	ok := false
	applog.Info("dispatch.rejected", "id", id, "err", err)
	return OutgoingMsg{ID: id, Action: ActionResult, OK: &ok, Error: err.Error(), Code: ErrorCode(err)}
}

// ErrorCode extracts the machine-readable code from a domain error.
func ErrorCode(err error) string {
	var (
		invalid *sitepolicy.InvalidHostError
		dup     *sitepolicy.DuplicateHostError
		cross   *sitepolicy.CrossListWarning
		nf      *catalog.ReferenceNotFoundError
	)
	switch {
	case errors.As(err, &invalid):
		return string(invalid.Code)
	case errors.As(err, &dup):
		return string(dup.Code)
	case errors.As(err, &cross):
		return string(cross.Code)
	case errors.As(err, &nf):
		return string(nf.Code)
	default:
		return ""
	}
}
