package sla

import (
	"time"

	"github.com/jwalitptl/leadsla/internal/model"
)

// Status is a lead's position relative to its deadlines.
type Status string

const (
	StatusBreached Status = "breached"
	StatusAtRisk   Status = "at_risk"
	StatusOnTrack  Status = "on_track"
	StatusNone     Status = "none"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBreached, StatusAtRisk, StatusOnTrack, StatusNone:
		return true
	}
	return false
}

// DeadlineFor returns the SLA deadline a lead should carry. It is the lead's
// own deadline, with no offset applied.
func DeadlineFor(lead *model.Lead) model.Timestamp {
	return lead.Deadline
}

// IsBreached is true iff the stored SLA deadline is a valid instant
// strictly before now. A lead with no sla_deadline never breaches.
func IsBreached(lead *model.Lead, now time.Time) bool {
	return lead.SLADeadline.Before(now)
}

// IsApproaching is true iff the lead is active and its deadline lies in
// [now, now+window).
func IsApproaching(lead *model.Lead, now time.Time, window time.Duration) bool {
	if lead.Status != model.LeadStatusActive || !lead.Deadline.Valid {
		return false
	}
	d := lead.Deadline.Time
	return !d.Before(now) && d.Before(now.Add(window))
}

// Classify places a lead in exactly one Status. atRisk is the lookahead
// window for at_risk.
func Classify(lead *model.Lead, now time.Time, atRisk time.Duration) Status {
	if IsBreached(lead, now) {
		return StatusBreached
	}
	if !lead.Deadline.Valid {
		return StatusNone
	}
	d := lead.Deadline.Time
	if d.After(now) && d.Before(now.Add(atRisk)) {
		return StatusAtRisk
	}
	return StatusOnTrack
}

type Summary struct {
	Total    int `json:"total"`
	Breached int `json:"breached"`
	AtRisk   int `json:"at_risk"`
	OnTrack  int `json:"on_track"`
	None     int `json:"none"`
}

func Summarize(leads []*model.Lead, now time.Time, atRisk time.Duration) Summary {
	var s Summary
	for _, l := range leads {
		s.Total++
		switch Classify(l, now, atRisk) {
		case StatusBreached:
			s.Breached++
		case StatusAtRisk:
			s.AtRisk++
		case StatusOnTrack:
			s.OnTrack++
		default:
			s.None++
		}
	}
	return s
}
