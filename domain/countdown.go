package domain

import (
	"fmt"
	"time"
)

// Urgency classifies how close a deadline is.
type Urgency string

const (
	UrgencyNone     Urgency = ""
	UrgencyMuted    Urgency = "muted"
	UrgencyNormal   Urgency = "normal"
	UrgencySoon     Urgency = "soon"
	UrgencyWarning  Urgency = "warning"
	UrgencyCritical Urgency = "critical"
	UrgencyOverdue  Urgency = "overdue"
)

const day = 24 * time.Hour

// CountdownView is the rendered time remaining until a due date.
type CountdownView struct {
	Text    string  `json:"text"`
	Urgency Urgency `json:"urgency"`
}

// Countdown renders the time left until due as seen at now. Completed tasks
// show "Done"; a nil due date yields an empty view.
func Countdown(due *Date, now time.Time, completed bool) CountdownView {
	if completed {
		return CountdownView{Text: "Done", Urgency: UrgencyMuted}
	}
	if due == nil || due.IsZero() {
		return CountdownView{}
	}

	diff := due.Sub(now)
	if diff < 0 {
		diff = -diff
		days, hours, minutes := int(diff/day), int(diff%day/time.Hour), int(diff%time.Hour/time.Minute)
		var text string
		switch {
		case days > 0:
			text = fmt.Sprintf("%dd %dh overdue", days, hours)
		case hours > 0:
			text = fmt.Sprintf("%dh %dm overdue", hours, minutes)
		default:
			text = fmt.Sprintf("%dm overdue", minutes)
		}
		return CountdownView{Text: text, Urgency: UrgencyOverdue}
	}

	days := int(diff / day)
	hours := int(diff % day / time.Hour)
	minutes := int(diff % time.Hour / time.Minute)
	seconds := int(diff % time.Minute / time.Second)
	switch {
	case days > 0:
		u := UrgencyNormal
		if days <= 2 {
			u = UrgencySoon
		}
		return CountdownView{Text: fmt.Sprintf("%dd %dh %dm", days, hours, minutes), Urgency: u}
	case hours > 0:
		return CountdownView{Text: fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds), Urgency: UrgencyWarning}
	case minutes > 0:
		return CountdownView{Text: fmt.Sprintf("%dm %ds", minutes, seconds), Urgency: UrgencyWarning}
	default:
		return CountdownView{Text: fmt.Sprintf("%ds", seconds), Urgency: UrgencyCritical}
	}
}
