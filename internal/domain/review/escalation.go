package review

// reminderThresholds[n] is the days-overdue a form must reach before the
// reminder following n already-sent reminders goes out. Past the table, a
// reminder fires every seventh day.
var reminderThresholds = []int{1, 3, 5, 7, 10, 14}

// EscalationDecision is the outcome of evaluating one overdue form. The
// escalation tiers are derived from the reminder counter at send time and are
// cumulative: an HR notice never replaces the manager notice or the reminder
// to the original recipient.
type EscalationDecision struct {
	SendNow          bool
	NotifyManager    bool
	NotifyLeadership bool
	NotifyHR         bool
}

// EvaluateReminder applies the reminder cadence and escalation policy for a
// form of the given kind with reminders already sent and daysOverdue whole
// days past its deadline. After acting on a SendNow decision the caller
// increments the reminder counter by exactly one; the tier is never stored.
func EvaluateReminder(kind string, reminders, daysOverdue int) EscalationDecision {
	var decision EscalationDecision
	if reminders < 0 || daysOverdue <= 0 {
		return decision
	}

	if reminders < len(reminderThresholds) {
		decision.SendNow = daysOverdue >= reminderThresholds[reminders]
	} else {
		decision.SendNow = daysOverdue%7 == 0
	}
	if !decision.SendNow {
		return decision
	}

	switch kind {
	case FormSelf:
		decision.NotifyManager = reminders >= 2
		decision.NotifyHR = reminders >= 4
	case FormManager:
		// Manager delinquency escalates to senior leadership sooner.
		decision.NotifyLeadership = reminders >= 1
	}
	return decision
}
