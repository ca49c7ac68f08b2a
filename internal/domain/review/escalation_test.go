package review

import "testing"

func TestEvaluateReminderCadence(t *testing.T) {
	cases := []struct {
		name        string
		reminders   int
		daysOverdue int
		sendNow     bool
	}{
		{"not overdue", 0, 0, false},
		{"first reminder at one day", 0, 1, true},
		{"second waits for three days", 1, 2, false},
		{"second at three days", 1, 3, true},
		{"third at five days", 2, 5, true},
		{"sixth at fourteen days", 5, 14, true},
		{"past table only on seventh days", 6, 20, false},
		{"past table on seventh day", 6, 21, true},
		{"negative counter never sends", -1, 30, false},
	}

	for _, tc := range cases {
		decision := EvaluateReminder(FormSelf, tc.reminders, tc.daysOverdue)
		if decision.SendNow != tc.sendNow {
			t.Fatalf("%s: reminders=%d days=%d sendNow=%v, want %v",
				tc.name, tc.reminders, tc.daysOverdue, decision.SendNow, tc.sendNow)
		}
	}
}

func TestEvaluateReminderSelfEscalation(t *testing.T) {
	// Third reminder for a self review copies the manager.
	decision := EvaluateReminder(FormSelf, 2, 5)
	if !decision.SendNow || !decision.NotifyManager {
		t.Fatalf("expected manager escalation, got %+v", decision)
	}
	if decision.NotifyHR || decision.NotifyLeadership {
		t.Fatalf("unexpected HR or leadership escalation, got %+v", decision)
	}

	// Fifth reminder pulls in HR as well.
	decision = EvaluateReminder(FormSelf, 4, 10)
	if !decision.SendNow || !decision.NotifyManager || !decision.NotifyHR {
		t.Fatalf("expected manager and HR escalation, got %+v", decision)
	}
}

func TestEvaluateReminderManagerEscalation(t *testing.T) {
	decision := EvaluateReminder(FormManager, 0, 1)
	if !decision.SendNow || decision.NotifyLeadership {
		t.Fatalf("first manager reminder should not escalate, got %+v", decision)
	}

	decision = EvaluateReminder(FormManager, 1, 3)
	if !decision.SendNow || !decision.NotifyLeadership {
		t.Fatalf("second manager reminder escalates to leadership, got %+v", decision)
	}
	if decision.NotifyManager || decision.NotifyHR {
		t.Fatalf("manager kind never uses the self tiers, got %+v", decision)
	}
}

func TestEvaluateReminderPeerNeverEscalates(t *testing.T) {
	decision := EvaluateReminder(FormPeer, 5, 14)
	if !decision.SendNow {
		t.Fatal("expected peer reminder to send")
	}
	if decision.NotifyManager || decision.NotifyLeadership || decision.NotifyHR {
		t.Fatalf("peer reminders never escalate, got %+v", decision)
	}
}
