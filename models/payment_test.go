package models

import "testing"

func TestStatusTransitions_PendingPaths(t *testing.T) {
	if !StatusPending.CanTransitionTo(StatusProcessing) {
		t.Error("pending -> processing should be allowed")
	}
	if !StatusPending.CanTransitionTo(StatusCompleted) {
		t.Error("pending -> completed should be allowed")
	}
	if StatusPending.CanTransitionTo(StatusRefunded) {
		t.Error("pending -> refunded should not be allowed")
	}
}

func TestStatusTransitions_TerminalStates(t *testing.T) {
	terminals := []TransactionStatus{StatusFailed, StatusCancelled, StatusRefunded}
	all := []TransactionStatus{
		StatusPending, StatusProcessing, StatusCompleted,
		StatusFailed, StatusCancelled, StatusRefunded,
	}

	for _, from := range terminals {
		for _, to := range all {
			if from.CanTransitionTo(to) {
				t.Errorf("terminal status %s should not transition to %s", from, to)
			}
		}
	}

	// completed is terminal for the checkout flow but may still be refunded
	if !StatusCompleted.CanTransitionTo(StatusRefunded) {
		t.Error("completed -> refunded should be allowed")
	}
	if StatusCompleted.CanTransitionTo(StatusPending) {
		t.Error("completed -> pending should not be allowed")
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("pending/processing must not be terminal")
	}
	for _, s := range []TransactionStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded} {
		if !s.IsTerminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []PaymentMethod{MethodKhalti, MethodEsewa, MethodCash} {
		if !ValidMethod(m) {
			t.Errorf("%s should be a valid method", m)
		}
	}
	if ValidMethod(PaymentMethod("paypal")) {
		t.Error("unknown method should be invalid")
	}
}
