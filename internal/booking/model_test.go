package booking

import "testing"

func TestBookingStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to cancelled", StatusPending, StatusCancelled, false},
		{"pending to pending", StatusPending, StatusPending, false},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true},
		{"confirmed to pending", StatusConfirmed, StatusPending, false},
		{"confirmed to failed", StatusConfirmed, StatusFailed, false},
		{"failed is terminal", StatusFailed, StatusCancelled, false},
		{"cancelled is terminal", StatusCancelled, StatusConfirmed, false},
		{"cancelled cannot repeat", StatusCancelled, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestBookingStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("PENDING should not be terminal")
	}
	if StatusConfirmed.Terminal() {
		t.Error("CONFIRMED should not be terminal")
	}
	if !StatusFailed.Terminal() {
		t.Error("FAILED should be terminal")
	}
	if !StatusCancelled.Terminal() {
		t.Error("CANCELLED should be terminal")
	}
}

func TestBookingStatusValid(t *testing.T) {
	for _, s := range []BookingStatus{StatusPending, StatusConfirmed, StatusFailed, StatusCancelled} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if BookingStatus("pending").Valid() {
		t.Error("lowercase status should not be valid")
	}
	if BookingStatus("").Valid() {
		t.Error("empty status should not be valid")
	}
}
