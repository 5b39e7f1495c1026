package enums

import "testing"

func TestCartStatusRoundTripsThroughTheDatabase(t *testing.T) {
	v, err := CartStatus("").Value()
	if err != nil || v != "pending" {
		t.Fatalf("empty status should persist as pending, got %v %v", v, err)
	}
	if _, err := CartStatus("abandoned").Value(); err == nil {
		t.Fatalf("unknown status must not persist")
	}

	var status CartStatus
	if err := status.Scan([]byte("pending")); err != nil || status != CartStatusPending {
		t.Fatalf("scan: %v %v", status, err)
	}
	if err := status.Scan(42); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestDLQReasons(t *testing.T) {
	for _, raw := range []string{"max_attempts", "non_retryable", "expired"} {
		if _, err := ParseOutboxDLQErrorReason(raw); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
	}
	if OutboxDLQErrorReason("lost").IsValid() {
		t.Fatalf("unknown reason accepted")
	}
}
