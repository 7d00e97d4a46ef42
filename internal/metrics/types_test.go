package metrics

import "testing"

func TestCoalescedRecordComplete(t *testing.T) {
	c := CoalescedRecord{HasStart: true, HasEnd: true}
	if !c.Complete() {
		t.Error("expected complete")
	}
	c = CoalescedRecord{HasStart: true}
	if c.Complete() {
		t.Error("expected incomplete without an end")
	}
}

func TestCoalescedRecordMalformed(t *testing.T) {
	c := CoalescedRecord{HasStart: true, Start: 100, HasEnd: true, End: 50}
	if !c.Malformed() {
		t.Error("expected malformed when End < Start")
	}

	c = CoalescedRecord{HasStart: true, Start: 100, HasEnd: true, End: 150}
	if c.Malformed() {
		t.Error("did not expect malformed when End >= Start")
	}

	c = CoalescedRecord{HasStart: true, Start: 100}
	if c.Malformed() {
		t.Error("incomplete records are never malformed")
	}
}

func TestErrorTaxonomyUnwrap(t *testing.T) {
	base := &InvariantViolation{Detail: "boom"}

	ingest := &IngestError{Op: "put", Err: base}
	if ingest.Unwrap() != base {
		t.Error("IngestError.Unwrap should return wrapped error")
	}

	view := &ViewError{View: "latency", Err: base}
	if view.Unwrap() != base {
		t.Error("ViewError.Unwrap should return wrapped error")
	}

	rollover := &RolloverError{Window: 1000, Err: base}
	if rollover.Unwrap() != base {
		t.Error("RolloverError.Unwrap should return wrapped error")
	}

	if base.Error() != "invariant violation: boom" {
		t.Errorf("InvariantViolation.Error() = %q", base.Error())
	}
}
