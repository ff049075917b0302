package metrics

import "testing"

type recordSink struct {
	count int
}

func (r *recordSink) RecordCommand(CommandEvent) error {
	r.count++
	return nil
}

func (r *recordSink) RecordLaneLoad([]LaneLoad) error {
	r.count++
	return nil
}

type commandOnly struct{ count int }

func (c *commandOnly) RecordCommand(CommandEvent) error {
	c.count++
	return nil
}

// TestMultiSink ensures events are forwarded to all sinks that support them.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	s3 := &commandOnly{}
	m := NewMultiSink(s1, s2, s3)
	if err := m.RecordCommand(CommandEvent{Command: "assign"}); err != nil {
		t.Fatalf("record command: %v", err)
	}
	if err := m.RecordLaneLoad(nil); err != nil {
		t.Fatalf("record lane load: %v", err)
	}
	if err := m.RecordBalance(BalanceEvent{}); err != nil {
		t.Fatalf("record balance: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("events not forwarded: %d %d", s1.count, s2.count)
	}
	if s3.count != 1 {
		t.Fatalf("expected 1 command on partial sink, got %d", s3.count)
	}
}
