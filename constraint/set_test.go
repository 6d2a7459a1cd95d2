package constraint

import "testing"

func TestBlocks_OtherMemberRunningBlocksCandidate(t *testing.T) {
	s := NewSet()
	s.Add(NewGroup("J1", "J2"))

	running := map[string]bool{"J2": true}
	blocked := s.Blocks("J1", func(name string) bool { return running[name] })
	if !blocked {
		t.Fatal("J1 should be blocked while J2 (same group) is RUNNING")
	}
}

func TestBlocks_ReflexiveSelfRunningBlocksCandidate(t *testing.T) {
	s := NewSet()
	s.Add(NewGroup("J1", "J2"))

	// J1 itself is RUNNING; the reflexive Open Question semantics mean the
	// group check alone (not just the separate same-name RUNNING check)
	// must also report this as blocking.
	running := map[string]bool{"J1": true}
	blocked := s.Blocks("J1", func(name string) bool { return running[name] })
	if !blocked {
		t.Fatal("constraint group should reflexively block a candidate already RUNNING under its own name")
	}
}

func TestBlocks_NoMemberRunningDoesNotBlock(t *testing.T) {
	s := NewSet()
	s.Add(NewGroup("J1", "J2"))

	blocked := s.Blocks("J1", func(string) bool { return false })
	if blocked {
		t.Fatal("candidate should not be blocked when no group member is RUNNING")
	}
}

func TestBlocks_UnrelatedGroupDoesNotBlock(t *testing.T) {
	s := NewSet()
	s.Add(NewGroup("J3", "J4"))

	running := map[string]bool{"J4": true}
	blocked := s.Blocks("J1", func(name string) bool { return running[name] })
	if blocked {
		t.Fatal("J1 is not a member of any group containing J4, should not be blocked")
	}
}

func TestAdd_IsCopyOnWrite(t *testing.T) {
	s := NewSet()
	before := s.Groups()
	s.Add(NewGroup("J1", "J2"))
	after := s.Groups()

	if len(before) != 0 {
		t.Fatalf("snapshot taken before Add was mutated: %v", before)
	}
	if len(after) != 1 {
		t.Fatalf("snapshot taken after Add = %v, want 1 group", after)
	}
}
