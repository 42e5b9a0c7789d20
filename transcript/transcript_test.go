package transcript

import "testing"

func TestAppendJoinsWithSeparator(t *testing.T) {
	var tr Transcript
	for _, s := range []string{"open the door", "  turn on the lights ", "stop"} {
		tr.Append(s)
	}
	want := "open the door. turn on the lights. stop. "
	if got := tr.Finalized(); got != want {
		t.Errorf("Finalized() = %q, want %q", got, want)
	}
	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
}

func TestAppendIgnoresBlank(t *testing.T) {
	var tr Transcript
	for _, s := range []string{"", "   ", "\t\n"} {
		if tr.Append(s) {
			t.Errorf("Append(%q) = true, want false", s)
		}
	}
	if !tr.Empty() {
		t.Errorf("transcript should stay empty, got %q", tr.Display())
	}
}

func TestDisplayIncludesInterim(t *testing.T) {
	var tr Transcript
	tr.Append("hello")
	tr.SetInterim(" wor")
	if got, want := tr.Display(), "hello.  wor"; got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}
	tr.SetInterim("world again")
	if got, want := tr.Display(), "hello. world again"; got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}
	if got := tr.Interim(); got != "world again" {
		t.Errorf("Interim() = %q", got)
	}
	tr.SetInterim("")
	if tr.Interim() != "" {
		t.Errorf("Interim() = %q, want empty", tr.Interim())
	}
	if got, want := tr.Display(), "hello. "; got != want {
		t.Errorf("Display() = %q, want %q", got, want)
	}
}

func TestDeterministic(t *testing.T) {
	build := func() string {
		var tr Transcript
		tr.Append("a")
		tr.SetInterim("b")
		tr.Append(" c ")
		tr.SetInterim("d")
		return tr.Display()
	}
	if a, b := build(), build(); a != b {
		t.Errorf("same events gave %q and %q", a, b)
	}
}

func TestReset(t *testing.T) {
	var tr Transcript
	tr.Append("one")
	tr.SetInterim("two")
	tr.Reset()
	if !tr.Empty() || tr.Len() != 0 || tr.Display() != "" {
		t.Errorf("after Reset: display=%q len=%d", tr.Display(), tr.Len())
	}
}
