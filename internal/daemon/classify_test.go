package daemon

import "testing"

func TestClassifier_Defaults(t *testing.T) {
	c := NewClassifier(nil)

	structured := []string{
		"team-a/inboxes/lead.json",
		"inbox.json",
		"team/inbox/messages.json",
	}
	for _, id := range structured {
		if got := c.Classify(id); got != Structured {
			t.Errorf("Classify(%q) = %s, want structured", id, got)
		}
	}

	appendLogs := []string{
		"a.log",
		"session-1/tasks.json",
		"team-a/config.json",
	}
	for _, id := range appendLogs {
		if got := c.Classify(id); got != AppendLog {
			t.Errorf("Classify(%q) = %s, want append", id, got)
		}
	}
}

func TestClassifier_GlobRules(t *testing.T) {
	c := NewClassifier([]string{"*/state/*.json", "snapshot-*.json"})

	if got := c.Classify("team/state/current.json"); got != Structured {
		t.Errorf("full-path glob: got %s, want structured", got)
	}
	if got := c.Classify("deep/nested/snapshot-7.json"); got != Structured {
		t.Errorf("base-name glob: got %s, want structured", got)
	}
	if got := c.Classify("team/inbox.json"); got != AppendLog {
		t.Errorf("custom rules should replace defaults: got %s, want append", got)
	}
}

func TestClassifier_EmptyRules(t *testing.T) {
	c := NewClassifier([]string{})
	if got := c.Classify("team/inbox.json"); got != AppendLog {
		t.Errorf("empty rule list: got %s, want append", got)
	}

	c = NewClassifier([]string{"  ", ""})
	if got := c.Classify("anything.json"); got != AppendLog {
		t.Errorf("blank rules should be ignored: got %s, want append", got)
	}
}

func TestClassification_String(t *testing.T) {
	if AppendLog.String() != "append" {
		t.Errorf("AppendLog.String() = %q", AppendLog.String())
	}
	if Structured.String() != "structured" {
		t.Errorf("Structured.String() = %q", Structured.String())
	}
	if Classification(42).String() != "unknown" {
		t.Errorf("unknown classification = %q", Classification(42).String())
	}
}
