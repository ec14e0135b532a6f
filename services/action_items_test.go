package services

import "testing"

func TestParseActionItems(t *testing.T) {
	response := `Here are the items I found:
[
  {"task": "Review quarterly report", "priority": "high", "deadline": "Dec 15", "category": "task"},
  {"task": "Schedule meeting with team"}
]
Let me know if you need anything else.`

	items := parseActionItems(response)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Task != "Review quarterly report" || items[0].Priority != "high" {
		t.Errorf("first item mangled: %+v", items[0])
	}
	if items[0].Deadline == nil || *items[0].Deadline != "Dec 15" {
		t.Errorf("deadline lost: %+v", items[0])
	}
	if items[1].Priority != "medium" {
		t.Errorf("missing priority should default to medium, got %q", items[1].Priority)
	}
	if items[1].Category != "task" {
		t.Errorf("missing category should default to task, got %q", items[1].Category)
	}
	if items[1].Deadline != nil {
		t.Errorf("deadline should stay nil when absent, got %v", *items[1].Deadline)
	}
}

func TestParseActionItemsDropsEmptyTasks(t *testing.T) {
	items := parseActionItems(`[{"task": "  "}, {"task": "Real work", "priority": "low"}]`)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Task != "Real work" || items[0].Priority != "low" {
		t.Errorf("kept the wrong item: %+v", items[0])
	}
}

func TestParseActionItemsToleratesGarbage(t *testing.T) {
	for _, response := range []string{
		"",
		"No action items found.",
		"[not valid json]",
		"]backwards[",
	} {
		if items := parseActionItems(response); len(items) != 0 {
			t.Errorf("parseActionItems(%q) = %v, want empty", response, items)
		}
	}
	if items := parseActionItems("[]"); items == nil || len(items) != 0 {
		t.Errorf("empty array should give empty non-nil slice, got %v", items)
	}
}
