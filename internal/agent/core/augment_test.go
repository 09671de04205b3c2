package core

import (
	"strings"
	"testing"
)

func TestAugmentPlanTriggersOnPrimarySourcePhrases(t *testing.T) {
	plan := "1. Search the web.\n2. Read encyclopedia entries."
	for _, query := range []string{
		"Find primary source documents about the Declaration of Independence",
		"What do the letters of John Adams reveal?",
		"Correspondence between Jefferson and Madison",
		"Locate ORIGINAL DOCUMENTS from the convention",
	} {
		got := AugmentPlan(query, plan)
		if !strings.Contains(got, ArchivalToolName) {
			t.Fatalf("query %q: expected augmented plan to mention %s", query, ArchivalToolName)
		}
		if !strings.HasPrefix(got, plan) {
			t.Fatalf("query %q: augmentation must append, not rewrite", query)
		}
	}
}

func TestAugmentPlanNoTriggerLeavesPlanAlone(t *testing.T) {
	plan := "1. Search the web."
	got := AugmentPlan("Summarize the causes of the French Revolution", plan)
	if got != plan {
		t.Fatalf("expected plan unchanged, got %q", got)
	}
}

func TestAugmentPlanSkipsWhenToolAlreadyMentioned(t *testing.T) {
	plan := "1. Use dpla_search for archival material."
	got := AugmentPlan("find letters from the war", plan)
	if got != plan {
		t.Fatalf("expected plan unchanged when tool already present, got %q", got)
	}
}

func TestAugmentPlanIsIdempotent(t *testing.T) {
	query := "letters from Abigail Adams"
	plan := "1. Search the web."
	once := AugmentPlan(query, plan)
	twice := AugmentPlan(query, once)
	if once != twice {
		t.Fatalf("augmentation is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
	if strings.Count(twice, ArchivalToolName) != 1 {
		t.Fatalf("expected exactly one archival instruction, got %q", twice)
	}
}
