package core

import "strings"

// ArchivalToolName is the registry name of the primary-source archival
// search tool.
const ArchivalToolName = "dpla_search"

// archivalTriggers are the query phrases that signal a primary-source
// research intent. Matching is case-insensitive substring.
var archivalTriggers = []string{
	"primary source",
	"letters",
	"correspondence",
	"original documents",
}

const archivalStep = "Additional step: use the " + ArchivalToolName + " tool to locate primary source documents relevant to the research questions, and cite the archival items found."

// AugmentPlan appends an archival-tool instruction to the draft plan when the
// query asks for primary sources and the plan does not already mention the
// tool. Pure and idempotent: AugmentPlan(q, AugmentPlan(q, p)) equals
// AugmentPlan(q, p).
func AugmentPlan(query, plan string) string {
	if !wantsPrimarySources(query) {
		return plan
	}
	if strings.Contains(strings.ToLower(plan), ArchivalToolName) {
		return plan
	}
	return strings.TrimRight(plan, "\n") + "\n\n" + archivalStep
}

func wantsPrimarySources(query string) bool {
	q := strings.ToLower(query)
	for _, trigger := range archivalTriggers {
		if strings.Contains(q, trigger) {
			return true
		}
	}
	return false
}
