package validate

import "testing"

func TestQuickValidateEmptyResponse(t *testing.T) {
	r := QuickValidate("what is 2+2?", "", "judge-1")
	if r.Valid {
		t.Error("expected invalid for empty response")
	}
	if !r.ShouldEscalate {
		t.Error("expected shouldEscalate for error-severity issue")
	}
}

func TestQuickValidateGoodResponse(t *testing.T) {
	r := QuickValidate("what is 2+2?", "2+2 equals 4.", "judge-1")
	if !r.Valid {
		t.Errorf("expected valid response, got issues: %+v", r.Issues)
	}
}

func TestQuickValidateErrorPhrase(t *testing.T) {
	r := QuickValidate("summarize this document for me please", "I cannot help with that request.", "judge-1")
	found := false
	for _, iss := range r.Issues {
		if iss.Kind == IssueFormat {
			found = true
		}
	}
	if !found {
		t.Error("expected a format issue for error-like phrasing")
	}
}

func TestQuickValidateDangerousTerm(t *testing.T) {
	r := QuickValidate("how do I list files?", "just run rm -rf / to clean up", "judge-1")
	found := false
	for _, iss := range r.Issues {
		if iss.Kind == IssueSafety {
			found = true
		}
	}
	if !found {
		t.Error("expected a safety issue for dangerous term")
	}
}

func TestShouldSkipValidation(t *testing.T) {
	cfg := Config{HighConfidenceThreshold: 0.95}
	if !ShouldSkipValidation(0.97, cfg) {
		t.Error("expected skip at high confidence")
	}
	if ShouldSkipValidation(0.5, cfg) {
		t.Error("expected no skip at low confidence")
	}
}

func TestShouldSkipValidationDefaultThreshold(t *testing.T) {
	if !ShouldSkipValidation(0.96, Config{}) {
		t.Error("expected default threshold of 0.95 to apply")
	}
}

func TestMergeValidationResultsDedup(t *testing.T) {
	a := Result{Valid: true, Issues: []Issue{{Kind: IssueFormat, Description: "dup"}}}
	b := Result{Valid: false, ShouldEscalate: true, Issues: []Issue{{Kind: IssueFormat, Description: "dup"}, {Kind: IssueIncomplete, Description: "unique"}}}

	merged := MergeValidationResults([]Result{a, b})
	if merged.Valid {
		t.Error("expected merged.Valid=false since b is invalid")
	}
	if !merged.ShouldEscalate {
		t.Error("expected merged.ShouldEscalate=true")
	}
	if len(merged.Issues) != 2 {
		t.Errorf("expected 2 deduplicated issues, got %d", len(merged.Issues))
	}
}

func TestNeedsEscalation(t *testing.T) {
	if NeedsEscalation(Result{Valid: true}) {
		t.Error("valid result with no flags should not need escalation")
	}
	if !NeedsEscalation(Result{Valid: true, ShouldEscalate: true}) {
		t.Error("shouldEscalate=true should need escalation")
	}
	if !NeedsEscalation(Result{Valid: false}) {
		t.Error("invalid result should need escalation")
	}
	if !NeedsEscalation(Result{Valid: true, Issues: []Issue{{Severity: SeverityError}}}) {
		t.Error("an error-severity issue should need escalation")
	}
}
