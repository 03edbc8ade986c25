package guidance

import (
	"strings"
	"testing"
	"time"

	"github.com/osqr-dev/osqr/internal/config"
)

func TestSelectItemsFitsWithinBudget(t *testing.T) {
	cfg := config.DefaultGuidanceConfig()
	items := []MentorScriptItem{
		{ID: "a", Rule: "always format code with gofmt", Priority: 8, AppliedCount: 50, CreatedAt: time.Now()},
		{ID: "b", Rule: "write thorough unit tests for every function", Priority: 9, AppliedCount: 90, CreatedAt: time.Now()},
		{ID: "c", Rule: "use a friendly tone when explaining concepts", Priority: 2, AppliedCount: 1, CreatedAt: time.Now().Add(-100 * 24 * time.Hour)},
	}

	result := SelectItems(items, "please format this code function", 200, cfg)
	if len(result.LoadedItems) == 0 {
		t.Fatal("expected at least one item loaded")
	}
	if result.TotalTokensUsed > int(float64(200)*cfg.ContextBudgetPercent/100) {
		t.Errorf("loaded items exceed target budget: used=%d", result.TotalTokensUsed)
	}
}

func TestSelectItemsExcludesLowScoring(t *testing.T) {
	cfg := config.DefaultGuidanceConfig()
	items := []MentorScriptItem{
		{ID: "relevant", Rule: "always write code with proper error handling and testing", Priority: 10, AppliedCount: 100, CreatedAt: time.Now()},
		{ID: "irrelevant", Rule: "remember to water the plants on thursdays", Priority: 1, AppliedCount: 0, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)},
	}

	result := SelectItems(items, "write a test for this code function", 30, cfg)
	if len(result.LoadedItems) != 1 || result.LoadedItems[0].ID != "relevant" {
		t.Errorf("expected only the relevant item to load, got %+v", result.LoadedItems)
	}
	if len(result.ExcludedItems) != 1 || result.ExcludedItems[0].ID != "irrelevant" {
		t.Errorf("expected irrelevant item excluded, got %+v", result.ExcludedItems)
	}
}

func TestSelectItemsLoadedIsScoreDescendingPrefix(t *testing.T) {
	cfg := config.DefaultGuidanceConfig()
	items := []MentorScriptItem{
		{ID: "high", Rule: "always write thorough tests for every function and handle errors", Priority: 10, AppliedCount: 100, CreatedAt: time.Now()},
		{ID: "oversized-mid", Rule: strings.Repeat("write tests for functions and handle errors carefully ", 20), Priority: 9, AppliedCount: 90, CreatedAt: time.Now()},
		{ID: "small-low", Rule: "water the plants", Priority: 1, AppliedCount: 0, CreatedAt: time.Now().Add(-365 * 24 * time.Hour)},
	}

	result := SelectItems(items, "write a test for this function", 60, cfg)

	if len(result.LoadedItems) != 1 || result.LoadedItems[0].ID != "high" {
		t.Fatalf("expected only the highest-scoring item loaded as a prefix, got %+v", result.LoadedItems)
	}
	if len(result.ExcludedItems) != 2 {
		t.Fatalf("expected the oversized item and everything after it excluded, got %+v", result.ExcludedItems)
	}
	excludedIDs := map[string]bool{result.ExcludedItems[0].ID: true, result.ExcludedItems[1].ID: true}
	if !excludedIDs["oversized-mid"] || !excludedIDs["small-low"] {
		t.Errorf("expected small-low excluded even though it would fit, since it is not a prefix, got %+v", result.ExcludedItems)
	}
}

func TestRelevanceScoreJaccardAndBoost(t *testing.T) {
	score := relevanceScore("always write tests for functions", "please write a test for this function")
	if score <= 0 {
		t.Errorf("expected positive relevance score, got %v", score)
	}
	if score > 1 {
		t.Errorf("expected relevance capped at 1, got %v", score)
	}
}

func TestRecencyScoreDecaysOverTime(t *testing.T) {
	cfg := config.DefaultGuidanceConfig()
	fresh := recencyScore(time.Now(), cfg)
	old := recencyScore(time.Now().Add(-365*24*time.Hour), cfg)
	if old >= fresh {
		t.Errorf("expected older item to have lower recency score: old=%v fresh=%v", old, fresh)
	}
}

func TestConsolidationThresholds(t *testing.T) {
	cfg := config.DefaultGuidanceConfig()
	if ConsolidationSuggested(10, cfg) {
		t.Error("expected no suggestion below soft limit")
	}
	if !ConsolidationSuggested(15, cfg) {
		t.Error("expected suggestion at soft limit")
	}
	if !ConsolidationRequired(25, cfg) {
		t.Error("expected required at hard limit")
	}
}
