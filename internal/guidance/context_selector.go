package guidance

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/osqr-dev/osqr/internal/config"
)

// SelectionResult is the Context Selector's output: which items fit the
// budget, which were excluded, and how much of the budget was used.
type SelectionResult struct {
	LoadedItems     []MentorScriptItem
	ExcludedItems   []MentorScriptItem
	TotalTokensUsed int
	BudgetPercentage float64
}

var wordSplitter = regexp.MustCompile(`[^\w]+`)

var categoryKeywords = map[string][]string{
	"code":        {"function", "code", "bug", "variable", "test", "compile"},
	"formatting":  {"format", "indent", "style", "spacing"},
	"interaction": {"ask", "explain", "confirm", "tone"},
}

// SelectItems scores items against a task description and admits the
// highest-scoring subset that fits within contextBudgetPercent of the
// budget, greedily in score-descending order.
func SelectItems(items []MentorScriptItem, task string, contextBudget int, cfg config.GuidanceConfig) SelectionResult {
	pct := cfg.ContextBudgetPercent
	if pct <= 0 {
		pct = 70
	}
	target := int(float64(contextBudget) * pct / 100)

	type scoredItem struct {
		item   MentorScriptItem
		tokens int
		score  float64
	}

	scored := make([]scoredItem, 0, len(items))
	for _, it := range items {
		tokens := estimateTokens(it.Rule)
		score := scoreItem(it, task, cfg)
		scored = append(scored, scoredItem{item: it, tokens: tokens, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var loaded, excluded []MentorScriptItem
	used := 0
	cut := len(scored)
	for i, s := range scored {
		if used+s.tokens > target {
			cut = i
			break
		}
		loaded = append(loaded, s.item)
		used += s.tokens
	}
	for _, s := range scored[cut:] {
		excluded = append(excluded, s.item)
	}

	pctUsed := 0.0
	if contextBudget > 0 {
		pctUsed = float64(used) / float64(contextBudget) * 100
	}

	return SelectionResult{
		LoadedItems:      loaded,
		ExcludedItems:    excluded,
		TotalTokensUsed:  used,
		BudgetPercentage: pctUsed,
	}
}

func estimateTokens(rule string) int {
	return (len(rule)+3)/4 + 5
}

func scoreItem(it MentorScriptItem, task string, cfg config.GuidanceConfig) float64 {
	relevance := relevanceScore(it.Rule, task)
	priorityNorm := float64(it.Priority) / 10
	usageNorm := math.Min(float64(it.AppliedCount)/100, 1)
	recency := recencyScore(it.CreatedAt, cfg)

	return 0.40*relevance + 0.25*priorityNorm + 0.20*usageNorm + 0.15*recency
}

func relevanceScore(rule, task string) float64 {
	ruleWords := wordSet(rule)
	taskWords := wordSet(task)

	jaccard := 0.0
	if len(ruleWords) > 0 || len(taskWords) > 0 {
		intersection, union := 0, 0
		seen := make(map[string]bool)
		for w := range ruleWords {
			seen[w] = true
		}
		for w := range taskWords {
			seen[w] = true
		}
		union = len(seen)
		for w := range ruleWords {
			if taskWords[w] {
				intersection++
			}
		}
		if union > 0 {
			jaccard = float64(intersection) / float64(union)
		}
	}

	lowerRule := strings.ToLower(rule)
	lowerTask := strings.ToLower(task)
	boost := 0.0
	for category, keywords := range categoryKeywords {
		ruleHas, taskHas := false, false
		for _, kw := range keywords {
			if strings.Contains(lowerRule, kw) {
				ruleHas = true
			}
			if strings.Contains(lowerTask, kw) {
				taskHas = true
			}
		}
		if ruleHas && taskHas {
			switch category {
			case "code":
				boost += 0.2
			case "formatting":
				boost += 0.15
			case "interaction":
				boost += 0.15
			}
		}
	}

	return math.Min(jaccard+boost, 1)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range wordSplitter.Split(strings.ToLower(s), -1) {
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func recencyScore(createdAt time.Time, cfg config.GuidanceConfig) float64 {
	if createdAt.IsZero() {
		return 0
	}
	decay := cfg.RecencyDecayDays
	if decay <= 0 {
		decay = 40
	}
	daysSince := time.Since(createdAt).Hours() / 24
	return math.Exp(-daysSince / decay)
}

// ConsolidationSuggested reports whether item count meets the soft limit.
func ConsolidationSuggested(count int, cfg config.GuidanceConfig) bool {
	soft := cfg.SoftLimit
	if soft <= 0 {
		soft = 15
	}
	return count >= soft
}

// ConsolidationRequired reports whether item count meets the hard limit.
func ConsolidationRequired(count int, cfg config.GuidanceConfig) bool {
	hard := cfg.HardLimit
	if hard <= 0 {
		hard = 25
	}
	return count >= hard
}
