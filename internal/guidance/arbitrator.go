package guidance

import (
	"fmt"
	"regexp"
	"strings"
)

// Layer is one of the four precedence-ordered guidance sources, highest
// precedence first.
type Layer string

const (
	LayerConstitutional   Layer = "constitutional"
	LayerUserMentorScript Layer = "user_mentorscript"
	LayerPlugin           Layer = "plugin"
	LayerBriefingScript   Layer = "briefingscript"
)

var layerPrecedence = []Layer{LayerConstitutional, LayerUserMentorScript, LayerPlugin, LayerBriefingScript}

// Entry is one guidance text entry tagged with its source layer.
type Entry struct {
	Layer Layer
	Text  string
}

var knownTopics = []string{
	"code", "formatting", "interaction", "tone", "debugging",
	"testing", "documentation", "api", "database", "security",
}

var topicKeywordMap = map[string][]string{
	"code":          {"function", "variable", "code", "syntax"},
	"formatting":    {"format", "indent", "style", "spacing"},
	"interaction":   {"ask", "confirm", "explain"},
	"tone":          {"tone", "polite", "formal", "friendly"},
	"debugging":     {"debug", "error", "exception", "stack trace"},
	"testing":       {"test", "coverage", "assertion"},
	"documentation": {"document", "comment", "docstring", "readme"},
	"api":           {"endpoint", "api", "request", "response"},
	"database":      {"database", "query", "schema", "table"},
	"security":      {"security", "auth", "credential", "vulnerability"},
}

var significantWord = regexp.MustCompile(`[^\w]+`)

// Topic categorizes a guidance text into one of the known topics, or
// synthesizes one from its first three significant lowercased words.
func Topic(text string) string {
	lower := strings.ToLower(text)
	for _, topic := range knownTopics {
		for _, kw := range topicKeywordMap[topic] {
			if strings.Contains(lower, kw) {
				return topic
			}
		}
	}

	words := significantWord.Split(lower, -1)
	var significant []string
	for _, w := range words {
		if len(w) > 2 {
			significant = append(significant, w)
		}
		if len(significant) == 3 {
			break
		}
	}
	if len(significant) == 0 {
		return "general"
	}
	return strings.Join(significant, "_")
}

// FilterOverridden walks sources in precedence order and admits at most one
// entry per topic: the first (highest-precedence) entry for a topic wins.
func FilterOverridden(sources []Entry) []Entry {
	byLayer := make(map[Layer][]Entry)
	for _, e := range sources {
		byLayer[e.Layer] = append(byLayer[e.Layer], e)
	}

	seen := make(map[string]bool)
	var out []Entry
	for _, layer := range layerPrecedence {
		for _, e := range byLayer[layer] {
			topic := Topic(e.Text)
			if seen[topic] {
				continue
			}
			seen[topic] = true
			out = append(out, e)
		}
	}
	return out
}

// Merge builds a single formatted guidance string under fixed section
// headers, including plugin entries only when their topic isn't already
// claimed by a user-mentorscript entry.
func Merge(constitutional, user, plugin, briefing []string) string {
	userTopics := make(map[string]bool)
	for _, u := range user {
		userTopics[Topic(u)] = true
	}

	var plug []string
	for _, p := range plugin {
		if !userTopics[Topic(p)] {
			plug = append(plug, p)
		}
	}

	var b strings.Builder
	writeSection(&b, "Constitutional Guidance", constitutional)
	writeSection(&b, "User Guidance", user)
	writeSection(&b, "Plugin Guidance", plug)
	writeSection(&b, "Session Briefing", briefing)
	return b.String()
}

func writeSection(b *strings.Builder, header string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", header)
	for _, l := range lines {
		fmt.Fprintf(b, "- %s\n", l)
	}
	b.WriteString("\n")
}

// ConflictGroups groups sources by topic and returns only groups containing
// two or more entries — candidates for manual conflict resolution.
func ConflictGroups(sources []Entry) map[string][]Entry {
	byTopic := make(map[string][]Entry)
	for _, e := range sources {
		topic := Topic(e.Text)
		byTopic[topic] = append(byTopic[topic], e)
	}
	out := make(map[string][]Entry)
	for topic, entries := range byTopic {
		if len(entries) >= 2 {
			out[topic] = entries
		}
	}
	return out
}
