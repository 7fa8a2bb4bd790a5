package skills

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	outsideToolSet = regexp.MustCompile(`[^a-z0-9-]`)
)

// ToolName derives the canonical tool identifier for a display name:
// lowercased, whitespace runs turned into a single hyphen, and anything
// outside [a-z0-9-] dropped. Distinct names may collide ("Foo!" and "Foo?").
func ToolName(displayName string) string {
	name := strings.ToLower(displayName)
	name = whitespaceRun.ReplaceAllString(name, "-")
	return outsideToolSet.ReplaceAllString(name, "")
}

// DerivedToolName is the name s asks for before collisions are resolved.
// A display name that derives empty becomes "skill-<id>".
func DerivedToolName(s Skill) string {
	if name := ToolName(s.Name); name != "" {
		return name
	}
	return "skill-" + s.Key()
}

// ToolNames assigns every skill a distinct tool name. Each derived name goes
// to the first skill asking for it. A later skill asking for a taken name
// gets "<name>-<id>", then "<name>-<id>-2", "<name>-<id>-3" and so on until
// the result is not claimed by any other skill in the set.
func ToolNames(active []Skill) []string {
	names := make([]string, len(active))
	taken := make(map[string]bool, len(active))

	var losers []int
	for i, s := range active {
		name := DerivedToolName(s)
		names[i] = name
		if taken[name] {
			losers = append(losers, i)
			continue
		}
		taken[name] = true
	}

	for _, i := range losers {
		base := names[i] + "-" + active[i].Key()
		name := base
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}
