package importer

import (
	"sort"
	"strings"

	"github.com/contaplan/coa-engine/internal/domain/coa/classify"
	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// selfCorrectIncrement is the digit width assumed for levels the profile did
// not declare; matches the generic multi-column heuristic.
const selfCorrectIncrement = 2

// deriveGroupRules builds one rule per distinct leading digit from the level-1
// accounts, typing each rule from the root's name alone. When several roots
// share a prefix the most descriptive name wins: non-placeholder beats
// placeholder, then longer beats shorter.
func deriveGroupRules(accounts []model.Account, classifier *classify.Classifier) []model.GroupRule {
	bestName := make(map[string]string)
	for _, acc := range accounts {
		if acc.Level != 1 || acc.Code == "" {
			continue
		}
		prefix := acc.Code[:1]
		current, seen := bestName[prefix]
		if !seen || moreDescriptive(acc.Name, current) {
			bestName[prefix] = acc.Name
		}
	}

	rules := make([]model.GroupRule, 0, len(bestName))
	for prefix, name := range bestName {
		res := classifier.ClassifyRootNameOnly(name)
		rules = append(rules, model.GroupRule{Prefix: prefix, Type: res.Type})
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Prefix < rules[j].Prefix })
	return rules
}

// applyGroupRules re-types every account that falls under a rule so a subtree
// cannot fork type from its group ancestor. Accounts outside every rule keep
// their classified type.
func applyGroupRules(accounts []model.Account, rules []model.GroupRule) {
	for i := range accounts {
		if match := model.MatchGroupRule(accounts[i].Code, rules); match != nil {
			accounts[i].Type = match.Type
			accounts[i].Confidence = 1.0
		}
	}
}

// moreDescriptive prefers real names over placeholders, then longer names.
func moreDescriptive(candidate, current string) bool {
	candPlaceholder := isPlaceholderName(candidate)
	currPlaceholder := isPlaceholderName(current)
	if candPlaceholder != currPlaceholder {
		return currPlaceholder
	}
	return len(strings.TrimSpace(candidate)) > len(strings.TrimSpace(current))
}

func isPlaceholderName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 {
		return true
	}
	for _, r := range trimmed {
		if r != 'X' && r != 'x' {
			return false
		}
	}
	return true
}

// observedLevel is Level without the clamp: codes deeper than the profile
// declares report the level they would have if the profile were extended by
// the default increment.
func observedLevel(code string, profile model.StructureProfile) int {
	code = strings.TrimSpace(code)
	if code == "" {
		return 1
	}

	if profile.SeparatorMode {
		segments := strings.Split(code, profile.Separator)
		kept := len(segments)
		if profile.SmartZeroCheck {
			for kept > 1 && allZeroDigits(segments[kept-1]) {
				kept--
			}
		}
		if kept < 1 {
			kept = 1
		}
		return kept
	}

	digits := digitsOnly(code)
	for i, cum := range profile.LevelLengths {
		if len(digits) <= cum {
			return i + 1
		}
	}
	if len(profile.LevelLengths) == 0 {
		return 1
	}
	last := profile.LevelLengths[len(profile.LevelLengths)-1]
	extra := len(digits) - last
	return len(profile.LevelLengths) + (extra+selfCorrectIncrement-1)/selfCorrectIncrement
}

// selfCorrectProfile extends the profile to cover maxLevel, appending one
// increment-sized level at a time. Profiles are never shrunk; a stale deep
// profile is harmless, a stale shallow one truncates data.
func selfCorrectProfile(profile model.StructureProfile, maxLevel int) (model.StructureProfile, bool) {
	if maxLevel <= profile.LevelCount {
		return profile, false
	}

	corrected := profile.Clone()
	for corrected.LevelCount < maxLevel {
		last := 0
		if n := len(corrected.LevelLengths); n > 0 {
			last = corrected.LevelLengths[n-1]
		}
		corrected.LevelLengths = append(corrected.LevelLengths, last+selfCorrectIncrement)
		corrected.LevelCount++
	}
	return corrected, true
}

func allZeroDigits(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		if r != '0' {
			return false
		}
	}
	return true
}

func digitsOnly(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
