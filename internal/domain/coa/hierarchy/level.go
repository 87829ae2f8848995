// Package hierarchy computes account levels and parent codes under a
// structure profile, and repairs parent links across an existing account set.
package hierarchy

import (
	"strings"

	"github.com/contaplan/coa-engine/internal/domain/coa/model"
)

// Level returns the 1-based hierarchy depth of code under profile.
//
// In separator mode the code is split on the separator; when SmartZeroCheck is
// set, trailing all-zero segments are dropped before counting, so "1.00.00"
// reports level 1. The result is clamped to [1, LevelCount].
//
// In length mode all non-digit characters are stripped and the level is the
// index of the first LevelLengths entry that covers the stripped length; a
// code longer than every entry is at the deepest level. A code shorter than
// LevelLengths[0] is still level 1. When SmartZeroCheck is set the digits are
// segmented at the level boundaries and trailing all-zero segments are
// dropped, so the fully padded root "100000000" reports level 1 under the
// five-segment profile.
func Level(code string, profile model.StructureProfile) int {
	code = strings.TrimSpace(code)
	if code == "" {
		return 1
	}

	if profile.SeparatorMode {
		segments := splitSegments(code, profile)
		level := len(segments)
		if level < 1 {
			level = 1
		}
		if profile.LevelCount >= 1 && level > profile.LevelCount {
			level = profile.LevelCount
		}
		return level
	}

	digits := stripNonDigits(code)
	level := 0
	for i, cum := range profile.LevelLengths {
		if len(digits) <= cum {
			level = i + 1
			break
		}
	}
	if level == 0 {
		if profile.LevelCount >= 1 {
			level = profile.LevelCount
		} else {
			level = 1
		}
	}
	if profile.SmartZeroCheck {
		for level > 1 {
			start := profile.LevelLengths[level-2]
			end := len(digits)
			if cum := profile.LevelLengths[level-1]; cum < end {
				end = cum
			}
			if start >= end || !allZero(digits[start:end]) {
				break
			}
			level--
		}
	}
	return level
}

// Parent returns the parent code of code under profile, or nil for level-1
// codes. In length mode the parent is the digit-stripped prefix through the
// previous level's cumulative length; consumers compare on digit-stripped form
// in that mode, so separators are not re-applied.
func Parent(code string, profile model.StructureProfile) *string {
	code = strings.TrimSpace(code)
	level := Level(code, profile)
	if level <= 1 {
		return nil
	}

	if profile.SeparatorMode {
		segments := splitSegments(code, profile)
		if len(segments) <= 1 {
			return nil
		}
		parent := strings.Join(segments[:len(segments)-1], profile.Separator)
		return &parent
	}

	digits := stripNonDigits(code)
	parentLen := profile.LevelLengths[level-2]
	if parentLen > len(digits) {
		parentLen = len(digits)
	}
	parent := digits[:parentLen]
	return &parent
}

// splitSegments splits a separator-mode code and, when SmartZeroCheck is set,
// drops trailing segments that are entirely zero-valued, stopping at the first
// non-zero segment from the right. At least one segment is always kept.
func splitSegments(code string, profile model.StructureProfile) []string {
	segments := strings.Split(code, profile.Separator)
	if !profile.SmartZeroCheck {
		return segments
	}
	end := len(segments)
	for end > 1 && allZero(segments[end-1]) {
		end--
	}
	return segments[:end]
}

func allZero(segment string) bool {
	if segment == "" {
		return true
	}
	for _, r := range segment {
		if r != '0' {
			return false
		}
	}
	return true
}

func stripNonDigits(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
