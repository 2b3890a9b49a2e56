package cvss

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/moznion/go-optional"
)

type Risk string

const (
	RiskUnknown  Risk = ""
	RiskNone     Risk = "None"
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskCritical Risk = "Critical"
)

func (r Risk) String() string {
	return string(r)
}

// RiskFromScore maps a base score to its tier. Lower bounds are inclusive:
// 4.0 is Medium, 7.0 is High and 9.0 is Critical.
func RiskFromScore(score float64) Risk {
	switch {
	case score <= 0:
		return RiskNone
	case score < 4.0:
		return RiskLow
	case score < 7.0:
		return RiskMedium
	case score < 9.0:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// NormalizeRisk turns a feed supplied severity label into a Risk. "Moderate"
// is treated as "Medium" and any other label is capitalised.
func NormalizeRisk(label string) Risk {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return RiskUnknown
	}
	if label == "moderate" {
		label = "medium"
	}
	first, size := utf8.DecodeRuneInString(label)
	return Risk(string(unicode.ToUpper(first)) + label[size:])
}

// RiskOf prefers the tier computed from vector and falls back to the feed
// label when the vector cannot be scored.
func RiskOf(vector optional.Option[string], label string) Risk {
	score := optional.FlatMap(vector, func(v string) optional.Option[float64] {
		return Score(v)
	})
	return optional.MapOr(score, NormalizeRisk(label), RiskFromScore)
}
