// Package cvss computes a coarse base score from CVSS v2 and v3 vector
// strings and maps scores to risk tiers.
package cvss

import (
	"math"
	"strings"

	"github.com/moznion/go-optional"
)

type weights map[string]map[string]float64

var v2Weights = weights{
	"AV": {"N": 0.85, "A": 0.62, "L": 0.55},
	"AC": {"H": 0.44, "M": 0.77},
	"Au": {"N": 0.704, "S": 0.56},
	"C":  {"N": 0.0, "P": 0.275, "C": 0.660},
	"I":  {"N": 0.0, "P": 0.275, "C": 0.660},
	"A":  {"N": 0.0, "P": 0.275, "C": 0.660},
}

var v3Weights = weights{
	"AV": {"N": 0.85, "A": 0.62, "L": 0.55, "P": 0.2},
	"AC": {"H": 0.44, "L": 0.77},
	"PR": {"N": 0.85, "L": 0.62, "H": 0.27},
	"UI": {"N": 0.85, "R": 0.62},
	"S":  {"U": 6.42, "C": 7.52},
	"C":  {"N": 0.0, "L": 0.22, "H": 0.56},
	"I":  {"N": 0.0, "L": 0.22, "H": 0.56},
	"A":  {"N": 0.0, "L": 0.22, "H": 0.56},
}

const maxScore = 10.0

// Score returns the base score of vector rounded to one decimal, or None if
// the vector is malformed. Metrics missing from the weight tables are
// ignored.
func Score(vector string) optional.Option[float64] {
	segments := strings.Split(vector, "/")
	if len(segments) < 2 {
		return optional.None[float64]()
	}

	var table weights
	switch {
	case strings.HasPrefix(segments[0], "CVSS:2"):
		table = v2Weights
	case strings.HasPrefix(segments[0], "CVSS:3"):
		table = v3Weights
	default:
		return optional.None[float64]()
	}

	var sum float64
	for _, entry := range segments[1:] {
		metric, value, ok := strings.Cut(entry, ":")
		if !ok || metric == "" || value == "" || strings.Contains(value, ":") {
			return optional.None[float64]()
		}
		if weight, found := table[metric][value]; found {
			sum += weight
		}
	}

	sum = math.Min(sum, maxScore)
	return optional.Some(math.Round(sum*10) / 10)
}
