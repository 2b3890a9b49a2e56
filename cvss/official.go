package cvss

import (
	"strings"

	"github.com/moznion/go-optional"
	gocvss20 "github.com/pandatix/go-cvss/20"
	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"
	gocvss40 "github.com/pandatix/go-cvss/40"
)

// OfficialScore computes the base score with the reference CVSS calculator
// for the vector's version. It is stored next to the coarse Score for
// reporting and never drives the risk tier.
func OfficialScore(vector string) optional.Option[float64] {
	switch {
	case strings.HasPrefix(vector, "CVSS:4.0/"):
		cvss, err := gocvss40.ParseVector(vector)
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(cvss.Score())
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		cvss, err := gocvss31.ParseVector(vector)
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(cvss.BaseScore())
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		cvss, err := gocvss30.ParseVector(vector)
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(cvss.BaseScore())
	default:
		// v2 vectors carry no version prefix
		cvss, err := gocvss20.ParseVector(strings.TrimPrefix(vector, "CVSS:2.0/"))
		if err != nil {
			return optional.None[float64]()
		}
		return optional.Some(cvss.BaseScore())
	}
}
