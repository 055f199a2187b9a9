// Package county routes a free-text address to a Texas appraisal district.
package county

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Jurisdiction tags.
const (
	Harris   = "harris"
	FortBend = "fortbend"
	Unknown  = "unknown"
)

// Confidence of a locator match.
const (
	ConfidenceHigh   = "high"   // locality or explicit county name
	ConfidenceMedium = "medium" // ZIP code pattern
	ConfidenceLow    = "low"    // state catch-all only
	ConfidenceNone   = "none"
)

// Hint is advisory routing for the county lookup. It never blocks a request.
type Hint struct {
	Jurisdiction string `json:"jurisdiction"`
	Confidence   string `json:"confidence"`
	Signal       string `json:"signal,omitempty"`
}

// Specific reports whether the hint came from a locality, name or ZIP test
// rather than the state catch-all.
func (h Hint) Specific() bool {
	return h.Jurisdiction != Unknown && h.Confidence != ConfidenceLow
}

type jurisdiction struct {
	tag        string
	localities []string
	names      []string
	zip        *regexp.Regexp
	state      string

	localityRes []*regexp.Regexp
	nameRes     []*regexp.Regexp
}

// jurisdictions in priority order.
var jurisdictions = []jurisdiction{
	{
		tag: Harris,
		localities: []string{
			"houston", "pasadena", "baytown", "bellaire", "humble", "spring",
			"tomball", "cypress", "the woodlands", "klein", "aldine",
			"channelview", "crosby", "deer park", "galena park", "jersey village",
			"seabrook", "la porte", "south houston", "webster", "river oaks",
			"west university", "montrose", "heights",
		},
		names: []string{"harris county", "harris co"},
		zip:   regexp.MustCompile(`\b77[0-3]\d{2}\b`),
		state: "tx",
	},
	{
		tag: FortBend,
		localities: []string{
			"sugar land", "missouri city", "rosenberg", "richmond", "stafford",
			"fulshear", "needville", "meadows place", "arcola", "thompsons",
			"fresno", "sienna", "cinco ranch", "simonton", "beasley", "orchard",
		},
		names: []string{"fort bend", "ft bend", "ft. bend"},
		zip:   regexp.MustCompile(`\b77(4[5-9]|5\d)\d\b`),
		state: "tx",
	},
}

func init() {
	for i := range jurisdictions {
		j := &jurisdictions[i]
		j.localityRes = wordPatterns(j.localities)
		j.nameRes = wordPatterns(j.names)
	}
}

func wordPatterns(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return out
}

var stateRe = regexp.MustCompile(`(?:^|[\s,])(tx|texas)(?:$|[\s,.])`)

// place drops the street line so street names like "Houston St" or
// "Springwood Dr" are not read as localities.
func place(lower string) string {
	if _, rest, ok := strings.Cut(lower, ","); ok {
		return rest
	}
	return lower
}

// zipMatch returns the jurisdiction whose ZIP pattern matches the last
// ZIP-like token in the address.
func zipMatch(lower string) (tag, zip string) {
	for _, j := range jurisdictions {
		if all := j.zip.FindAllString(lower, -1); len(all) > 0 {
			return j.tag, all[len(all)-1]
		}
	}
	return "", ""
}

// Locate picks the first jurisdiction whose specific test matches. Tests run
// in rank order across all jurisdictions: locality, county name, ZIP. The
// state catch-all runs last and is reported with low confidence. A locality
// or name that disagrees with the ZIP is downgraded to low confidence.
func Locate(address string) Hint {
	lower := strings.ToLower(strings.TrimSpace(address))
	if lower == "" {
		return Hint{Jurisdiction: Unknown, Confidence: ConfidenceNone}
	}
	where := place(lower)
	zipTag, zip := zipMatch(lower)

	named := func(tag, signal string) Hint {
		if zipTag != "" && zipTag != tag {
			return Hint{Jurisdiction: tag, Confidence: ConfidenceLow, Signal: signal + " zip:" + zip}
		}
		return Hint{Jurisdiction: tag, Confidence: ConfidenceHigh, Signal: signal}
	}

	for _, j := range jurisdictions {
		for i, re := range j.localityRes {
			if re.MatchString(where) {
				return named(j.tag, "locality:"+j.localities[i])
			}
		}
	}
	for _, j := range jurisdictions {
		for i, re := range j.nameRes {
			if re.MatchString(where) {
				return named(j.tag, "name:"+j.names[i])
			}
		}
	}
	if zipTag != "" {
		return Hint{Jurisdiction: zipTag, Confidence: ConfidenceMedium, Signal: "zip:" + zip}
	}
	if m := stateRe.FindStringSubmatch(lower); m != nil {
		for _, j := range jurisdictions {
			if j.state == "tx" {
				return Hint{Jurisdiction: j.tag, Confidence: ConfidenceLow, Signal: "state:" + m[1]}
			}
		}
	}
	return Hint{Jurisdiction: Unknown, Confidence: ConfidenceNone}
}

// Tags returns every known jurisdiction tag in priority order.
func Tags() []string {
	out := make([]string, len(jurisdictions))
	for i, j := range jurisdictions {
		out[i] = j.tag
	}
	return out
}

// Selection is the caller's choice of county source for a request.
type Selection struct {
	// Mode is one of "auto", "none" or "specific".
	Mode         string `json:"mode"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
}

// Selection modes.
const (
	ModeAuto     = "auto"
	ModeNone     = "none"
	ModeSpecific = "specific"
)

// ParseSelection maps request input to a Selection. The empty string and
// "auto" request locator-based routing; "none" skips county entirely.
func ParseSelection(s string) (Selection, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(v)
	switch v {
	case "", ModeAuto:
		return Selection{Mode: ModeAuto}, nil
	case ModeNone:
		return Selection{Mode: ModeNone}, nil
	}
	for _, j := range jurisdictions {
		if v == j.tag {
			return Selection{Mode: ModeSpecific, Jurisdiction: j.tag}, nil
		}
	}
	return Selection{}, eris.Errorf("unknown county selection %q (valid: auto, none, %s)", s, strings.Join(Tags(), ", "))
}

// String renders the selection the way a caller would send it.
func (s Selection) String() string {
	if s.Mode == ModeSpecific {
		return s.Jurisdiction
	}
	if s.Mode == "" {
		return ModeAuto
	}
	return s.Mode
}
