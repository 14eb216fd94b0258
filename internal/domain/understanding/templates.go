package understanding

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/alias"
	"github.com/xbarat/grounding-llm-prototypes-sub000/internal/domain/model"
)

// template is one fast-path pattern. build receives the named groups of the
// first matching expression.
type template struct {
	name     string
	patterns []*regexp.Regexp
	build    func(a *Agent, groups map[string]string) model.ParsedParameters
}

const subjectPattern = `[\p{L}.-]+(?:\s+[\p{L}.-]+)?`

var templates = []template{
	{
		name: "performance-by-driver-year",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:how\s+(?:did|has|was)\s+)?(?P<subject>` + subjectPattern + `?)(?:'s|')?\s+(?:perform(?:ance|ed)?|do|did|results?|season)\s+(?:in|during|for)\s+(?:the\s+)?(?P<year>\d{4})\b`),
		},
		build: func(a *Agent, g map[string]string) model.ParsedParameters {
			return a.subjectParams("performance", g["subject"], model.Scalar(g["year"]))
		},
	},
	{
		name: "compare-two-entities",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bcompare\s+(?P<a>.+?)\s+(?:and|vs\.?|versus|with|to)\s+(?P<b>.+?)(?:'s|')?(?:\s+(?P<stat>wins|victories|points|podiums|poles|results|performance|finishes|qualifying))?\s+(?:in|during|for)\s+(?:the\s+)?(?P<year>\d{4})\b`),
		},
		build: func(a *Agent, g map[string]string) model.ParsedParameters {
			p := model.ParsedParameters{Action: "compare", Params: model.Params{model.ParamSeason: model.Scalar(g["year"])}}
			if stat := strings.ToLower(g["stat"]); stat != "" {
				p.Params["stat"] = model.Scalar(stat)
			}
			if a.normalizer.Known(alias.KindConstructor, g["a"]) && a.normalizer.Known(alias.KindConstructor, g["b"]) {
				p.Entity = "constructors"
				p.Params[model.ParamConstructor] = model.List(g["a"], g["b"])
				return p
			}
			p.Entity = "drivers"
			p.Params[model.ParamDriver] = model.List(g["a"], g["b"])
			return p
		},
	},
	{
		name: "since-year-with-stat",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:(?:how\s+many|show(?:\s+me)?|list)\s+)?(?P<subject>` + subjectPattern + `?)(?:'s|')?\s+(?P<stat>wins|victories|podiums|poles|pole\s+positions|points|results|qualifying(?:\s+results)?|finishes)\s+since\s+(?P<year>\d{4})\b`),
			regexp.MustCompile(`(?i)\b(?P<stat>wins|victories|podiums|poles|pole\s+positions|points|results|qualifying(?:\s+results)?|finishes)\s+(?:for|by|of)\s+(?P<subject>` + subjectPattern + `?)\s+since\s+(?P<year>\d{4})\b`),
		},
		build: func(a *Agent, g map[string]string) model.ParsedParameters {
			stat := strings.Join(strings.Fields(strings.ToLower(g["stat"])), " ")
			action := "performance"
			if strings.HasPrefix(stat, "pole") || strings.HasPrefix(stat, "qualifying") {
				action = "qualifying"
			}
			p := a.subjectParams(action, g["subject"], model.List(a.seasonsSince(g["year"])...))
			if p.Entity == "constructor" {
				p.Action = "performance"
			}
			p.Params["stat"] = model.Scalar(stat)
			return p
		},
	},
	{
		name: "since-year-plain",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^\s*(?:how\s+(?:has|did|have)\s+)?(?P<subject>` + subjectPattern + `?)(?:'s|')?\s+(?:(?:performed|done|raced|performance|results|career|season)\s+)?since\s+(?P<year>\d{4})\b`),
		},
		build: func(a *Agent, g map[string]string) model.ParsedParameters {
			return a.subjectParams("performance", g["subject"], model.List(a.seasonsSince(g["year"])...))
		},
	},
}

// match returns the first template matching query with its named groups.
func match(query string) (*template, map[string]string) {
	for i := range templates {
		t := &templates[i]
		for _, re := range t.patterns {
			m := re.FindStringSubmatch(query)
			if m == nil {
				continue
			}
			groups := make(map[string]string, len(m))
			for j, n := range re.SubexpNames() {
				if n != "" {
					groups[n] = strings.TrimSpace(m[j])
				}
			}
			return t, groups
		}
	}
	return nil, nil
}

// subjectParams builds driver or constructor params for a single subject.
func (a *Agent) subjectParams(action, subject string, season model.Value) model.ParsedParameters {
	if a.normalizer.Known(alias.KindConstructor, subject) && !a.normalizer.Known(alias.KindDriver, subject) {
		return model.ParsedParameters{
			Action: action,
			Entity: "constructor",
			Params: model.Params{model.ParamConstructor: model.Scalar(subject), model.ParamSeason: season},
		}
	}
	return model.ParsedParameters{
		Action: action,
		Entity: "driver",
		Params: model.Params{model.ParamDriver: model.Scalar(subject), model.ParamSeason: season},
	}
}

// seasonsSince lists seasons from year through the current year. A year in
// the future yields just that year.
func (a *Agent) seasonsSince(year string) []string {
	from, err := strconv.Atoi(year)
	if err != nil {
		return []string{year}
	}
	to := a.now().Year()
	if from > to {
		return []string{year}
	}
	out := make([]string, 0, to-from+1)
	for y := from; y <= to; y++ {
		out = append(out, strconv.Itoa(y))
	}
	return out
}
