package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

const (
	patternConfidence  = 0.9
	metadataConfidence = 0.8
)

var (
	bulletPrefix  = regexp.MustCompile(`^(?:[-*+]|\d+[.)]|#{1,6})\s+`)
	emphasis      = regexp.MustCompile(`\*\*|__`)
	labelPrefix   = regexp.MustCompile(`^([A-Z][A-Za-z0-9 /&()'-]{1,48}):\s+(.+)$`)
	requirementID = regexp.MustCompile(`^\[?([A-Z]{2,6}-\d{1,5}(?:\.\d+)*|\d+(?:\.\d+){1,3})\]?[:.)]?\s+`)

	normativeHigh   = regexp.MustCompile(`(?i)\b(shall|must)\b`)
	normativeMedium = regexp.MustCompile(`(?i)\bshould\b|\bwill\b`)
	normativeLow    = regexp.MustCompile(`\bmay\b`)

	currencyPattern = regexp.MustCompile(
		`(?:\$\s?|\bUSD\s?)(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?(?:\s*((?i:million|billion|thousand)|[MBK])\b)?`)

	datePattern = regexp.MustCompile(
		`\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|` +
			`Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+(?:\d{1,2}(?:st|nd|rd|th)?,?\s+)?\d{4}\b` +
			`|\b\d{4}-\d{2}-\d{2}\b` +
			`|\b\d{1,2}/\d{1,2}/\d{2,4}\b` +
			`|\bFY\s?-?(?:\d{4}|\d{2})\b` +
			`|(?i:\bfiscal year\s+\d{4}\b)`)

	metricPattern = regexp.MustCompile(
		`\b(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(%|(?i:percent|concurrent users|named users|users|hours|business days|` +
			`days|weeks|months|years|FTEs?|full-time equivalents|sites|locations|transactions per second|` +
			`requests per second|GB|TB|milliseconds|ms|seconds|licenses|seats|workstations|endpoints)\b)`)

	acronymEntity = regexp.MustCompile(
		`\b((?:[A-Z][a-z]+ (?:(?:of|and|for|the) )?){1,6}[A-Z][a-z]+) \(([A-Z][A-Z0-9&]{1,9})\)`)
	departmentEntity = regexp.MustCompile(
		`\b(?:U\.S\. )?(?:Department|Dept\.) of (?:the )?[A-Z][a-z]+(?:(?: and| of)? [A-Z][a-z]+)*`)
	organisationEntity = regexp.MustCompile(
		`\b(?:[A-Z][A-Za-z]+ ){1,4}(?:Agency|Command|Office|Administration|Bureau|Directorate|Center|Service|Corps|Division)\b`)
)

// fieldSpec maps a key-value field name to the fact it carries.
type fieldSpec struct {
	kind domain.FactKind
	key  string
}

// knownFields are the targeted key-value markers read by the metadata stage.
// Aliases share a key so the same quantity lines up across documents.
var knownFields = map[string]fieldSpec{
	"program":                              {domain.FactKindEntity, "program"},
	"program name":                         {domain.FactKindEntity, "program"},
	"agency":                               {domain.FactKindEntity, "agency"},
	"requiring activity":                   {domain.FactKindEntity, "requiring_activity"},
	"customer":                             {domain.FactKindEntity, "requiring_activity"},
	"contracting office":                   {domain.FactKindEntity, "contracting_office"},
	"contracting activity":                 {domain.FactKindEntity, "contracting_office"},
	"contracting officer":                  {domain.FactKindEntity, "contracting_officer"},
	"cor":                                  {domain.FactKindEntity, "cor"},
	"contracting officer's representative": {domain.FactKindEntity, "cor"},
	"incumbent":                            {domain.FactKindEntity, "incumbent"},
	"contractor":                           {domain.FactKindEntity, "contractor"},
	"vendor":                               {domain.FactKindEntity, "contractor"},
	"sponsor":                              {domain.FactKindEntity, "sponsor"},
	"estimated cost":                       {domain.FactKindCost, "estimated_cost"},
	"total estimated cost":                 {domain.FactKindCost, "estimated_cost"},
	"estimated value":                      {domain.FactKindCost, "estimated_cost"},
	"igce":                                 {domain.FactKindCost, "estimated_cost"},
	"budget":                               {domain.FactKindCost, "budget"},
	"funding":                              {domain.FactKindCost, "budget"},
	"ceiling":                              {domain.FactKindCost, "ceiling"},
	"not-to-exceed":                        {domain.FactKindCost, "ceiling"},
	"nte":                                  {domain.FactKindCost, "ceiling"},
	"contract value":                       {domain.FactKindCost, "contract_value"},
	"total price":                          {domain.FactKindCost, "total_price"},
	"period of performance":                {domain.FactKindDate, "period_of_performance"},
	"pop":                                  {domain.FactKindDate, "period_of_performance"},
	"start date":                           {domain.FactKindDate, "start_date"},
	"end date":                             {domain.FactKindDate, "end_date"},
	"award date":                           {domain.FactKindDate, "award_date"},
	"target award date":                    {domain.FactKindDate, "award_date"},
	"delivery date":                        {domain.FactKindDate, "delivery_date"},
	"response date":                        {domain.FactKindDate, "response_date"},
	"due date":                             {domain.FactKindDate, "response_date"},
	"rfp release":                          {domain.FactKindDate, "rfp_release"},
	"fiscal year":                          {domain.FactKindDate, "fiscal_year"},
	"requirement":                          {domain.FactKindRequirement, ""},
	"requirements":                         {domain.FactKindRequirement, ""},
	"objective":                            {domain.FactKindRequirement, ""},
	"scope":                                {domain.FactKindRequirement, "scope"},
	"deliverable":                          {domain.FactKindRequirement, ""},
	"performance requirement":              {domain.FactKindRequirement, ""},
	"users":                                {domain.FactKindMetric, "users"},
	"concurrent users":                     {domain.FactKindMetric, "concurrent_users"},
	"uptime":                               {domain.FactKindMetric, "availability"},
	"availability":                         {domain.FactKindMetric, "availability"},
	"response time":                        {domain.FactKindMetric, "response_time"},
	"fte":                                  {domain.FactKindMetric, "ftes"},
	"ftes":                                 {domain.FactKindMetric, "ftes"},
	"staffing":                             {domain.FactKindMetric, "ftes"},
	"sites":                                {domain.FactKindMetric, "sites"},
}

// inlineLabels are phrases that name a quantity inside running text.
// Longest phrases are matched first.
var inlineLabels = func() []string {
	labels := make([]string, 0, len(knownFields))
	for name, spec := range knownFields {
		if spec.key != "" && strings.Contains(name, " ") {
			labels = append(labels, name)
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) > len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return labels
}()

// sourceLine is one cleaned line of chunk text.
type sourceLine struct {
	label    string // key-value label, lower-cased, if present
	body     string // text after the label
	sourceID string
}

// splitLines cleans chunk text into lines: bullets, heading markers and
// emphasis are removed and a leading "Label:" is split off.
func splitLines(chunks []domain.Chunk) []sourceLine {
	var lines []sourceLine
	for _, c := range chunks {
		for _, raw := range strings.Split(c.Text, "\n") {
			line := strings.TrimSpace(raw)
			line = bulletPrefix.ReplaceAllString(line, "")
			line = strings.TrimSpace(emphasis.ReplaceAllString(line, ""))
			if line == "" {
				continue
			}
			sl := sourceLine{body: line, sourceID: c.SourceID}
			if _, _, ok := matchRequirementID(line); ok {
				lines = append(lines, sl)
				continue
			}
			if m := labelPrefix.FindStringSubmatch(line); m != nil && len(strings.Fields(m[1])) <= 5 {
				sl.label = strings.ToLower(strings.TrimSpace(m[1]))
				sl.body = strings.TrimSpace(m[2])
			}
			lines = append(lines, sl)
		}
	}
	return lines
}

// splitSentences splits a line at sentence terminators followed by a space.
// Single-letter abbreviations such as "U.S." do not end a sentence.
func splitSentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(line) && line[i+1] != ' ' {
			continue
		}
		if c == '.' && i > 0 && isUpper(line[i-1]) && (i == 1 || line[i-2] == '.' || line[i-2] == ' ') {
			continue
		}
		if s := strings.TrimSpace(line[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(line[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// matchRequirementID splits an explicit requirement ID ("REQ-001:",
// "3.1.2") off the start of a line. The text after it must start a sentence.
func matchRequirementID(line string) (id, rest string, ok bool) {
	m := requirementID.FindStringSubmatch(line)
	if m == nil {
		return "", line, false
	}
	rest = strings.TrimSpace(line[len(m[0]):])
	if rest == "" || !isUpper(rest[0]) {
		return "", line, false
	}
	return m[1], rest, true
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// priorityOf returns the normative priority of a sentence, or "" when it
// has no normative keyword.
func priorityOf(sentence string) domain.Priority {
	switch {
	case normativeHigh.MatchString(sentence):
		return domain.PriorityHigh
	case normativeMedium.MatchString(sentence):
		return domain.PriorityMedium
	case normativeLow.MatchString(sentence):
		return domain.PriorityLow
	default:
		return ""
	}
}

// labelKey returns the fact key for a line label or, failing that, the single
// inline label of kind found in the sentence.
func labelKey(kind domain.FactKind, label, sentence string) string {
	if spec, ok := knownFields[label]; ok && spec.kind == kind {
		return spec.key
	}
	lower := strings.ToLower(sentence)
	for _, l := range inlineLabels {
		if spec := knownFields[l]; spec.kind == kind && strings.Contains(lower, l) {
			return spec.key
		}
	}
	return ""
}

// parseCurrency converts a currency match into dollars.
func parseCurrency(m []string) (float64, bool) {
	whole := strings.ReplaceAll(m[1], ",", "")
	num := whole
	if m[2] != "" {
		num += "." + m[2]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[3]) {
	case "thousand", "k":
		v *= 1e3
	case "million", "m":
		v *= 1e6
	case "billion", "b":
		v *= 1e9
	}
	return v, !math.IsInf(v, 0) && !math.IsNaN(v)
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func floatPtr(v float64) *float64 {
	return &v
}

// patternStage matches well-known markup conventions: normative
// requirement sentences and explicit IDs, currency amounts, dates, named
// organisations and quantities with units.
func patternStage(_ context.Context, chunks []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact {
	var facts []domain.ExtractedFact
	for _, line := range splitLines(chunks) {
		switch kind {
		case domain.FactKindRequirement:
			facts = append(facts, patternRequirements(line)...)
		default:
			for _, sentence := range splitSentences(line.body) {
				facts = append(facts, patternValues(kind, line, sentence)...)
			}
		}
	}
	return facts
}

func patternRequirements(line sourceLine) []domain.ExtractedFact {
	body := line.body
	id, rest, ok := matchRequirementID(body)
	if ok {
		body = rest
	}

	var facts []domain.ExtractedFact
	for i, sentence := range splitSentences(body) {
		priority := priorityOf(sentence)
		// An explicit ID marks its first sentence as a requirement even
		// without a normative keyword.
		if priority == "" && (id == "" || i > 0) {
			continue
		}
		fact := domain.ExtractedFact{
			Kind:       domain.FactKindRequirement,
			Text:       sentence,
			Priority:   priority,
			Confidence: patternConfidence,
			Stage:      domain.StagePattern,
			SourceID:   line.sourceID,
		}
		if i == 0 {
			fact.Key = id
		}
		facts = append(facts, fact)
	}
	return facts
}

func patternValues(kind domain.FactKind, line sourceLine, sentence string) []domain.ExtractedFact {
	var facts []domain.ExtractedFact
	add := func(text string, value *float64, unit string) {
		facts = append(facts, domain.ExtractedFact{
			Kind:         kind,
			Text:         strings.TrimSpace(text),
			NumericValue: value,
			Unit:         unit,
			Confidence:   patternConfidence,
			Stage:        domain.StagePattern,
			SourceID:     line.sourceID,
		})
	}

	switch kind {
	case domain.FactKindCost:
		for _, m := range currencyPattern.FindAllStringSubmatch(sentence, -1) {
			if v, ok := parseCurrency(m); ok {
				add(m[0], floatPtr(v), "USD")
			}
		}
	case domain.FactKindDate:
		for _, m := range datePattern.FindAllString(sentence, -1) {
			add(m, nil, "")
		}
	case domain.FactKindMetric:
		for _, idx := range metricPattern.FindAllStringSubmatchIndex(sentence, -1) {
			if idx[0] > 0 && sentence[idx[0]-1] == '$' {
				continue
			}
			v, ok := parseNumber(sentence[idx[2]:idx[3]])
			if !ok {
				continue
			}
			unit := strings.ToLower(sentence[idx[4]:idx[5]])
			if unit == "percent" {
				unit = "%"
			}
			add(sentence[idx[0]:idx[1]], floatPtr(v), unit)
		}
	case domain.FactKindEntity:
		for _, name := range findEntities(sentence) {
			facts = append(facts, domain.ExtractedFact{
				Kind:       kind,
				Key:        name.key,
				Text:       name.text,
				Confidence: patternConfidence,
				Stage:      domain.StagePattern,
				SourceID:   line.sourceID,
			})
		}
		return facts
	}

	// A single value in a labelled sentence takes the label as its key.
	if len(facts) == 1 {
		facts[0].Key = labelKey(kind, line.label, sentence)
	}
	return facts
}

type entityMatch struct {
	text string
	key  string
}

// findEntities returns named organisations, preferring acronym expansions
// and skipping matches that overlap an earlier one.
func findEntities(sentence string) []entityMatch {
	var out []entityMatch
	var taken [][2]int
	overlaps := func(a, b int) bool {
		for _, t := range taken {
			if a < t[1] && b > t[0] {
				return true
			}
		}
		return false
	}

	for _, idx := range acronymEntity.FindAllStringSubmatchIndex(sentence, -1) {
		name := strings.TrimPrefix(sentence[idx[2]:idx[3]], "The ")
		acronym := sentence[idx[4]:idx[5]]
		taken = append(taken, [2]int{idx[0], idx[1]})
		out = append(out, entityMatch{text: name + " (" + acronym + ")", key: "acronym:" + strings.ToLower(acronym)})
	}
	for _, re := range []*regexp.Regexp{departmentEntity, organisationEntity} {
		for _, idx := range re.FindAllStringIndex(sentence, -1) {
			if overlaps(idx[0], idx[1]) {
				continue
			}
			taken = append(taken, [2]int{idx[0], idx[1]})
			name := strings.TrimPrefix(sentence[idx[0]:idx[1]], "The ")
			out = append(out, entityMatch{text: name})
		}
	}
	return out
}

// metadataStage parses targeted key-value markers such as
// "**Program:** ALMS" or "Estimated Cost: $1.2M".
func metadataStage(_ context.Context, chunks []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact {
	var facts []domain.ExtractedFact
	for _, line := range splitLines(chunks) {
		if line.label == "" {
			continue
		}
		spec, ok := knownFields[line.label]
		if !ok || spec.kind != kind {
			continue
		}
		value := strings.TrimSpace(strings.TrimRight(line.body, " ;"))
		if value == "" {
			continue
		}
		fact := domain.ExtractedFact{
			Kind:       kind,
			Key:        spec.key,
			Text:       value,
			Confidence: metadataConfidence,
			Stage:      domain.StageMetadata,
			SourceID:   line.sourceID,
		}
		switch kind {
		case domain.FactKindCost:
			if m := currencyPattern.FindStringSubmatch(value); m != nil {
				if v, ok := parseCurrency(m); ok {
					fact.NumericValue = floatPtr(v)
					fact.Unit = "USD"
				}
			}
		case domain.FactKindMetric:
			if m := metricPattern.FindStringSubmatch(value); m != nil {
				if v, ok := parseNumber(m[1]); ok {
					fact.NumericValue = floatPtr(v)
					fact.Unit = strings.ToLower(m[2])
				}
			} else if v, ok := parseNumber(strings.Fields(value)[0]); ok {
				fact.NumericValue = floatPtr(v)
			}
		case domain.FactKindRequirement:
			fact.Priority = priorityOf(value)
		}
		facts = append(facts, fact)
	}
	return facts
}
