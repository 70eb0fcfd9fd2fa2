package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/custodia-labs/acqgen/internal/core/domain"
)

const (
	maxListedIssues    = 5
	vaguePenaltyPer100 = 20.0
	numericTolerance   = 0.005
)

var (
	vaguePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bTBD\b`),
		regexp.MustCompile(`(?i)\bTBA\b`),
		regexp.MustCompile(`(?i)\bto be determined\b`),
		regexp.MustCompile(`(?i)\bapproximately\b`),
		regexp.MustCompile(`(?i)\bas needed\b`),
		regexp.MustCompile(`(?i)\bas appropriate\b`),
		regexp.MustCompile(`(?i)\betc\b\.?`),
		regexp.MustCompile(`(?i)\bvarious\b`),
		regexp.MustCompile(`(?i)\bseveral\b`),
		regexp.MustCompile(`(?i)\bif possible\b`),
		regexp.MustCompile(`(?i)\bbest efforts?\b`),
		regexp.MustCompile(`(?i)\band/or\b`),
		regexp.MustCompile(`(?i)\bsubject to change\b`),
		regexp.MustCompile(`\bX{3,}\b`),
		regexp.MustCompile(`\{\{[^}]*\}\}`),
		regexp.MustCompile(`(?i)\[(?:insert|placeholder|tbd)[^\]]*\]`),
		regexp.MustCompile(`\[[a-z]+ not found in source material\]`),
	}

	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[\d+(?:\s*[,-]\s*\d+)*\]`),
		regexp.MustCompile(`(?i)\(source:[^)]+\)`),
		regexp.MustCompile(`\b(?:FAR|DFARS)\s+(?:Part\s+)?\d+(?:\.\d+)*(?:-\d+)?`),
		regexp.MustCompile(`\b\d+\s+CFR\b`),
		regexp.MustCompile(`\b\d+\s+U\.?S\.?C\.?`),
	}

	digitPattern   = regexp.MustCompile(`\d`)
	citationOnly   = regexp.MustCompile(`(?i)^(?:\[\d+(?:\s*[,-]\s*\d+)*\]|\(source:[^)]+\))(?:\s*[.;,])?$`)
	acronymPattern = regexp.MustCompile(`\b[A-Z][A-Z0-9&]{1,9}\b`)

	// commonAcronyms are procurement terms that are never claims.
	commonAcronyms = map[string]bool{
		"FAR": true, "DFARS": true, "CFR": true, "USC": true, "USD": true, "TBD": true, "TBA": true,
		"RFP": true, "RFI": true, "RFQ": true, "SOW": true, "PWS": true, "SOO": true, "IGCE": true,
		"QASP": true, "SSP": true, "SSDD": true, "SSA": true, "SSEB": true, "SF": true, "CO": true,
		"COR": true, "KO": true, "FY": true, "IT": true, "POC": true, "CLIN": true, "NAICS": true,
		"SAM": true, "FFP": true, "CPFF": true, "TM": true, "IDIQ": true, "BPA": true, "NTE": true,
		"ID": true, "II": true, "III": true, "IV": true, "US": true, "AM": true, "PM": true,
	}

	// referenceSections list sources rather than make claims.
	referenceSections = map[string]bool{
		"sources": true, "references": true, "regulatory references": true, "bibliography": true,
	}
)

// draft is a pre-processed document shared by the scorers.
type draft struct {
	raw       string
	lower     string
	words     int
	headings  []string
	sentences []string
}

func newDraft(raw string) draft {
	d := draft{
		raw:   raw,
		lower: strings.ToLower(raw),
		words: len(strings.Fields(raw)),
	}
	if d.words == 0 {
		return d
	}
	d.headings = markdownHeadings(raw)
	inReferences := false
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			inReferences = referenceSections[domain.NormalizeText(strings.TrimLeft(line, "# "))]
			continue
		}
		if line == "" || inReferences {
			continue
		}
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(emphasis.ReplaceAllString(line, ""))
		d.sentences = append(d.sentences, attachCitations(splitSentences(line))...)
	}
	return d
}

// attachCitations folds a fragment that is only a citation marker, as in
// "users. [1]", into the sentence before it.
func attachCitations(sentences []string) []string {
	out := sentences[:0]
	for _, s := range sentences {
		if len(out) > 0 && citationOnly.MatchString(s) {
			out[len(out)-1] += " " + s
			continue
		}
		out = append(out, s)
	}
	return out
}

// markdownHeadings returns the text of every heading in document order.
func markdownHeadings(raw string) []string {
	src := []byte(raw)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering {
			headings = append(headings, strings.TrimSpace(string(h.Text(src))))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return headings
}

// claim is a checkable assertion found in a draft.
type claim struct {
	text  string
	value *float64
}

// draftClaims returns the distinct claims in the draft: currency amounts,
// dates, quantities with units and named organisations or acronyms.
func draftClaims(d draft) []claim {
	var claims []claim
	seen := make(map[string]bool)
	add := func(t string, v *float64) {
		key := domain.NormalizeText(t)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		claims = append(claims, claim{text: strings.TrimSpace(t), value: v})
	}

	for _, s := range d.sentences {
		for _, m := range currencyPattern.FindAllStringSubmatch(s, -1) {
			if v, ok := parseCurrency(m); ok {
				add(m[0], floatPtr(v))
			}
		}
		for _, m := range datePattern.FindAllString(s, -1) {
			add(m, nil)
		}
		for _, idx := range metricPattern.FindAllStringSubmatchIndex(s, -1) {
			if idx[0] > 0 && s[idx[0]-1] == '$' {
				continue
			}
			if v, ok := parseNumber(s[idx[2]:idx[3]]); ok {
				add(s[idx[0]:idx[1]], floatPtr(v))
			}
		}
		for _, e := range findEntities(s) {
			add(e.text, nil)
		}
		for _, a := range acronymPattern.FindAllString(s, -1) {
			if !commonAcronyms[a] {
				add(a, nil)
			}
		}
	}
	return claims
}

// supportIndex is the evidence a draft may draw on.
type supportIndex struct {
	corpus string
	values []float64
}

func newSupportIndex(input domain.EvaluationInput) supportIndex {
	var b strings.Builder
	var values []float64
	for _, f := range input.Facts.Facts {
		if f.IsFallback() {
			continue
		}
		b.WriteString(f.Text)
		b.WriteString("\n")
		if f.NumericValue != nil {
			values = append(values, *f.NumericValue)
		}
	}
	b.WriteString(input.SourceText)
	b.WriteString("\n")
	b.WriteString(input.ProgramName)
	b.WriteString("\n")
	b.WriteString(input.Description)
	return supportIndex{
		corpus: domain.NormalizeText(b.String()),
		values: values,
	}
}

func (idx supportIndex) supports(c claim) bool {
	if strings.Contains(idx.corpus, domain.NormalizeText(c.text)) {
		return true
	}
	if c.value == nil {
		return false
	}
	for _, v := range idx.values {
		if v == *c.value || (v != 0 && math.Abs(v-*c.value)/math.Abs(v) <= numericTolerance) {
			return true
		}
	}
	return false
}

// scoreHallucination is the supported fraction of claims.
func scoreHallucination(d draft, input domain.EvaluationInput) dimensionResult {
	claims := draftClaims(d)
	if len(claims) == 0 {
		return dimensionResult{score: 100}
	}

	idx := newSupportIndex(input)
	var unsupported []string
	for _, c := range claims {
		if !idx.supports(c) {
			unsupported = append(unsupported, c.text)
		}
	}

	r := dimensionResult{score: 100 * float64(len(claims)-len(unsupported)) / float64(len(claims))}
	if len(unsupported) > 0 {
		r.issues = append(r.issues, fmt.Sprintf("%d of %d claims have no support in the source facts: %s",
			len(unsupported), len(claims), quoteList(unsupported)))
		r.suggestions = append(r.suggestions,
			"Remove unsupported figures, dates and names, or replace them with values from the extracted facts.")
	}
	return r
}

// scoreVagueLanguage penalises hedging and placeholder phrases per 100 words.
func scoreVagueLanguage(d draft) dimensionResult {
	if d.words == 0 {
		return dimensionResult{score: 100}
	}

	var found []string
	total := 0
	for _, re := range vaguePatterns {
		matches := re.FindAllString(d.raw, -1)
		if len(matches) == 0 {
			continue
		}
		total += len(matches)
		found = append(found, fmt.Sprintf("%s (x%d)", matches[0], len(matches)))
	}
	if total == 0 {
		return dimensionResult{score: 100}
	}

	density := float64(total) / float64(d.words) * 100
	r := dimensionResult{score: math.Max(0, 100-vaguePenaltyPer100*density)}
	r.issues = append(r.issues, fmt.Sprintf("Vague or placeholder language: %s", strings.Join(found, ", ")))
	r.suggestions = append(r.suggestions,
		"Replace hedging and unresolved placeholders with specific values, or state the decision still pending.")
	return r
}

// isClaimSentence reports whether a sentence asserts something checkable.
// The program name and the request description are context, not claims.
func isClaimSentence(s string, input domain.EvaluationInput) bool {
	if n := domain.NormalizeText(s); n != "" && input.Description != "" &&
		strings.Contains(domain.NormalizeText(input.Description), n) {
		return false
	}
	if input.ProgramName != "" {
		s = strings.ReplaceAll(s, input.ProgramName, "")
	}
	return digitPattern.MatchString(s) || priorityOf(s) != ""
}

func hasCitation(s string) bool {
	for _, re := range citationPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// scoreCitations is the cited fraction of factual claim sentences.
func scoreCitations(d draft, input domain.EvaluationInput) dimensionResult {
	claims, cited := 0, 0
	var uncited []string
	for _, s := range d.sentences {
		if !isClaimSentence(s, input) {
			continue
		}
		claims++
		if hasCitation(s) {
			cited++
			continue
		}
		uncited = append(uncited, s)
	}
	if claims == 0 {
		return dimensionResult{score: 100}
	}

	r := dimensionResult{score: 100 * float64(cited) / float64(claims)}
	if len(uncited) > 0 {
		r.issues = append(r.issues, fmt.Sprintf("%d of %d factual statements lack a citation: %s",
			len(uncited), claims, quoteList(uncited)))
		r.suggestions = append(r.suggestions,
			"Attach a source marker such as [1] or (Source: market research) to each factual statement.")
	}
	return r
}

// scoreCompliance is the fraction of required clauses referenced.
func scoreCompliance(d draft, input domain.EvaluationInput) dimensionResult {
	if len(input.RequiredClauses) == 0 {
		return dimensionResult{score: 100}
	}

	normalised := domain.NormalizeText(d.raw)
	var missing []string
	for _, clause := range input.RequiredClauses {
		if !strings.Contains(normalised, domain.NormalizeText(clause)) {
			missing = append(missing, clause)
		}
	}

	present := len(input.RequiredClauses) - len(missing)
	r := dimensionResult{score: 100 * float64(present) / float64(len(input.RequiredClauses))}
	for _, clause := range missing {
		r.issues = append(r.issues, fmt.Sprintf("Missing required reference: %s", clause))
	}
	if len(missing) > 0 {
		r.suggestions = append(r.suggestions,
			fmt.Sprintf("Cite %s where the document relies on them.", strings.Join(missing, ", ")))
	}
	return r
}

// scoreCompleteness combines required-section coverage and word count.
func scoreCompleteness(d draft, input domain.EvaluationInput) dimensionResult {
	if d.words == 0 {
		return dimensionResult{
			score:       0,
			issues:      []string{"Document is empty"},
			suggestions: []string{"Generate the document body before evaluation."},
		}
	}

	r := dimensionResult{}

	wordRatio := 1.0
	if input.MinWords > 0 && d.words < input.MinWords {
		wordRatio = float64(d.words) / float64(input.MinWords)
		r.issues = append(r.issues, fmt.Sprintf("Document has %d words; at least %d expected", d.words, input.MinWords))
		r.suggestions = append(r.suggestions, "Expand thin sections with program-specific detail.")
	}

	if len(input.RequiredSections) == 0 {
		r.score = 100 * wordRatio
		return r
	}

	headings := make([]string, len(d.headings))
	for i, h := range d.headings {
		headings[i] = domain.NormalizeText(h)
	}
	var missing []string
	for _, section := range input.RequiredSections {
		want := domain.NormalizeText(section)
		found := false
		for _, h := range headings {
			if strings.Contains(h, want) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, section)
		}
	}
	sectionRatio := float64(len(input.RequiredSections)-len(missing)) / float64(len(input.RequiredSections))
	if len(missing) > 0 {
		r.issues = append(r.issues, fmt.Sprintf("Missing required sections: %s", strings.Join(missing, ", ")))
		r.suggestions = append(r.suggestions, "Add a heading and content for each missing section.")
	}

	r.score = 50*sectionRatio + 50*wordRatio
	return r
}

// quoteList quotes up to maxListedIssues items and notes how many were left out.
func quoteList(items []string) string {
	shown := items
	if len(shown) > maxListedIssues {
		shown = shown[:maxListedIssues]
	}
	quoted := make([]string, len(shown))
	for i, s := range shown {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	out := strings.Join(quoted, ", ")
	if extra := len(items) - len(shown); extra > 0 {
		out += fmt.Sprintf(" and %d more", extra)
	}
	return out
}
