package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
	"github.com/custodia-labs/acqgen/internal/logger"
)

const (
	structuredDefaultConfidence = 0.6
	structuredMaxConfidence     = 0.75
	maxFactTextLength           = 500
	maxUnitLength               = 32
	maxKeyLength                = 64
	maxSourceChars              = 12000
)

// FactSchema is the JSON shape requested from the structured stage.
const FactSchema = `{"facts":[{"text":"string (required, verbatim from source)",` +
	`"key":"string (optional, snake_case field name)",` +
	`"priority":"high|medium|low (requirements only)",` +
	`"numeric_value":"number (optional)","unit":"string (optional)",` +
	`"confidence":"number between 0 and 1"}]}`

// defaultFactExtractionPrompt is used when no prompt store is configured.
// Placeholders: kind, schema, source text.
const defaultFactExtractionPrompt = `You extract %s facts from government acquisition source material.
Return only JSON matching this schema, with no commentary:
%s

Only include facts stated in the source. If there are none, return {"facts":[]}.

Source material:
%s`

var (
	codeBlockRe      = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")
	injectionPattern = regexp.MustCompile(
		`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
			`act\s+as\s+|pretend\s+|forget\s+(everything|all)|new\s+instructions)`)
	keyPattern = regexp.MustCompile(`^[a-z0-9_:-]+$`)
)

// structuredStage asks the LLM for facts of kind as JSON and keeps only
// items that pass shape validation. Any failure yields zero facts.
func (s *ExtractionService) structuredStage(ctx context.Context, chunks []domain.Chunk, kind domain.FactKind) []domain.ExtractedFact {
	if s.llm == nil {
		logger.Debug("Extraction: structured stage skipped, %v", domain.ErrLLMUnavailable)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.StructuredTimeout)
	defer cancel()

	prompt := fmt.Sprintf(s.factPrompt(), kind, FactSchema, sourceText(chunks, maxSourceChars))
	response, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		Temperature: 0,
		JSONSchema:  FactSchema,
	})
	if err != nil {
		logger.Warn("Extraction: structured stage failed for %s: %v", kind, err)
		return nil
	}

	facts, err := ParseStructuredFacts(response, kind)
	if err != nil {
		logger.Warn("Extraction: structured response rejected for %s: %v", kind, err)
		return nil
	}
	return facts
}

func (s *ExtractionService) factPrompt() string {
	if s.prompts != nil {
		if p, err := s.prompts.Load(driven.PromptFactExtraction); err == nil && p != "" {
			return p
		}
	}
	return defaultFactExtractionPrompt
}

// sourceText joins chunks with numbered source headers, truncated to limit
// characters.
func sourceText(chunks []domain.Chunk, limit int) string {
	var b strings.Builder
	for i, c := range chunks {
		header := fmt.Sprintf("[%d] (source: %s)\n", i+1, c.SourceID)
		if b.Len()+len(header)+len(c.Text) > limit {
			remaining := limit - b.Len() - len(header)
			if remaining > 0 {
				b.WriteString(header)
				b.WriteString(truncateUTF8(c.Text, remaining))
			}
			break
		}
		b.WriteString(header)
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ParseStructuredFacts validates a structured response against FactSchema.
// A response that is not a JSON object or array of facts is a
// *domain.SchemaValidationError. Fields that fail validation are dropped;
// items whose text fails validation are dropped entirely.
func ParseStructuredFacts(response string, kind domain.FactKind) ([]domain.ExtractedFact, error) {
	body := stripCodeBlock(response)

	var items []json.RawMessage
	var envelope struct {
		Facts []json.RawMessage `json:"facts"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Facts != nil {
		items = envelope.Facts
	} else if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, &domain.SchemaValidationError{Reason: "response is not a facts object or array"}
	}

	var facts []domain.ExtractedFact
	for i, raw := range items {
		fact, err := validateStructuredItem(raw, kind)
		if err != nil {
			logger.Debug("Extraction: dropping structured item %d: %v", i, err)
			continue
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

func validateStructuredItem(raw json.RawMessage, kind domain.FactKind) (domain.ExtractedFact, error) {
	var item map[string]any
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.ExtractedFact{}, &domain.SchemaValidationError{Reason: "item is not an object"}
	}

	text, ok := item["text"].(string)
	text = strings.TrimSpace(text)
	switch {
	case !ok:
		return domain.ExtractedFact{}, &domain.SchemaValidationError{Field: "text", Reason: "missing or not a string"}
	case len(text) < 2 || len(text) > maxFactTextLength:
		return domain.ExtractedFact{}, &domain.SchemaValidationError{Field: "text", Reason: "length out of range"}
	case injectionPattern.MatchString(text):
		return domain.ExtractedFact{}, &domain.SchemaValidationError{Field: "text", Reason: "contains instructions"}
	}

	fact := domain.ExtractedFact{
		Kind:       kind,
		Text:       text,
		Confidence: structuredDefaultConfidence,
		Stage:      domain.StageStructured,
	}

	if v, ok := item["key"].(string); ok {
		v = strings.ToLower(strings.TrimSpace(v))
		if len(v) <= maxKeyLength && keyPattern.MatchString(v) && !strings.HasPrefix(v, "fallback:") {
			fact.Key = v
		}
	}
	if v, ok := item["priority"].(string); ok {
		if p := domain.Priority(strings.ToLower(strings.TrimSpace(v))); p.IsValid() {
			fact.Priority = p
		}
	}
	if v, ok := item["numeric_value"].(float64); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		fact.NumericValue = floatPtr(v)
	}
	if v, ok := item["unit"].(string); ok && len(v) <= maxUnitLength {
		fact.Unit = strings.TrimSpace(v)
	}
	if v, ok := item["confidence"].(float64); ok && v >= 0 && v <= 1 {
		fact.Confidence = math.Min(v, structuredMaxConfidence)
	}
	if kind != domain.FactKindRequirement {
		fact.Priority = ""
	}
	return fact, nil
}

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}
