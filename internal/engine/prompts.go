package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/llm"
	"github.com/ledgerleaf/payeewise/internal/model"
)

// matchVerdict is the oracle's answer to a yes/no match verification.
type matchVerdict struct {
	Rationale    string  `json:"rationale"`
	Confidence   float64 `json:"confidence"`
	SameMerchant bool    `json:"same_merchant"`
}

// candidateChoice is the oracle's answer to a disambiguation request.
// SelectedIndex is -1 on decline; FallbackCategory may then carry a category
// proposed from general knowledge.
type candidateChoice struct {
	Rationale        string  `json:"rationale"`
	FallbackCategory string  `json:"fallback_category"`
	Confidence       float64 `json:"confidence"`
	SelectedIndex    int     `json:"selected_index"`
}

// merchantIdentity is the oracle's answer to a full identification request.
type merchantIdentity struct {
	CanonicalName string  `json:"canonical_name"`
	Rationale     string  `json:"rationale"`
	Confidence    float64 `json:"confidence"`
}

// categoryAnswer is the oracle's answer to a categorization request.
type categoryAnswer struct {
	CategoryName string  `json:"category_name"`
	Rationale    string  `json:"rationale"`
	Confidence   float64 `json:"confidence"`
}

var verdictSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"same_merchant": map[string]any{"type": "boolean"},
		"confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rationale":     map[string]any{"type": "string"},
	},
	"required":             []string{"same_merchant", "confidence", "rationale"},
	"additionalProperties": false,
}

var choiceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"selected_index":    map[string]any{"type": "integer"},
		"fallback_category": map[string]any{"type": "string"},
		"confidence":        map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rationale":         map[string]any{"type": "string"},
	},
	"required":             []string{"selected_index", "confidence", "rationale"},
	"additionalProperties": false,
}

var identitySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"canonical_name": map[string]any{"type": "string"},
		"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rationale":      map[string]any{"type": "string"},
	},
	"required":             []string{"canonical_name", "confidence", "rationale"},
	"additionalProperties": false,
}

var categorySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"category_name": map[string]any{"type": "string"},
		"confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rationale":     map[string]any{"type": "string"},
	},
	"required":             []string{"category_name", "confidence", "rationale"},
	"additionalProperties": false,
}

const verifySystemPrompt = `You verify whether a raw bank transaction string and a known payee refer to the same real-world merchant. Store numbers, locations, and processor prefixes do not make two names different merchants.`

const choiceSystemPrompt = `You match a raw bank transaction string to one of a short list of known payees. Select the matching candidate's index, or use -1 when none of them is the same merchant. When you decline, you may still suggest a budget category for the merchant from general knowledge.`

const identifySystemPrompt = `You identify the real-world merchant behind a raw bank transaction string. Answer with the merchant's common, canonical name, stripped of store numbers, locations, and processor noise.`

const categorizeSystemPrompt = `You assign a budget category to a merchant. Choose the single best fit from the provided category list; answer with its exact name.`

func (r *Resolver) verifyMatch(ctx context.Context, rawPayee string, candidate model.FuzzyMatchResult) (matchVerdict, error) {
	input := fmt.Sprintf("Raw bank transaction payee: %q\nKnown payee: %q (fuzzy score %d/100, usual category: %s)\n\nAre these the same merchant?",
		rawPayee, candidate.PayeeName, candidate.Score, candidate.CategoryName)

	var verdict matchVerdict
	if err := r.generateInto(ctx, llm.Request{
		System: verifySystemPrompt,
		Input:  input,
		Schema: verdictSchema,
	}, &verdict); err != nil {
		return matchVerdict{}, err
	}
	if err := validateConfidence(verdict.Confidence); err != nil {
		return matchVerdict{}, err
	}
	return verdict, nil
}

func (r *Resolver) selectCandidate(ctx context.Context, rawPayee string, candidates []model.FuzzyMatchResult, categories []model.Category) (candidateChoice, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Raw bank transaction payee: %q\n\nCandidates:\n", rawPayee)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d: %s (score %d, usual category: %s)\n", i, c.PayeeName, c.Score, c.CategoryName)
	}
	b.WriteString("\nAvailable categories: ")
	b.WriteString(categoryNames(categories))

	var choice candidateChoice
	if err := r.generateInto(ctx, llm.Request{
		System: choiceSystemPrompt,
		Input:  b.String(),
		Schema: choiceSchema,
	}, &choice); err != nil {
		return candidateChoice{}, err
	}
	if err := validateConfidence(choice.Confidence); err != nil {
		return candidateChoice{}, err
	}
	return choice, nil
}

func (r *Resolver) identifyMerchant(ctx context.Context, rawPayee string) (merchantIdentity, error) {
	input := fmt.Sprintf("Raw bank transaction payee: %q\n\nWhat merchant is this?", rawPayee)

	var identity merchantIdentity
	if err := r.generateInto(ctx, llm.Request{
		System:    identifySystemPrompt,
		Input:     input,
		Schema:    identitySchema,
		WebSearch: true,
	}, &identity); err != nil {
		return merchantIdentity{}, err
	}
	if identity.CanonicalName == "" {
		return merchantIdentity{}, fmt.Errorf("%w: empty canonical name", common.ErrInvalidOracleOutput)
	}
	if err := validateConfidence(identity.Confidence); err != nil {
		return merchantIdentity{}, err
	}
	return identity, nil
}

// categorize asks the oracle for a budget category for a canonical merchant
// name. The answer must name a category from the provided list; anything else
// yields an id-less, retryable suggestion.
func (r *Resolver) categorize(ctx context.Context, canonicalName, note string, categories []model.Category, webSearch bool) (model.CategorySuggestion, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Merchant: %q\n", canonicalName)
	if note != "" {
		fmt.Fprintf(&b, "Context: %s\n", note)
	}
	b.WriteString("\nAvailable categories: ")
	b.WriteString(categoryNames(categories))

	var answer categoryAnswer
	if err := r.generateInto(ctx, llm.Request{
		System:    categorizeSystemPrompt,
		Input:     b.String(),
		Schema:    categorySchema,
		WebSearch: webSearch,
	}, &answer); err != nil {
		return model.CategorySuggestion{}, err
	}
	if err := validateConfidence(answer.Confidence); err != nil {
		return model.CategorySuggestion{}, err
	}

	suggestion := model.CategorySuggestion{
		ProposedName: answer.CategoryName,
		Confidence:   answer.Confidence,
		Rationale:    answer.Rationale,
		Status:       model.StatusPending,
	}
	if cat, ok := categoryByName(categories, answer.CategoryName); ok {
		suggestion.ProposedID = cat.ID
		suggestion.ProposedName = cat.Name
	} else {
		r.logger.Warn("oracle proposed unknown category",
			"merchant", canonicalName,
			"category", answer.CategoryName)
	}
	return suggestion, nil
}

// generateInto runs a structured oracle call and unmarshals the response.
func (r *Resolver) generateInto(ctx context.Context, req llm.Request, out any) error {
	raw, err := r.oracle.GenerateObject(ctx, req)
	if err != nil {
		return fmt.Errorf("oracle call failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidOracleOutput, err)
	}
	return nil
}

func validateConfidence(confidence float64) error {
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence %.2f outside [0,1]", common.ErrInvalidOracleOutput, confidence)
	}
	return nil
}

func categoryNames(categories []model.Category) string {
	var names []string
	for _, cat := range categories {
		if cat.Hidden {
			continue
		}
		names = append(names, cat.Name)
	}
	return strings.Join(names, ", ")
}
