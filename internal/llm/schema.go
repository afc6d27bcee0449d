package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Categories is the fixed taxonomy the model picks from.
var Categories = []string{
	"AI Research",
	"Machine Learning",
	"Industry",
	"Startups",
	"Products",
	"Policy",
	"Ethics",
	"Security",
	"Robotics",
	"General",
}

const (
	maxCategories = 3
	maxKeywords   = 10
)

func object(props map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	stringType  = map[string]any{"type": "string"}
	integerType = map[string]any{"type": "integer"}
	stringArray = map[string]any{"type": "array", "items": stringType}

	summarySchema = object(map[string]any{
		"main_points":     stringArray,
		"implications":    stringType,
		"relevance_score": integerType,
	}, "main_points", "implications", "relevance_score")

	categoriesSchema = object(map[string]any{
		"categories": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "enum": Categories},
		},
	}, "categories")

	keywordsSchema = object(map[string]any{
		"keywords": stringArray,
	}, "keywords")

	relevanceSchema = object(map[string]any{
		"score":       integerType,
		"explanation": stringType,
	}, "score", "explanation")

	translationSchema = object(map[string]any{
		"translation": stringType,
	}, "translation")

	duplicateSchema = object(map[string]any{
		"duplicate":  map[string]any{"type": "boolean"},
		"confidence": map[string]any{"type": "number"},
		"reason":     stringType,
	}, "duplicate", "confidence", "reason")
)

// Output shapes. Pointers so a missing field can be told apart from a zero value.
type (
	summaryOutput struct {
		MainPoints     *[]string `json:"main_points"`
		Implications   *string   `json:"implications"`
		RelevanceScore *int      `json:"relevance_score"`
	}

	categoriesOutput struct {
		Categories *[]string `json:"categories"`
	}

	keywordsOutput struct {
		Keywords *[]string `json:"keywords"`
	}

	relevanceOutput struct {
		Score       *int    `json:"score"`
		Explanation *string `json:"explanation"`
	}

	translationOutput struct {
		Translation *string `json:"translation"`
	}

	duplicateOutput struct {
		Duplicate  *bool    `json:"duplicate"`
		Confidence *float64 `json:"confidence"`
		Reason     *string  `json:"reason"`
	}
)

type validator interface {
	validate() error
}

// decodeStrict unmarshals the raw model output into v, rejecting unknown or
// missing fields, trailing data and out of range values.
func decodeStrict(raw string, v validator) error {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after json object", ErrSchemaMismatch)
	}
	if err := v.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrSchemaMismatch, err)
	}

	return nil
}

func missing(field string) error {
	return fmt.Errorf("missing field %q", field)
}

func validScore(score int) error {
	if score < 1 || score > 10 {
		return fmt.Errorf("score %d out of range 1-10", score)
	}
	return nil
}

func (o *summaryOutput) validate() error {
	switch {
	case o.MainPoints == nil:
		return missing("main_points")
	case o.Implications == nil:
		return missing("implications")
	case o.RelevanceScore == nil:
		return missing("relevance_score")
	}
	return validScore(*o.RelevanceScore)
}

func (o *categoriesOutput) validate() error {
	if o.Categories == nil {
		return missing("categories")
	}
	if len(*o.Categories) == 0 {
		return fmt.Errorf("no categories given")
	}
	for _, c := range *o.Categories {
		if !lo.Contains(Categories, c) {
			return fmt.Errorf("unknown category %q", c)
		}
	}
	return nil
}

func (o *keywordsOutput) validate() error {
	if o.Keywords == nil {
		return missing("keywords")
	}
	return nil
}

func (o *relevanceOutput) validate() error {
	switch {
	case o.Score == nil:
		return missing("score")
	case o.Explanation == nil:
		return missing("explanation")
	}
	return validScore(*o.Score)
}

func (o *translationOutput) validate() error {
	if o.Translation == nil {
		return missing("translation")
	}
	if strings.TrimSpace(*o.Translation) == "" {
		return fmt.Errorf("empty translation")
	}
	return nil
}

func (o *duplicateOutput) validate() error {
	switch {
	case o.Duplicate == nil:
		return missing("duplicate")
	case o.Confidence == nil:
		return missing("confidence")
	case o.Reason == nil:
		return missing("reason")
	}
	if *o.Confidence < 0 || *o.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range 0-1", *o.Confidence)
	}
	return nil
}

// Trims, lowercases, drops blanks and duplicates, and caps the list.
func normalizeKeywords(in []string) []string {
	out := lo.Uniq(lo.FilterMap(in, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	}))
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}
