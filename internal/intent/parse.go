package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/djx/internal/models"
	"github.com/desertthunder/djx/internal/shared"
)

// placeholders are values models emit instead of leaving a key out.
var placeholders = map[string]bool{
	"":              true,
	"null":          true,
	"none":          true,
	"unknown":       true,
	"n/a":           true,
	"na":            true,
	"any":           true,
	"unspecified":   true,
	"not specified": true,
}

// Parse reads a model reply into an [models.Intent] without the fallback field set.
//
// The reply may be wrapped in markdown fences or surrounded by prose; the outermost JSON object is used.
func Parse(raw string) (models.Intent, error) {
	body, err := extractObject(raw)
	if err != nil {
		return models.Intent{}, err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return models.Intent{}, fmt.Errorf("%w: model output is not a JSON object: %v", shared.ErrInvalidInput, err)
	}

	var intent models.Intent
	for key, value := range fields {
		facet := models.Facet(strings.ToLower(strings.TrimSpace(key)))
		if !known(facet) {
			continue
		}
		if s, ok := stringValue(value); ok {
			intent.Set(facet, s)
		}
	}

	return intent, nil
}

func extractObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in model output", shared.ErrInvalidInput)
	}
	return text[start : end+1], nil
}

func known(f models.Facet) bool {
	for _, k := range models.Facets {
		if k == f {
			return true
		}
	}
	return false
}

// stringValue normalizes a decoded JSON value into a facet string.
func stringValue(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if str, ok := item.(string); ok {
				parts = append(parts, str)
			}
		}
		s = strings.Join(parts, " ")
	default:
		return "", false
	}

	s = strings.Join(strings.Fields(s), " ")
	if placeholders[strings.ToLower(s)] {
		return "", false
	}
	return s, true
}
