package categorize

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// Stage records which decoder produced a result.
type Stage int

const (
	StageStrict Stage = iota
	StageFallback
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Decoded is a category assignment together with the stage that produced it.
type Decoded struct {
	Assignment domain.CategoryAssignment
	Stage      Stage
}

// fallbackRationale is recorded when the category was scraped from free text.
const fallbackRationale = "Category extracted from text response"

// assignmentWire accepts both the current and the legacy rationale key.
type assignmentWire struct {
	Rationale       string  `json:"rationale"`
	LegacyRationale string  `json:"_thoughts"`
	Category        *string `json:"category"`
}

// Decode parses a completion response. The strict JSON stage runs first; the
// fallback stage runs only when the response is not valid JSON. The category
// from either stage must resolve to a member of the closed set.
func Decode(response string) (Decoded, error) {
	raw, rationale, stage, err := decodeRaw(response)
	if err != nil {
		return Decoded{}, err
	}

	category, ok := domain.ParseCategory(raw)
	if !ok {
		return Decoded{}, &domain.DecodeError{
			Reason:   "category " + strconv.Quote(raw) + " is not one of the known categories",
			Response: response,
		}
	}

	return Decoded{
		Assignment: domain.CategoryAssignment{Rationale: rationale, Category: category},
		Stage:      stage,
	}, nil
}

func decodeRaw(response string) (category, rationale string, stage Stage, err error) {
	category, rationale, err = DecodeStrict(response)
	if err == nil {
		return category, rationale, StageStrict, nil
	}
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		return "", "", StageStrict, err
	}

	category, err = DecodeFallback(response)
	if err != nil {
		return "", "", StageFallback, err
	}
	return category, fallbackRationale, StageFallback, nil
}

// DecodeStrict unmarshals the response as a JSON object. Markdown code fences
// around the object are tolerated. A response that is not a JSON object yields
// the json error; a null object or a missing category is a *domain.DecodeError.
func DecodeStrict(response string) (category, rationale string, err error) {
	var wire *assignmentWire
	if err := json.Unmarshal([]byte(cleanModelJSON(response)), &wire); err != nil {
		return "", "", err
	}
	if wire == nil {
		return "", "", &domain.DecodeError{Reason: "response is null", Response: response}
	}
	if wire.Category == nil {
		return "", "", &domain.DecodeError{Reason: "response has no category field", Response: response}
	}

	rationale = wire.Rationale
	if rationale == "" {
		rationale = wire.LegacyRationale
	}
	return *wire.Category, rationale, nil
}

// DecodeFallback scrapes a category out of free text: the first line that
// mentions "category" (any case), the text after its last colon, trimmed of
// quotes, spaces, commas and closing braces.
func DecodeFallback(response string) (string, error) {
	for _, line := range strings.Split(response, "\n") {
		if !strings.Contains(strings.ToLower(line), "category") {
			continue
		}
		idx := strings.LastIndex(line, ":")
		value := line[idx+1:]
		value = strings.Trim(strings.TrimSpace(value), "\"' ,}")
		if value == "" {
			return "", &domain.DecodeError{Reason: "category line has no value", Response: response}
		}
		return value, nil
	}
	return "", &domain.DecodeError{Reason: "no category line in response", Response: response}
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	return strings.TrimSpace(s)
}
