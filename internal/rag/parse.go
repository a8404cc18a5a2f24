package rag

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"brewbook/pkg/types"
)

// ErrGenerationParse is returned when a model reply holds no usable recipe.
var ErrGenerationParse = errors.New("generation reply is not valid recipe json")

// generatedRecipe mirrors the reply schema, tolerating numbers sent as
// strings and single strings sent in place of lists.
type generatedRecipe struct {
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Tags             flexStrings `json:"tags"`
	Type             string      `json:"type"`
	Temperature      string      `json:"temperature"`
	Ingredients      flexStrings `json:"ingredients"`
	Steps            flexStrings `json:"steps"`
	Difficulty       string      `json:"difficulty"`
	PrepTimeMinutes  flexInt     `json:"prep_time_minutes"`
	TotalTimeMinutes flexInt     `json:"total_time_minutes"`
	Servings         flexInt     `json:"servings"`
	Equipment        flexStrings `json:"equipment"`
	SeasonalTags     flexStrings `json:"seasonal_tags"`
	FlavorProfile    flexStrings `json:"flavor_profile"`
}

// ParseRecipes decodes a generation reply. A top-level "recipes" array is used
// as is; a single object (nested under "recipes" or "recipe", or bare) becomes
// a one-element list. Missing type and temperature come from req, then
// coffee and hot; difficulty defaults to medium and servings to 1.
func ParseRecipes(raw string, req types.GenerationRequest) ([]types.Recipe, error) {
	body := stripCodeFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty reply", ErrGenerationParse)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationParse, err)
	}

	var candidates []json.RawMessage
	switch {
	case len(top["recipes"]) > 0:
		candidates = splitCandidates(top["recipes"])
	case len(top["recipe"]) > 0:
		candidates = splitCandidates(top["recipe"])
	default:
		candidates = []json.RawMessage{json.RawMessage(body)}
	}

	recipes := make([]types.Recipe, 0, len(candidates))
	for _, c := range candidates {
		var g generatedRecipe
		if err := json.Unmarshal(c, &g); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationParse, err)
		}
		if strings.TrimSpace(g.Title) == "" {
			continue
		}
		recipes = append(recipes, g.normalize(req))
	}
	if len(recipes) == 0 {
		return nil, fmt.Errorf("%w: no recipe objects in reply", ErrGenerationParse)
	}
	return recipes, nil
}

func splitCandidates(raw json.RawMessage) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err == nil {
			return list
		}
	}
	return []json.RawMessage{trimmed}
}

func (g generatedRecipe) normalize(req types.GenerationRequest) types.Recipe {
	recipeType := types.RecipeType(types.NormalizeEnum(g.Type))
	if !recipeType.Valid() {
		recipeType = req.Type
	}
	if !recipeType.Valid() {
		recipeType = types.RecipeCoffee
	}
	temperature := types.Temperature(types.NormalizeEnum(g.Temperature))
	if !temperature.Valid() {
		temperature = req.Temperature
	}
	if !temperature.Valid() {
		temperature = types.TemperatureHot
	}
	difficulty := types.Difficulty(types.NormalizeEnum(g.Difficulty))
	if !difficulty.Valid() {
		difficulty = types.DifficultyMedium
	}
	servings := int(g.Servings)
	if servings <= 0 {
		servings = 1
	}

	r := types.Recipe{
		Title:         strings.TrimSpace(g.Title),
		Description:   strings.TrimSpace(g.Description),
		Tags:          g.Tags.list(),
		Type:          recipeType,
		Temperature:   temperature,
		Ingredients:   g.Ingredients.list(),
		Steps:         g.Steps.list(),
		Difficulty:    difficulty,
		Servings:      types.IntPtr(servings),
		Equipment:     g.Equipment.list(),
		SeasonalTags:  g.SeasonalTags.list(),
		FlavorProfile: g.FlavorProfile.list(),
	}
	if g.PrepTimeMinutes > 0 {
		r.PrepTimeMinutes = types.IntPtr(int(g.PrepTimeMinutes))
	}
	if g.TotalTimeMinutes > 0 {
		r.TotalTimeMinutes = types.IntPtr(int(g.TotalTimeMinutes))
	}
	return r
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// "5 minutes" and similar: keep the leading number.
		n := 0
		for _, r := range s {
			if r < '0' || r > '9' {
				break
			}
			n = n*10 + int(r-'0')
		}
		*f = flexInt(n)
		return nil
	}
	*f = flexInt(math.Round(v))
	return nil
}

type flexStrings []string

func (f *flexStrings) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*f = nil
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexStrings{s}
		return nil
	}
	var items []any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		case map[string]any:
			if text, ok := v["text"].(string); ok {
				out = append(out, text)
			}
		}
	}
	*f = out
	return nil
}

func (f flexStrings) list() []string {
	out := make([]string, 0, len(f))
	for _, s := range f {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
