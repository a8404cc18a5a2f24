package types

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrInvalidRecipe is returned when a recipe fails validation.
var ErrInvalidRecipe = errors.New("invalid recipe")

// Validate checks a recipe before it is created or updated.
func (r Recipe) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(r.Title)) < 2 {
		return fmt.Errorf("%w: title must be at least 2 characters", ErrInvalidRecipe)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: type must be one of coffee, matcha, ube, tea", ErrInvalidRecipe)
	}
	if !r.Temperature.Valid() {
		return fmt.Errorf("%w: temperature must be hot or iced", ErrInvalidRecipe)
	}
	if err := requireEntries("ingredients", r.Ingredients); err != nil {
		return err
	}
	if err := requireEntries("steps", r.Steps); err != nil {
		return err
	}
	if r.Difficulty != "" && !r.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty must be easy, medium, or hard", ErrInvalidRecipe)
	}
	if r.Servings != nil && *r.Servings < 1 {
		return fmt.Errorf("%w: servings must be at least 1", ErrInvalidRecipe)
	}
	for name, v := range map[string]*int{"prep_time_minutes": r.PrepTimeMinutes, "total_time_minutes": r.TotalTimeMinutes} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidRecipe, name)
		}
	}
	if err := checkMediaURL("image_url", r.ImageURL); err != nil {
		return err
	}
	return checkMediaURL("video_url", r.VideoURL)
}

// Normalize trims text fields and lower-cases enums in place.
func (r *Recipe) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Type = RecipeType(NormalizeEnum(string(r.Type)))
	r.Temperature = Temperature(NormalizeEnum(string(r.Temperature)))
	r.Difficulty = Difficulty(NormalizeEnum(string(r.Difficulty)))
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.VideoURL = strings.TrimSpace(r.VideoURL)
	for _, list := range []*[]string{&r.Tags, &r.Ingredients, &r.Steps, &r.Equipment, &r.SeasonalTags, &r.FlavorProfile} {
		if *list == nil {
			*list = []string{}
			continue
		}
		for i, v := range *list {
			(*list)[i] = strings.TrimSpace(v)
		}
	}
}

func requireEntries(field string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidRecipe, field)
	}
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s[%d] is blank", ErrInvalidRecipe, field, i)
		}
	}
	return nil
}

func checkMediaURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidRecipe, field)
	}
	return nil
}

// RecipePatch is a partial update. Nil fields are left unchanged.
type RecipePatch struct {
	Title            *string      `json:"title,omitempty"`
	Description      *string      `json:"description,omitempty"`
	Tags             *[]string    `json:"tags,omitempty"`
	Type             *RecipeType  `json:"type,omitempty"`
	Temperature      *Temperature `json:"temperature,omitempty"`
	Ingredients      *[]string    `json:"ingredients,omitempty"`
	Steps            *[]string    `json:"steps,omitempty"`
	Difficulty       *Difficulty  `json:"difficulty,omitempty"`
	PrepTimeMinutes  *int         `json:"prep_time_minutes,omitempty"`
	TotalTimeMinutes *int         `json:"total_time_minutes,omitempty"`
	Servings         *int         `json:"servings,omitempty"`
	Equipment        *[]string    `json:"equipment,omitempty"`
	SeasonalTags     *[]string    `json:"seasonal_tags,omitempty"`
	FlavorProfile    *[]string    `json:"flavor_profile,omitempty"`
	ImageURL         *string      `json:"image_url,omitempty"`
	VideoURL         *string      `json:"video_url,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p RecipePatch) Empty() bool {
	return p == RecipePatch{}
}

// Apply returns a copy of r with the patch applied. Identity, author, source,
// and timestamps are never patched.
func (p RecipePatch) Apply(r Recipe) Recipe {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setList := func(dst *[]string, v *[]string) {
		if v != nil {
			*dst = append([]string(nil), (*v)...)
		}
	}
	setString(&r.Title, p.Title)
	setString(&r.Description, p.Description)
	setString(&r.ImageURL, p.ImageURL)
	setString(&r.VideoURL, p.VideoURL)
	setList(&r.Tags, p.Tags)
	setList(&r.Ingredients, p.Ingredients)
	setList(&r.Steps, p.Steps)
	setList(&r.Equipment, p.Equipment)
	setList(&r.SeasonalTags, p.SeasonalTags)
	setList(&r.FlavorProfile, p.FlavorProfile)
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Temperature != nil {
		r.Temperature = *p.Temperature
	}
	if p.Difficulty != nil {
		r.Difficulty = *p.Difficulty
	}
	if p.PrepTimeMinutes != nil {
		r.PrepTimeMinutes = IntPtr(*p.PrepTimeMinutes)
	}
	if p.TotalTimeMinutes != nil {
		r.TotalTimeMinutes = IntPtr(*p.TotalTimeMinutes)
	}
	if p.Servings != nil {
		r.Servings = IntPtr(*p.Servings)
	}
	return r
}
