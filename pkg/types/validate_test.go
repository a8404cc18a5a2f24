package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecipe() Recipe {
	return Recipe{
		Title:       "Iced Hojicha Latte",
		Type:        RecipeTea,
		Temperature: TemperatureIced,
		Ingredients: []string{"2 tsp hojicha", "200 ml milk"},
		Steps:       []string{"Whisk", "Pour over ice"},
	}
}

func TestRecipeValidate(t *testing.T) {
	require.NoError(t, validRecipe().Validate())

	cases := map[string]func(*Recipe){
		"short title":      func(r *Recipe) { r.Title = " x " },
		"unknown type":     func(r *Recipe) { r.Type = "soda" },
		"no temperature":   func(r *Recipe) { r.Temperature = "" },
		"no ingredients":   func(r *Recipe) { r.Ingredients = nil },
		"blank step":       func(r *Recipe) { r.Steps = []string{"Whisk", "  "} },
		"bad difficulty":   func(r *Recipe) { r.Difficulty = "extreme" },
		"zero servings":    func(r *Recipe) { r.Servings = IntPtr(0) },
		"negative prep":    func(r *Recipe) { r.PrepTimeMinutes = IntPtr(-1) },
		"relative image":   func(r *Recipe) { r.ImageURL = "/img/a.png" },
		"javascript video": func(r *Recipe) { r.VideoURL = "javascript:alert(1)" },
	}
	for name, mutate := range cases {
		r := validRecipe()
		mutate(&r)
		assert.ErrorIsf(t, r.Validate(), ErrInvalidRecipe, "case %s", name)
	}

	r := validRecipe()
	r.ImageURL = "https://cdn.example.com/a.png"
	r.Difficulty = DifficultyHard
	r.Servings = IntPtr(2)
	assert.NoError(t, r.Validate())
}

func TestRecipeNormalize(t *testing.T) {
	r := Recipe{Title: "  Chai ", Type: " TEA", Temperature: "Hot ", Ingredients: []string{" tea "}}
	r.Normalize()
	assert.Equal(t, "Chai", r.Title)
	assert.Equal(t, RecipeTea, r.Type)
	assert.Equal(t, TemperatureHot, r.Temperature)
	assert.Equal(t, []string{"tea"}, r.Ingredients)
	assert.Equal(t, []string{}, r.Tags)
}

func TestRecipePatchApply(t *testing.T) {
	original := validRecipe()
	original.ID = "r1"
	original.AuthorID = "user-1"

	assert.True(t, RecipePatch{}.Empty())
	assert.Equal(t, original, RecipePatch{}.Apply(original))

	title := "Hot Hojicha"
	hot := TemperatureHot
	steps := []string{"Steep"}
	patch := RecipePatch{Title: &title, Temperature: &hot, Steps: &steps, Servings: IntPtr(2)}
	assert.False(t, patch.Empty())

	patched := patch.Apply(original)
	assert.Equal(t, "Hot Hojicha", patched.Title)
	assert.Equal(t, TemperatureHot, patched.Temperature)
	assert.Equal(t, []string{"Steep"}, patched.Steps)
	assert.Equal(t, 2, *patched.Servings)
	assert.Equal(t, original.Ingredients, patched.Ingredients)
	assert.Equal(t, "r1", patched.ID)
	assert.Equal(t, "user-1", patched.AuthorID)

	steps[0] = "changed"
	assert.Equal(t, []string{"Steep"}, patched.Steps)
	assert.Equal(t, []string{"Whisk", "Pour over ice"}, original.Steps)
}
