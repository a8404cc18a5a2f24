package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

func (c *cli) generateCommand() *cobra.Command {
	var (
		req         types.GenerationRequest
		recipeType  string
		temperature string
		save        bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate drink recipes grounded on stored ones",
		Long: `Generate asks the language model for new recipes built from a seed
recipe, a list of ingredients, or a style.

Examples:
  brewbook generate --ingredients ube,coconut --type ube --temperature iced
  brewbook generate --seed 6f1c2b1e-4a0c-4d55-9a77-1b2f0d2c9e10 --count 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()
			if services.Pipeline == nil {
				return errors.New("generation needs a configured database and llm api key")
			}

			req.Type = types.RecipeType(recipeType)
			req.Temperature = types.Temperature(temperature)
			result, err := services.Pipeline.Generate(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderRecipes(out, result.Recipes)
			fmt.Fprintf(out, "model %s, %d tokens, %d similar recipes used\n", result.Model, result.TokensUsed, len(result.SimilarRecipes))

			if save {
				for _, recipe := range result.Recipes {
					stored, err := services.Recipes.InsertRecipe(ctx, recipe)
					if err != nil {
						return fmt.Errorf("save %q: %w", recipe.Title, err)
					}
					if services.Searcher != nil {
						if err := services.Searcher.Index(ctx, stored); err != nil {
							services.Logger.Warn("recipe indexing failed", "recipe_id", stored.ID, "error", err)
						}
					}
					fmt.Fprintf(out, "saved %s %s\n", stored.ID, stored.Title)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&req.Ingredients, "ingredients", nil, "comma separated ingredients to build around")
	f.StringVar(&req.Style, "style", "", "free-text style, e.g. \"cozy autumn\"")
	f.StringVar(&req.SeedRecipeID, "seed", "", "id of a stored recipe to riff on")
	f.StringVar(&recipeType, "type", "", "coffee, matcha, ube, or tea")
	f.StringVar(&temperature, "temperature", "", "hot or iced")
	f.IntVar(&req.Count, "count", 1, "number of recipes to generate (1-5)")
	f.BoolVar(&save, "save", false, "store the generated recipes")
	return cmd
}

func (c *cli) searchCommand() *cobra.Command {
	var (
		recipeType  string
		temperature string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Semantic search over stored recipes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, err := c.services(ctx, cmd)
			if err != nil {
				return err
			}
			defer services.Close()
			if services.Searcher == nil {
				return errors.New("search needs a database, a vector index, and an embedding api key")
			}
			recipes, err := services.Searcher.Search(ctx, strings.Join(args, " "), storage.VectorFilter{
				Type:        types.RecipeType(types.NormalizeEnum(recipeType)),
				Temperature: types.Temperature(types.NormalizeEnum(temperature)),
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			renderRecipes(cmd.OutOrStdout(), recipes)
			return nil
		},
	}
	cmd.Flags().StringVar(&recipeType, "type", "", "filter by type")
	cmd.Flags().StringVar(&temperature, "temperature", "", "filter by temperature")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	return cmd
}

func renderRecipes(w io.Writer, recipes []types.Recipe) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = true
	t.AppendHeader(table.Row{"#", "Title", "Type", "Temp", "Difficulty", "Ingredients", "Steps"})
	for i, r := range recipes {
		t.AppendRow(table.Row{
			i + 1,
			r.Title,
			r.Type,
			r.Temperature,
			r.Difficulty,
			strings.Join(r.Ingredients, "\n"),
			len(r.Steps),
		})
	}
	if len(recipes) == 0 {
		t.AppendRow(table.Row{"", "no recipes", "", "", "", "", ""})
	}
	t.Render()
}
