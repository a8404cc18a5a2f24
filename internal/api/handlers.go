package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"brewbook/internal/storage"
	"brewbook/pkg/types"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultListLimit   = 20
)

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scraper == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var req ScrapeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	urls, err := s.cleanURLs(req.URLs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Save && s.deps.Importer == nil {
		s.writeError(w, r, fmt.Errorf("%w: saving scraped recipes", errUnavailable))
		return
	}

	results := s.deps.Scraper.ScrapeBatch(r.Context(), urls)
	resp := ScrapeResponse{
		Success:      true,
		Scraped:      len(results),
		Results:      results,
		SavedRecipes: []types.Recipe{},
	}
	for _, res := range results {
		if res.Success {
			resp.Successful++
		}
	}
	if req.Save {
		resp.SavedRecipes = s.deps.Importer.Import(r.Context(), results)
		resp.Saved = len(resp.SavedRecipes)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cleanURLs(raw []string) ([]string, error) {
	urls := make([]string, 0, len(raw))
	for _, u := range raw {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, fmt.Errorf("%w: urls must not contain blank entries", errBadRequest)
		}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: urls must be a non-empty list", errBadRequest)
	}
	if len(urls) > s.maxURLs {
		return nil, fmt.Errorf("%w: at most %d urls per request", errBadRequest, s.maxURLs)
	}
	return urls, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var req types.GenerationRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.deps.Generator.Generate(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Images == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var req GenerateImageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.checkOwner(r.Context(), req.RecipeID); err != nil {
		s.writeError(w, r, err)
		return
	}
	imageURL, err := s.deps.Images.Generate(r.Context(), req.RecipeID, req.Style)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateImageResponse{ImageURL: imageURL})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Searcher == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.writeError(w, r, fmt.Errorf("%w: q is required", errBadRequest))
		return
	}
	recipeType, temperature, err := parseDrinkFilters(q.Get("type"), q.Get("temperature"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := parseBoundedInt(q.Get("limit"), "limit", defaultSearchLimit, 1, maxSearchLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recipes, err := s.deps.Searcher.Search(r.Context(), query, storage.VectorFilter{
		Type:        recipeType,
		Temperature: temperature,
		Limit:       limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recipes == nil {
		recipes = []types.Recipe{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: recipes})
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	q := r.URL.Query()
	recipeType, temperature, err := parseDrinkFilters(q.Get("type"), q.Get("temperature"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := parseBoundedInt(q.Get("limit"), "limit", defaultListLimit, 1, storage.MaxListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := parseBoundedInt(q.Get("offset"), "offset", 0, 0, -1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recipes, err := s.deps.Recipes.ListRecipes(r.Context(), storage.ListParams{
		Type:        recipeType,
		Temperature: temperature,
		Tag:         strings.TrimSpace(q.Get("tag")),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recipes == nil {
		recipes = []types.Recipe{}
	}
	writeJSON(w, http.StatusOK, RecipeListResponse{Recipes: recipes, Limit: limit, Offset: offset})
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	recipe, err := s.deps.Recipes.GetRecipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recipe": recipe})
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var recipe types.Recipe
	if err := decodeJSON(r, &recipe, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	recipe.ID = ""
	recipe.SourceURL = ""
	recipe.AuthorID = AuthorID(r.Context())
	recipe.Normalize()
	if err := recipe.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Recipes.InsertRecipe(r.Context(), recipe)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reindex(r.Context(), saved)
	writeJSON(w, http.StatusCreated, map[string]any{"recipe": saved})
}

func (s *Server) handleUpdateRecipe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var patch types.RecipePatch
	if err := decodeJSON(r, &patch, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	if patch.Empty() {
		s.writeError(w, r, fmt.Errorf("%w: no fields to update", errBadRequest))
		return
	}
	current, err := s.deps.Recipes.GetRecipe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireOwner(r.Context(), current.AuthorID); err != nil {
		s.writeError(w, r, err)
		return
	}
	updated := patch.Apply(current)
	updated.Normalize()
	if err := updated.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.deps.Recipes.UpdateRecipe(r.Context(), updated)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.reindex(r.Context(), saved)
	writeJSON(w, http.StatusOK, map[string]any{"recipe": saved})
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.checkOwner(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Recipes.DeleteRecipe(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "recipe deleted", "id": id})
}

func (s *Server) handleRemix(w http.ResponseWriter, r *http.Request) {
	if s.deps.Remixer == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	var req RemixRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Count < 0 {
		s.writeError(w, r, fmt.Errorf("%w: count must not be negative", errBadRequest))
		return
	}
	result, err := s.deps.Remixer.Remix(r.Context(), chi.URLParam(r, "id"), req.Count, AuthorID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDrinkOfDay(w http.ResponseWriter, r *http.Request) {
	if s.deps.DrinkOfDay == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	drink, err := s.deps.DrinkOfDay.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DrinkOfDayResponse{Drink: drink})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	limit, err := parseBoundedInt(r.URL.Query().Get("limit"), "limit", defaultListLimit, 1, storage.MaxListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sources, err := s.deps.Recipes.ListExternalSources(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []types.ExternalSource{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleRecipeGenerations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recipes == nil {
		s.writeError(w, r, errUnavailable)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Recipes.GetRecipe(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	generations, err := s.deps.Recipes.GenerationsForSeed(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if generations == nil {
		generations = []types.Generation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"generations": generations})
}

// checkOwner loads the recipe when auth is on and rejects other authors.
func (s *Server) checkOwner(ctx context.Context, id string) error {
	if AuthorID(ctx) == "" || s.deps.Recipes == nil || strings.TrimSpace(id) == "" {
		return nil
	}
	recipe, err := s.deps.Recipes.GetRecipe(ctx, id)
	if err != nil {
		return err
	}
	return requireOwner(ctx, recipe.AuthorID)
}

func (s *Server) reindex(ctx context.Context, recipe types.Recipe) {
	if s.deps.Searcher == nil {
		return
	}
	if err := s.deps.Searcher.Index(ctx, recipe); err != nil {
		s.logger.Warn("recipe indexing failed", "recipe_id", recipe.ID, "error", err)
	}
}

func parseDrinkFilters(rawType, rawTemp string) (types.RecipeType, types.Temperature, error) {
	recipeType := types.RecipeType(types.NormalizeEnum(rawType))
	if recipeType != "" && !recipeType.Valid() {
		return "", "", fmt.Errorf("%w: unknown type %q", errBadRequest, rawType)
	}
	temperature := types.Temperature(types.NormalizeEnum(rawTemp))
	if temperature != "" && !temperature.Valid() {
		return "", "", fmt.Errorf("%w: unknown temperature %q", errBadRequest, rawTemp)
	}
	return recipeType, temperature, nil
}

// parseBoundedInt parses an optional query integer. A negative max means no
// upper bound; values above max are clamped.
func parseBoundedInt(raw, name string, def, minValue, maxValue int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minValue {
		return 0, fmt.Errorf("%w: %s must be an integer >= %d", errBadRequest, name, minValue)
	}
	if maxValue >= 0 && n > maxValue {
		n = maxValue
	}
	return n, nil
}
