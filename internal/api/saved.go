package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// savedUser returns the caller's id. Bookmarks need a signed-in user, so
// anonymous development mode answers 401 here.
func (s *Server) savedUser(r *http.Request) (string, error) {
	if s.deps.Saved == nil {
		return "", errUnavailable
	}
	user := AuthorID(r.Context())
	if user == "" {
		return "", fmt.Errorf("%w: sign in to manage saved recipes", errUnauthorized)
	}
	return user, nil
}

func (s *Server) handleSaveRecipe(w http.ResponseWriter, r *http.Request) {
	user, err := s.savedUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Saved.SaveRecipe(r.Context(), user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SavedStatus{RecipeID: id, Saved: true})
}

func (s *Server) handleUnsaveRecipe(w http.ResponseWriter, r *http.Request) {
	user, err := s.savedUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.deps.Saved.UnsaveRecipe(r.Context(), user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SavedStatus{RecipeID: id, Saved: false})
}

func (s *Server) handleSavedStatus(w http.ResponseWriter, r *http.Request) {
	user, err := s.savedUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	saved, err := s.deps.Saved.IsSaved(r.Context(), user, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SavedStatus{RecipeID: id, Saved: saved})
}

func (s *Server) handleListSaved(w http.ResponseWriter, r *http.Request) {
	user, err := s.savedUser(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recipes, err := s.deps.Saved.SavedRecipes(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SavedListResponse{Recipes: recipes, Count: len(recipes)})
}
