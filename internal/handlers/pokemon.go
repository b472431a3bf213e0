package handlers

import (
	"context"
	"net/http"
	"strconv"

	"pokeproxy/internal/pokemon"
	"pokeproxy/pkg/logging/logging"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Lister interface {
	Execute(ctx context.Context, in pokemon.ListInput) (pokemon.ListResult, error)
}

type Detailer interface {
	Execute(ctx context.Context, in pokemon.DetailInput) (pokemon.DetailResult, error)
}

// PokemonHandler serves the /pokemon endpoints.
type PokemonHandler struct {
	list   Lister
	detail Detailer
}

func NewPokemonHandler(list Lister, detail Detailer) *PokemonHandler {
	return &PokemonHandler{list: list, detail: detail}
}

// List handles GET /pokemon?limit=&offset=.
func (h *PokemonHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		writeError(w, r, &pokemon.AppError{Kind: pokemon.KindValidation, Message: "Limit must be an integer"})
		return
	}
	offset, err := optionalInt(q.Get("offset"))
	if err != nil {
		writeError(w, r, &pokemon.AppError{Kind: pokemon.KindValidation, Message: "Offset must be an integer"})
		return
	}

	res, err := h.list.Execute(r.Context(), pokemon.ListInput{Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Detail handles GET /pokemon/{name}.
func (h *PokemonHandler) Detail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	res, err := h.detail.Execute(r.Context(), pokemon.DetailInput{Name: name})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// optionalInt parses a query value; an absent value yields nil.
func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func statusFor(kind pokemon.Kind) int {
	switch kind {
	case pokemon.KindValidation:
		return http.StatusBadRequest
	case pokemon.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := pokemon.AsAppError(err)
	status := statusFor(appErr.Kind)
	if status == http.StatusInternalServerError {
		logging.L(r.Context()).Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: string(appErr.Kind), Message: appErr.Message})
}
