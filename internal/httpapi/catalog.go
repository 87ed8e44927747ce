package httpapi

import (
	"net/http"

	"github.com/mewlabs/kittenvox/internal/catalog"
)

type listModelsResponse struct {
	DefaultModel string          `json:"default_model"`
	Models       []catalog.Model `json:"models"`
}

type listVoicesResponse struct {
	DefaultVoice string   `json:"default_voice"`
	Voices       []string `json:"voices"`
}

// The catalog is fixed and opaque to the proxy; the backend stays the
// source of truth for what is actually valid.
func (s *Server) handleListModels(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, listModelsResponse{
		DefaultModel: catalog.DefaultModel,
		Models:       catalog.Models(),
	})
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, listVoicesResponse{
		DefaultVoice: catalog.DefaultVoice,
		Voices:       catalog.Voices(),
	})
}
