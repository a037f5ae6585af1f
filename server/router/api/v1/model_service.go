package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parleyhq/parley/store"
)

// ListModelsResponse wraps the model registry listing, keyed by model id.
type ListModelsResponse struct {
	Models       map[string]store.ModelDescriptor `json:"models"`
	DefaultModel string                           `json:"default_model"`
}

// ListModels returns every dispatchable model.
// GET /api/v1/models
func (s *APIV1Service) ListModels(c echo.Context) error {
	descriptors := s.Store.Registry().List()
	models := make(map[string]store.ModelDescriptor, len(descriptors))
	for _, descriptor := range descriptors {
		models[descriptor.ID] = descriptor
	}
	return c.JSON(http.StatusOK, ListModelsResponse{
		Models:       models,
		DefaultModel: s.Profile.DefaultModel,
	})
}
