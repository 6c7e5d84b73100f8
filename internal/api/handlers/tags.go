// tags.go — HTTP handler словаря тегов.
package handlers

import (
	"net/http"

	"github.com/bigkaa/gofilestore/internal/service"
)

// TagsHandler — обработчик endpoint словаря тегов.
type TagsHandler struct {
	svc *service.FileService
}

// NewTagsHandler создаёт обработчик словаря тегов.
func NewTagsHandler(svc *service.FileService) *TagsHandler {
	return &TagsHandler{svc: svc}
}

// GetTags обрабатывает GET /api/v1/tags.
// Возвращает allow-list тегов отсортированным JSON-массивом.
func (h *TagsHandler) GetTags(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.AllowedTags())
}
