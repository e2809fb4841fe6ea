package handler

import (
	"log/slog"
	"net/http"

	"github.com/hiroki-koketsu/upahead/internal/importer"
	"github.com/hiroki-koketsu/upahead/internal/model"
)

// maxUploadBytes bounds the multipart body of an import.
const maxUploadBytes = 10 << 20

// Import handles POST /api/v1/import with a multipart "file" field.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "Handler.Import")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondErr(w, r, model.ValidationErrors{{Field: "file", Message: "A spreadsheet file is required"}})
		return
	}
	defer file.Close()

	result, err := h.Importer.Upload(ctx, header.Filename, file)
	if err != nil && result == nil {
		h.respondErr(w, r, err)
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "import stored rows but refresh failed", slog.Any("error", err))
	}

	h.respondJSON(w, http.StatusOK, result)
}

// ImportTemplate handles GET /api/v1/import/template.
func (h *Handler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+importer.TemplateFilename+`"`)
	if err := importer.WriteTemplate(w); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write template", slog.Any("error", err))
	}
}
