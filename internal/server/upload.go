package server

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/media"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// indexTemplate is the minimal page shown at / and after a view-variant
// upload. The real UI is served out of the public directory; this only
// surfaces the resulting path.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>WhatsApp Multi Instance</title></head>
<body>
<h1>WhatsApp Multi Instance</h1>
<form action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="file"><button type="submit">Subir</button>
</form>
{{if .ImagePath}}<p>Archivo: <a href="{{.ImagePath}}">{{.ImagePath}}</a></p>{{end}}
</body>
</html>
`))

type indexData struct {
	ImagePath string
}

// handleIndex implements GET /
func (h *HTTPServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.renderIndex(w, "")
}

func (h *HTTPServer) renderIndex(w http.ResponseWriter, imagePath string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{ImagePath: imagePath}); err != nil {
		h.logger.Error("Failed to render index", slog.String("error", err.Error()))
	}
}

// processUpload runs the shared upload pipeline for both upload endpoints.
// Returns ok=false after writing the error response.
func (h *HTTPServer) processUpload(w http.ResponseWriter, r *http.Request) (media.Result, bool) {
	if err := r.ParseMultipartForm(h.config.Media.MaxUploadSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "No se ha proporcionado ningun archivo")
		return media.Result{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "No se ha proporcionado ningun archivo")
		return media.Result{}, false
	}
	defer file.Close()

	h.metrics.RecordUpload()

	startTime := time.Now()
	result, err := h.pipeline.ProcessUpload(r.Context(), file, header)
	if err != nil {
		var convErr *media.ConversionError
		if errors.As(err, &convErr) || errors.Is(err, media.ErrUnsupportedFormat) {
			h.metrics.RecordConversion(time.Since(startTime).Seconds(), true)
		}
		h.logger.Error("Upload processing failed",
			slog.String("file", header.Filename),
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusInternalServerError, "Error al cargar o convertir el archivo")
		return media.Result{}, false
	}

	if result.Converted {
		h.metrics.RecordConversion(time.Since(startTime).Seconds(), false)
	}

	return result, true
}

// handleUploadView implements POST /upload: the view variant, rendering the
// index page with the resulting path
func (h *HTTPServer) handleUploadView(w http.ResponseWriter, r *http.Request) {
	result, ok := h.processUpload(w, r)
	if !ok {
		return
	}

	h.renderIndex(w, "./"+result.Path)
}

// handleUploadJSON implements POST /upload2: the structured variant. The
// response key depends on whether a conversion happened; existing consumers
// key off rutaCorregida for converted audio.
func (h *HTTPServer) handleUploadJSON(w http.ResponseWriter, r *http.Request) {
	result, ok := h.processUpload(w, r)
	if !ok {
		return
	}

	if result.Converted {
		h.writeJSON(w, http.StatusOK, map[string]string{"rutaCorregida": "./" + result.Path})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"imagePath": "./" + result.Path})
}

// handleAuthQR implements GET /auth-qr/{bot}: serves the bot's pairing QR
// image, 404 when the bot is unknown or the artifact has not been produced
func (h *HTTPServer) handleAuthQR(w http.ResponseWriter, r *http.Request) {
	botName := r.PathValue("bot")

	sess, ok := h.registry.Get(botName)
	if !ok {
		h.metrics.RecordUnknownTenant()
		h.writeError(w, http.StatusNotFound, "Bot no encontrado")
		return
	}

	dataDir := h.config.Transport.DataDir
	for _, b := range h.config.Bots {
		if b.Name == sess.Name {
			dataDir = h.config.DataDir(b)
			break
		}
	}

	qrPath := transport.PairingArtifactPath(dataDir, sess.Name)
	if _, err := os.Stat(qrPath); err != nil {
		h.writeError(w, http.StatusNotFound, "QR no disponible")
		return
	}

	http.ServeFile(w, r, qrPath)
}
