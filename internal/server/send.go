package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/message"
	"github.com/JhonnM62/api-whatsapp-multi-instance/internal/transport"
)

// sendMessageRequest is the body of POST /{bot}/send-message
type sendMessageRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// mediaSendRequest covers the URL-bearing send bodies (image, pdf, audio, video)
type mediaSendRequest struct {
	Number  string `json:"number"`
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

// locationSendRequest is the body of POST /{bot}/send-location
type locationSendRequest struct {
	Number string   `json:"number"`
	Lat    *float64 `json:"lat"`
	Long   *float64 `json:"long"`
}

// buttonsSendRequest is the body of POST /{bot}/send-buttons
type buttonsSendRequest struct {
	Number      string          `json:"number"`
	Text        string          `json:"text"`
	Footer      string          `json:"footer"`
	DataButtons json.RawMessage `json:"databuttons"`
}

// listSendRequest is the body of POST /{bot}/send-list
type listSendRequest struct {
	Number       string          `json:"number"`
	DataSections json.RawMessage `json:"datasections"`
	Text         string          `json:"text"`
	Title        string          `json:"title"`
	Footer       string          `json:"footer"`
	ButtonText   string          `json:"buttonText"`
}

// resolveSender looks up the bot named in the path and returns its live
// transport instance. Writes the error response and returns ok=false on a
// registry miss (404, no transport touched) or a disconnected provider (503).
func (h *HTTPServer) resolveSender(w http.ResponseWriter, r *http.Request) (string, transport.Sender, bool) {
	botName := r.PathValue("bot")

	sess, ok := h.registry.Get(botName)
	if !ok {
		h.metrics.RecordUnknownTenant()
		h.writeError(w, http.StatusNotFound, "Bot no encontrado")
		return botName, nil, false
	}

	sender, err := sess.Provider.Instance()
	if err != nil {
		h.logger.Warn("Transport unavailable",
			slog.String("bot", botName),
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusServiceUnavailable, "Transporte no disponible")
		return botName, nil, false
	}

	return botName, sender, true
}

// decodeBody decodes a JSON request body, answering 400 on malformed input
func (h *HTTPServer) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "Cuerpo de la peticion invalido")
		return false
	}
	return true
}

// dispatch sends one payload through the bot's transport and writes the
// acknowledgement. A failed send is logged and answered, never fatal to the
// process.
func (h *HTTPServer) dispatch(w http.ResponseWriter, r *http.Request, botName string,
	sender transport.Sender, kind message.Kind, number string, payload any, ack, failMsg string) {

	recipient := message.Address(number, h.config.Transport.RecipientSuffix)

	startTime := time.Now()
	if err := sender.SendMessage(r.Context(), recipient, payload); err != nil {
		h.metrics.RecordSendFailure(botName, string(kind))
		h.logger.Error("Send failed",
			slog.String("bot", botName),
			slog.String("kind", string(kind)),
			slog.String("recipient", recipient),
			slog.String("error", err.Error()),
		)
		h.writeError(w, http.StatusInternalServerError, failMsg)
		return
	}

	h.metrics.RecordMessageSent(botName, string(kind), time.Since(startTime).Seconds())
	h.logger.Info("Message dispatched",
		slog.String("bot", botName),
		slog.String("kind", string(kind)),
		slog.String("recipient", recipient),
	)

	h.writeJSON(w, http.StatusOK, map[string]string{"data": ack})
}

// handleSendMessage implements POST /{bot}/send-message
func (h *HTTPServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, message")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindText, req.Number,
		message.NewText(req.Message), "Mensaje Enviado!", "Error al enviar el mensaje de texto")
}

// handleSendImage implements POST /{bot}/send-image
func (h *HTTPServer) handleSendImage(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req mediaSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, url")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindImage, req.Number,
		message.NewImage(req.URL, req.Caption), "Imagen Enviada!", "Error al enviar la imagen")
}

// handleSendPDF implements POST /{bot}/send-pdf. The caption doubles as the
// displayed file name; the mimetype comes from the URL extension and is
// omitted when unresolvable.
func (h *HTTPServer) handleSendPDF(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req mediaSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, url")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindDocument, req.Number,
		message.NewDocument(req.URL, req.Caption), "Documento Enviado!", "Error al enviar el documento PDF")
}

// handleSendAudio implements POST /{bot}/send-audio
func (h *HTTPServer) handleSendAudio(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req mediaSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, url")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindAudio, req.Number,
		message.NewAudio(req.URL), "Audio Enviado!", "Error al enviar el archivo de audio")
}

// handleSendVideo implements POST /{bot}/send-video
func (h *HTTPServer) handleSendVideo(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req mediaSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, url")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindVideo, req.Number,
		message.NewVideo(req.URL, req.Caption), "Video Enviado!", "Error al enviar el video")
}

// handleSendLocation implements POST /{bot}/send-location
func (h *HTTPServer) handleSendLocation(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req locationSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.Lat == nil || req.Long == nil {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, lat, long")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindLocation, req.Number,
		message.NewLocation(*req.Lat, *req.Long), "Locacion Enviada!", "Error al enviar la ubicacion")
}

// handleSendButtons implements POST /{bot}/send-buttons
func (h *HTTPServer) handleSendButtons(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req buttonsSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.Text == "" || req.Footer == "" || len(req.DataButtons) == 0 {
		h.writeError(w, http.StatusBadRequest, "Faltan campos requeridos: number, text, footer, databuttons")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindButtons, req.Number,
		message.NewButtons(req.Text, req.Footer, req.DataButtons), "Botones Enviados!", "Error al enviar los botones")
}

// handleSendList implements POST /{bot}/send-list
func (h *HTTPServer) handleSendList(w http.ResponseWriter, r *http.Request) {
	botName, sender, ok := h.resolveSender(w, r)
	if !ok {
		return
	}

	var req listSendRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if req.Number == "" || req.Text == "" || req.Title == "" ||
		req.Footer == "" || req.ButtonText == "" || len(req.DataSections) == 0 {
		h.writeError(w, http.StatusBadRequest,
			"Faltan campos requeridos: number, datasections, text, title, footer, buttonText")
		return
	}

	h.dispatch(w, r, botName, sender, message.KindList, req.Number,
		message.NewList(req.Text, req.Title, req.Footer, req.ButtonText, req.DataSections),
		"Lista Enviada!", "Error al enviar la lista")
}
