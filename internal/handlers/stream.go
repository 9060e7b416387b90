package handlers

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/codebuildervaibhav/speaker-diarization/internal/apperr"
	"github.com/codebuildervaibhav/speaker-diarization/internal/diarize"
	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

const maxStreamName = 200

// StreamHandler diarizes audio uploaded over a WebSocket: binary frames are
// appended, a text "END" frame finishes the upload, any other short text
// frame names the recording. The response is written as one JSON frame.
type StreamHandler struct {
	uploads  *UploadHandler
	maxBytes int
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(uploads *UploadHandler, maxBytes int) *StreamHandler {
	return &StreamHandler{uploads: uploads, maxBytes: maxBytes}
}

// Upgrade rejects non-WebSocket requests before the handshake
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// Handle processes WebSocket connections
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	log := h.uploads.log
	if !h.uploads.svc.Available() {
		h.writeError(c, apperr.Unavailable(diarize.UnavailableMessage))
		return
	}

	mapping, err := parseBool("mapping", false, c.Query("mapping"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	doctorFirst, err := parseBool("doctor_first", true, c.Query("doctor_first"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	var (
		buffer   bytes.Buffer
		filename string
		id       = uuid.New().String()
	)

	log.Info().Str("request_id", id).Msg("WebSocket connection established")

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Str("request_id", id).Msg("WebSocket read error")
			return
		}

		if messageType == websocket.TextMessage {
			msg := string(message)
			if msg == "END" {
				break
			}
			if len(msg) > 0 && len(msg) < maxStreamName {
				filename = filepath.Base(msg)
			}
			continue
		}

		if messageType == websocket.BinaryMessage {
			if h.maxBytes > 0 && buffer.Len()+len(message) > h.maxBytes {
				h.writeError(c, fiber.ErrRequestEntityTooLarge)
				return
			}
			buffer.Write(message)
		}
	}

	up := &upload{
		id:        id,
		filename:  filename,
		source:    types.SourceStream,
		size:      int64(buffer.Len()),
		createdAt: time.Now().UTC(),
	}
	if filename == "" {
		up.filename = "stream.webm"
	}
	up.path = tempPath(h.uploads.opts.TempDir, id, up.filename)

	if err := os.WriteFile(up.path, buffer.Bytes(), 0644); err != nil {
		h.uploads.removeTemp(up.path)
		h.writeError(c, h.uploads.internal(id, err))
		return
	}
	defer h.uploads.removeTemp(up.path)

	log.Info().Str("request_id", id).Str("path", up.path).Int64("bytes", up.size).Msg("Stream saved")

	resp, err := h.uploads.process(context.Background(), up, mapping, doctorFirst)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := c.WriteJSON(resp); err != nil {
		log.Warn().Err(err).Str("request_id", id).Msg("WebSocket write error")
	}
}

func (h *StreamHandler) writeError(c *websocket.Conn, err error) {
	detail := "An unexpected error occurred."
	var fe *fiber.Error
	if appErr, ok := apperr.As(err); ok {
		detail = appErr.Message
		if appErr.HTTPStatus >= fiber.StatusInternalServerError {
			h.uploads.log.Error().Err(err).Msg("Stream diarization failed")
		}
	} else if errors.As(err, &fe) {
		detail = fe.Message
	}
	_ = c.WriteJSON(fiber.Map{"detail": detail})
}
