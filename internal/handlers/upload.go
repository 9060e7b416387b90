package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/apperr"
	"github.com/codebuildervaibhav/speaker-diarization/internal/diarize"
	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

const (
	defaultExtension = ".wav"
	maxExtension     = 16
)

// boolTokens are the accepted spellings of a boolean query or form value,
// matched case-insensitively.
var boolTokens = map[string]bool{
	"1": true, "true": true, "t": true, "yes": true, "y": true, "on": true,
	"0": false, "false": false, "f": false, "no": false, "n": false, "off": false,
}

// Diarizer is the diarization service used by the handlers
type Diarizer interface {
	Available() bool
	Diarize(ctx context.Context, req diarize.Request) (*types.Result, error)
	DiarizeWithRoles(ctx context.Context, req diarize.Request, doctorFirst bool) (*types.MappedResult, error)
}

// HistoryStore persists diarization metadata
type HistoryStore interface {
	SaveDiarization(ctx context.Context, rec types.DiarizationRecord) error
	GetDiarization(ctx context.Context, jobID string) (*types.DiarizationRecord, error)
	ListDiarizations(ctx context.Context, limit int) ([]types.DiarizationRecord, error)
}

// ResultArchive stores diarization responses
type ResultArchive interface {
	SaveResult(jobID string, createdAt time.Time, result any) (string, error)
	LoadResult(jobID string, createdAt time.Time) ([]byte, error)
}

// Options configures the diarization handlers. History and Archive are optional.
type Options struct {
	TempDir      string
	ExposeErrors bool
	History      HistoryStore
	Archive      ResultArchive
}

// UploadHandler handles audio uploads for diarization
type UploadHandler struct {
	svc  Diarizer
	opts Options
	log  zerolog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(svc Diarizer, opts Options, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{svc: svc, opts: opts, log: log}
}

// upload is one audio file saved to the temp dir
type upload struct {
	id        string
	filename  string
	source    string
	path      string
	size      int64
	createdAt time.Time
}

func (u *upload) request() diarize.Request {
	return diarize.Request{ID: u.id, Path: u.path, Size: u.size}
}

// Diarize handles POST /diarize
func (h *UploadHandler) Diarize(c *fiber.Ctx) error {
	return h.handle(c, false)
}

// DiarizeWithMapping handles POST /diarize-with-mapping
func (h *UploadHandler) DiarizeWithMapping(c *fiber.Ctx) error {
	return h.handle(c, true)
}

func (h *UploadHandler) handle(c *fiber.Ctx, mapping bool) error {
	if !h.svc.Available() {
		return apperr.Unavailable(diarize.UnavailableMessage)
	}

	doctorFirst := true
	if mapping {
		var err error
		if doctorFirst, err = parseBool("doctor_first", true, c.Query("doctor_first"), c.FormValue("doctor_first")); err != nil {
			return err
		}
	}

	up, err := h.saveUpload(c)
	if err != nil {
		return err
	}
	defer h.removeTemp(up.path)

	resp, err := h.process(c.UserContext(), up, mapping, doctorFirst)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// saveUpload persists the "file" form field under a unique temp name
func (h *UploadHandler) saveUpload(c *fiber.Ctx) (*upload, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, apperr.InvalidInput("file", "no file uploaded")
	}

	up := &upload{
		id:        uuid.New().String(),
		filename:  file.Filename,
		source:    types.SourceUpload,
		createdAt: time.Now().UTC(),
	}
	up.path = tempPath(h.opts.TempDir, up.id, file.Filename)

	if err := c.SaveFile(file, up.path); err != nil {
		h.removeTemp(up.path)
		return nil, h.internal(up.id, fmt.Errorf("save upload: %w", err))
	}

	info, err := os.Stat(up.path)
	if err != nil {
		h.removeTemp(up.path)
		return nil, h.internal(up.id, fmt.Errorf("stat upload: %w", err))
	}
	up.size = info.Size()

	return up, nil
}

// process runs diarization on a saved upload, records it and returns the
// response body
func (h *UploadHandler) process(ctx context.Context, up *upload, mapping, doctorFirst bool) (any, error) {
	var (
		resp     any
		speakers int
		segments int
		duration float64
		err      error
	)

	if mapping {
		var mapped *types.MappedResult
		if mapped, err = h.svc.DiarizeWithRoles(ctx, up.request(), doctorFirst); err == nil {
			resp = mapped
			speakers, segments, duration = mapped.NumSpeakers, len(mapped.Speakers), mapped.Duration
		}
	} else {
		var res *types.Result
		if res, err = h.svc.Diarize(ctx, up.request()); err == nil {
			resp = res
			speakers, segments, duration = res.NumSpeakers, len(res.Speakers), res.Duration
		}
	}

	h.record(up, speakers, segments, duration, err)

	if err != nil {
		if apperr.IsCode(err, apperr.ErrCodeUnavailable) {
			return nil, err
		}
		return nil, h.internal(up.id, err)
	}

	if h.opts.Archive != nil {
		if _, aerr := h.opts.Archive.SaveResult(up.id, up.createdAt, resp); aerr != nil {
			h.log.Warn().Err(aerr).Str("request_id", up.id).Msg("Failed to archive result")
		}
	}
	return resp, nil
}

func (h *UploadHandler) record(up *upload, speakers, segments int, duration float64, err error) {
	if h.opts.History == nil {
		return
	}

	rec := types.DiarizationRecord{
		ID:        up.id,
		Filename:  up.filename,
		Source:    up.source,
		SizeBytes: up.size,
		Status:    types.StatusCompleted,
		CreatedAt: up.createdAt,
	}
	if err != nil {
		rec.Status = types.StatusFailed
		rec.Error = err.Error()
	} else {
		rec.NumSpeakers = speakers
		rec.NumSegments = segments
		rec.Duration = duration
	}

	// Recorded even when the request context is already cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := h.opts.History.SaveDiarization(ctx, rec); serr != nil {
		h.log.Warn().Err(serr).Str("request_id", up.id).Msg("Failed to record diarization")
	}
}

// internal hides the cause unless errors are exposed; the cause is logged
// by the error handler
func (h *UploadHandler) internal(id string, err error) error {
	msg := fmt.Sprintf("Diarization failed (request %s)", id)
	if h.opts.ExposeErrors {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return apperr.Internal(msg, err)
}

func (h *UploadHandler) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.log.Warn().Err(err).Str("path", path).Msg("Failed to cleanup temp file")
	}
}

// tempPath returns <dir>/<id><ext> keeping the uploaded file's extension.
// Overlong or malformed extensions are replaced by the default one.
func tempPath(dir, id, filename string) string {
	ext := defaultExtension
	if filename != "" {
		ext = filepath.Ext(filepath.Base(filename))
	}
	if len(ext) > maxExtension || !utf8.ValidString(ext) {
		ext = defaultExtension
	}
	return filepath.Join(dir, id+ext)
}

// parseBool returns the first non-empty value parsed as a boolean, or def
func parseBool(field string, def bool, values ...string) (bool, error) {
	for _, v := range values {
		if v == "" {
			continue
		}
		b, ok := boolTokens[strings.ToLower(strings.TrimSpace(v))]
		if !ok {
			return false, apperr.InvalidInput(field, "must be a boolean")
		}
		return b, nil
	}
	return def, nil
}
