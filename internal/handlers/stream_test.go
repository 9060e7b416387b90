package handlers

import (
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speaker-diarization/internal/diarize"
	"github.com/codebuildervaibhav/speaker-diarization/internal/pipeline"
	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

type streamEnv struct {
	addr    string
	tempDir string
}

func newStreamEnv(t *testing.T, pipe *filePipeline, maxBytes int) *streamEnv {
	t.Helper()

	device := pipeline.Device{Kind: pipeline.DeviceCPU}
	handle := pipeline.Unbound(pipeline.ErrNoToken, device)
	if pipe != nil {
		handle = pipeline.Bound(pipe, "pyannote/speaker-diarization-3.1", device)
	}

	svc := diarize.NewService(handle, diarize.Options{}, zerolog.Nop())
	svc.Start()
	t.Cleanup(svc.Stop)

	tempDir := t.TempDir()
	uploads := NewUploadHandler(svc, Options{TempDir: tempDir}, zerolog.Nop())
	streams := NewStreamHandler(uploads, maxBytes)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use("/ws/diarize", streams.Upgrade)
	app.Get("/ws/diarize", websocket.New(streams.Handle))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &streamEnv{addr: ln.Addr().String(), tempDir: tempDir}
}

func (e *streamEnv) dial(t *testing.T, query string) *fastws.Conn {
	t.Helper()
	url := "ws://" + e.addr + "/ws/diarize"
	if query != "" {
		url += "?" + query
	}
	conn, resp, err := fastws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	return conn
}

func send(t *testing.T, conn *fastws.Conn, messageType int, data []byte) {
	t.Helper()
	if err := conn.WriteMessage(messageType, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// waitTempDirEmpty polls because the upload is removed after the reply.
func (e *streamEnv) waitTempDirEmpty(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := os.ReadDir(e.tempDir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("temp files left behind: %d", len(entries))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStream_Diarize(t *testing.T) {
	pipe := &filePipeline{labels: []string{"A", "B", "A"}}
	env := newStreamEnv(t, pipe, 0)

	conn := env.dial(t, "")
	send(t, conn, fastws.BinaryMessage, audio(800))
	send(t, conn, fastws.BinaryMessage, audio(700))
	send(t, conn, fastws.TextMessage, []byte("END"))

	var res types.Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(res.Speakers) != 3 || res.NumSpeakers != 2 || res.Duration != 2.75 {
		t.Errorf("unexpected result %+v", res)
	}

	pipe.mu.Lock()
	seen := append([]string(nil), pipe.seen...)
	pipe.mu.Unlock()
	if len(seen) != 1 || filepath.Ext(seen[0]) != ".webm" || filepath.Dir(seen[0]) != env.tempDir {
		t.Errorf("pipeline saw %v", seen)
	}
	env.waitTempDirEmpty(t)
}

func TestStream_FilenameFrame(t *testing.T) {
	pipe := &filePipeline{labels: []string{"A"}}
	env := newStreamEnv(t, pipe, 0)

	conn := env.dial(t, "")
	send(t, conn, fastws.TextMessage, []byte("../recordings/visit.m4a"))
	send(t, conn, fastws.BinaryMessage, audio(2048))
	send(t, conn, fastws.TextMessage, []byte("END"))

	var res types.Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read: %v", err)
	}

	pipe.mu.Lock()
	defer pipe.mu.Unlock()
	if len(pipe.seen) != 1 || filepath.Ext(pipe.seen[0]) != ".m4a" || filepath.Dir(pipe.seen[0]) != env.tempDir {
		t.Errorf("pipeline saw %v", pipe.seen)
	}
}

func TestStream_MappingPatientFirst(t *testing.T) {
	env := newStreamEnv(t, &filePipeline{labels: []string{"A", "A", "B", "B", "A"}}, 0)

	conn := env.dial(t, "mapping=true&doctor_first=off")
	send(t, conn, fastws.BinaryMessage, audio(1500))
	send(t, conn, fastws.TextMessage, []byte("END"))

	var res types.MappedResult
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.SpeakerMapping["A"] != "Bệnh nhân" || res.SpeakerMapping["B"] != "Bác sĩ" {
		t.Errorf("unexpected mapping %v", res.SpeakerMapping)
	}
	for _, seg := range res.Speakers {
		if seg.Role == "" {
			t.Errorf("segment %+v has no role", seg.Segment)
		}
	}
	env.waitTempDirEmpty(t)
}

func TestStream_SmallInputEmptyResult(t *testing.T) {
	pipe := &filePipeline{labels: []string{"A"}}
	env := newStreamEnv(t, pipe, 0)

	conn := env.dial(t, "")
	send(t, conn, fastws.BinaryMessage, audio(100))
	send(t, conn, fastws.TextMessage, []byte("END"))

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != `{"speakers":[],"num_speakers":0,"duration":0}` {
		t.Errorf("reply = %s", got)
	}

	pipe.mu.Lock()
	defer pipe.mu.Unlock()
	if len(pipe.seen) != 0 {
		t.Errorf("pipeline invoked for tiny input: %v", pipe.seen)
	}
}

func TestStream_Errors(t *testing.T) {
	tests := []struct {
		name     string
		pipe     *filePipeline
		maxBytes int
		query    string
		frames   int
		want     string
	}{
		{"model not loaded", nil, 0, "", 0, "HF_TOKEN"},
		{"invalid mapping flag", &filePipeline{}, 0, "mapping=maybe", 0, "Invalid mapping"},
		{"invalid doctor_first", &filePipeline{}, 0, "mapping=true&doctor_first=2", 0, "Invalid doctor_first"},
		{"too large", &filePipeline{}, 2048, "", 3, "Request Entity Too Large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newStreamEnv(t, tt.pipe, tt.maxBytes)
			conn := env.dial(t, tt.query)
			for i := 0; i < tt.frames; i++ {
				send(t, conn, fastws.BinaryMessage, audio(1000))
			}

			var reply map[string]string
			if err := conn.ReadJSON(&reply); err != nil {
				t.Fatalf("read: %v", err)
			}
			if !strings.Contains(reply["detail"], tt.want) {
				t.Errorf("detail = %q, want it to contain %q", reply["detail"], tt.want)
			}
			env.waitTempDirEmpty(t)
		})
	}
}

func TestStream_RejectsPlainHTTP(t *testing.T) {
	env := newStreamEnv(t, &filePipeline{}, 0)

	resp, err := http.Get("http://" + env.addr + "/ws/diarize")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}
