package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dhruv1710/thinkback/internal/barge"
	"github.com/dhruv1710/thinkback/internal/capture"
	"github.com/dhruv1710/thinkback/internal/convo"
	"github.com/dhruv1710/thinkback/internal/playback"
)

// sessionMessage is the JSON envelope for text frames in both
// directions. Binary frames carry audio: client to server is 16kHz
// PCM16LE microphone audio, server to client is the fetched reply
// audio.
type sessionMessage struct {
	Type    string `json:"type"`
	Phase   string `json:"phase,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// sessionStream is the capture transport a session runs on. The real
// implementation is capture.AssemblyAIStream; tests substitute a fake.
type sessionStream interface {
	Connect() error
	Close() error
	SendPCM16KLE(pcm []byte) error
	capture.Stream
}

// Handler serves one conversation session per WebSocket connection.
type Handler struct {
	client    convo.TurnClient
	newStream func() sessionStream
}

func NewHandler(assemblyAIKey string, client convo.TurnClient) *Handler {
	return &Handler{
		client:    client,
		newStream: func() sessionStream { return capture.NewAssemblyAIStream(assemblyAIKey) },
	}
}

// wsWriter serializes concurrent writes to one connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) sendJSON(m sessionMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteJSON(m); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

func (w *wsWriter) sendBinary(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		log.Printf("ws write error: %v", err)
	}
}

// wsPlayer announces playback to the client before streaming bytes.
type wsPlayer struct {
	ctrl   *playback.Controller
	writer *wsWriter
}

func (p *wsPlayer) Play(url string) {
	p.writer.sendJSON(sessionMessage{Type: "audio-start", URL: url})
	p.ctrl.Play(url)
}

func (p *wsPlayer) Stop() { p.ctrl.Stop() }

// ServeWebSocket upgrades the request and runs the session until the
// client disconnects or says bye.
func (h *Handler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	writer := &wsWriter{conn: conn}

	stream := h.newStream()
	if err := stream.Connect(); err != nil {
		writer.sendJSON(sessionMessage{Type: "error", Error: err.Error()})
		return
	}
	defer func() { _ = stream.Close() }()
	gate := capture.NewGate(stream)

	sink := playback.NewPacedSink(writer.sendBinary, 4096, 20*time.Millisecond)
	defer sink.Close()

	var machine *convo.Machine
	var detector *barge.Detector

	ctrl := playback.NewController(sink,
		func() {
			writer.sendJSON(sessionMessage{Type: "audio-end"})
			machine.HandlePlaybackDone()
		},
		func(err error) {
			writer.sendJSON(sessionMessage{Type: "error", Error: err.Error()})
			machine.HandlePlaybackError(err)
		},
	)
	player := &wsPlayer{ctrl: ctrl, writer: writer}

	machine = convo.NewMachine(gate, h.client, player, convo.Hooks{
		OnPhase: func(p convo.Phase) {
			detector.SetSpeaking(p == convo.PhaseSpeaking)
			writer.sendJSON(sessionMessage{Type: "phase", Phase: p.String()})
		},
		OnEntry: func(e convo.Entry) {
			writer.sendJSON(sessionMessage{Type: "entry", Speaker: string(e.Speaker), Text: e.Text})
		},
		OnInterim: func(text string) {
			writer.sendJSON(sessionMessage{Type: "interim", Text: text})
		},
	})
	gate.Bind(machine)

	detector = barge.NewDetector(barge.DefaultConfig(), func() {
		machine.StartCapture()
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go gate.Run(ctx)
	defer ctrl.Stop()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			_ = stream.SendPCM16KLE(data)
			detector.FeedPCM16(data)
		case websocket.TextMessage:
			var m sessionMessage
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			switch strings.ToLower(m.Type) {
			case "start":
				machine.StartCapture()
			case "stop":
				machine.StopCapture()
			case "bye":
				return
			}
		}
	}
}
