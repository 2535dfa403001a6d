package capture

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/gorilla/websocket"
)

// silenceThreshold is the base inactivity window required before an
// utterance is considered complete. Conservative to avoid cutting the
// user mid-sentence.
const silenceThreshold = 700 * time.Millisecond

// continuationExtension is added to the silence threshold when the last
// word suggests the user is likely to continue (e.g. "and", "or", "if").
const continuationExtension = 1200 * time.Millisecond

// stabilizationGrace absorbs late ASR updates after the silence window
// before finalizing.
const stabilizationGrace = 250 * time.Millisecond

// Update is one transcript event for the current utterance: interim
// text is overwritten by later updates; a final update ends the
// utterance.
type Update struct {
	Text  string
	Final bool
}

// AssemblyAIStream transcribes a live PCM feed through the AssemblyAI
// realtime WebSocket API. It emits interim updates as the transcript
// grows and a final update after sustained silence.
type AssemblyAIStream struct {
	apiKey    string
	conn      *websocket.Conn
	updates   chan Update
	errs      chan error
	audioData chan []byte
	stopCh    chan struct{}
	mu        sync.RWMutex
	connected bool

	// utterance accumulation
	accMu        sync.Mutex
	latest       string
	committed    string
	lastUpdate   time.Time
	lastVoice    time.Time
	silenceTimer *time.Timer
}

type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIStream creates an unconnected stream.
func NewAssemblyAIStream(apiKey string) *AssemblyAIStream {
	return &AssemblyAIStream{
		apiKey:    apiKey,
		updates:   make(chan Update, 100),
		errs:      make(chan error, 4),
		audioData: make(chan []byte, 1000),
		stopCh:    make(chan struct{}),
	}
}

// Updates returns the transcript event channel.
func (s *AssemblyAIStream) Updates() <-chan Update { return s.updates }

// Connected reports whether the WebSocket session is established.
func (s *AssemblyAIStream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Errors returns the capture error channel.
func (s *AssemblyAIStream) Errors() <-chan error { return s.errs }

// Connect establishes the WebSocket connection.
func (s *AssemblyAIStream) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("assemblyai api key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("assemblyai connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("connect to assemblyai: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.lastUpdate = time.Now()
	s.lastVoice = time.Now()

	go s.handleMessages()
	go s.sendAudioData()

	log.Println("connected to assemblyai streaming service")
	return nil
}

// SendPCM16KLE queues 16kHz mono PCM16LE audio for transcription.
func (s *AssemblyAIStream) SendPCM16KLE(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to assemblyai")
	}
	s.detectVoiceActivity(pcm)
	select {
	case s.audioData <- pcm:
		return nil
	default:
		log.Println("audio buffer full, dropping packet")
		return nil
	}
}

// detectVoiceActivity updates lastVoice when the buffer carries voice
// energy above a threshold.
func (s *AssemblyAIStream) detectVoiceActivity(pcm []byte) {
	const minSamples = 160 // 10ms at 16kHz
	if len(pcm) < minSamples*2 {
		return
	}
	step := 2
	if len(pcm) > 3200 {
		step = 4
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return
	}
	rms := math.Sqrt(sumSquares / float64(count))
	const voiceRMS = 250.0
	if rms >= voiceRMS {
		s.accMu.Lock()
		s.lastVoice = time.Now()
		s.accMu.Unlock()
	}
}

// RecentlyDetectedVoice reports whether voice energy was observed within
// the given window.
func (s *AssemblyAIStream) RecentlyDetectedVoice(window time.Duration) bool {
	s.accMu.Lock()
	last := s.lastVoice
	s.accMu.Unlock()
	return time.Since(last) <= window
}

// Close terminates the session and releases resources. The event
// channels are left open: a finalization or reader goroutine may still
// be in flight when Close runs, so shutdown is signaled solely through
// stopCh and receivers stop on their own.
func (s *AssemblyAIStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	s.accMu.Lock()
	if s.silenceTimer != nil {
		_ = s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	s.accMu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteJSON(map[string]string{"type": "Terminate"})
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	log.Println("assemblyai connection closed")
	return nil
}

func (s *AssemblyAIStream) handleMessages() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in handleMessages: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		default:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("error reading message: %v", err)
				return
			}
			s.processMessage(message)
		}
	}
}

func (s *AssemblyAIStream) processMessage(message []byte) {
	var baseMsg map[string]interface{}
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		log.Printf("error unmarshaling message: %v", err)
		return
	}
	msgType, ok := baseMsg["type"].(string)
	if !ok {
		return
	}
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai session began: ID=%s", msg.ID)
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		if msg.Transcript == "" {
			return
		}
		s.accMu.Lock()
		s.latest = msg.Transcript
		s.lastUpdate = time.Now()
		interim := strings.TrimSpace(strings.TrimPrefix(msg.Transcript, s.committed))
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(silenceThreshold, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(silenceThreshold)
		}
		s.accMu.Unlock()
		if interim != "" {
			select {
			case s.updates <- Update{Text: interim}:
			default:
			}
		}
	case "Termination":
		log.Printf("assemblyai session terminated")
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai error: %s", msg.Error)
		select {
		case s.errs <- fmt.Errorf("assemblyai: %s", msg.Error):
		default:
		}
	}
}

// finalizeDueToSilence fires after the silence window and emits the
// transcript delta since the last finalized utterance.
func (s *AssemblyAIStream) finalizeDueToSilence() {
	select {
	case <-s.stopCh:
		return
	default:
	}

	s.accMu.Lock()
	now := time.Now()
	threshold := silenceThreshold
	if isContinuationLikely(s.latest) {
		threshold += continuationExtension
	}
	sinceText := now.Sub(s.lastUpdate)
	sinceVoice := now.Sub(s.lastVoice)
	if sinceText < threshold || sinceVoice < threshold {
		wait := threshold
		if rem := threshold - sinceText; sinceText < threshold && rem < wait {
			wait = rem
		}
		if rem := threshold - sinceVoice; sinceVoice < threshold && rem < wait {
			wait = rem
		}
		if wait < 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(wait, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(wait)
		}
		s.accMu.Unlock()
		return
	}
	lastUpdateAt := s.lastUpdate
	s.accMu.Unlock()

	// Grace period to catch late transcript updates.
	time.Sleep(stabilizationGrace)

	s.accMu.Lock()
	if s.lastUpdate.After(lastUpdateAt) {
		if s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(silenceThreshold, s.finalizeDueToSilence)
		} else {
			_ = s.silenceTimer.Stop()
			s.silenceTimer.Reset(silenceThreshold)
		}
		s.accMu.Unlock()
		return
	}
	delta := utteranceDelta(s.latest, s.committed)
	s.committed = s.latest
	s.accMu.Unlock()

	if strings.TrimSpace(delta) == "" {
		return
	}
	select {
	case <-s.stopCh:
	case s.updates <- Update{Text: delta, Final: true}:
	}
}

// utteranceDelta extracts the uncommitted tail of the running
// transcript.
func utteranceDelta(latest, committed string) string {
	delta := strings.TrimSpace(strings.TrimPrefix(latest, committed))
	if delta == "" && committed != "" {
		if idx := strings.LastIndex(latest, committed); idx >= 0 && idx+len(committed) <= len(latest) {
			delta = strings.TrimSpace(latest[idx+len(committed):])
		}
	}
	return delta
}

// isContinuationLikely returns true if the last meaningful word
// indicates the speaker is likely to continue.
func isContinuationLikely(text string) bool {
	w := lastWord(text)
	if w == "" {
		return false
	}
	_, ok := continuationWords[w]
	return ok
}

func lastWord(text string) string {
	trim := strings.TrimSpace(text)
	if trim == "" {
		return ""
	}
	fields := strings.FieldsFunc(trim, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[len(fields)-1])
}

var continuationWords = map[string]struct{}{
	// Coordinating conjunctions
	"and": {}, "or": {}, "but": {}, "nor": {}, "yet": {}, "so": {},
	// Subordinating conjunctions / conditionals
	"if": {}, "when": {}, "while": {}, "though": {}, "although": {},
	"because": {}, "since": {}, "unless": {}, "until": {}, "whereas": {},
	// Discourse markers / fillers
	"also": {}, "plus": {}, "um": {}, "uh": {}, "like": {},
	// Prepositions that are awkward sentence endings
	"about": {}, "with": {}, "to": {}, "of": {}, "for": {}, "on": {}, "in": {}, "at": {},
}

func (s *AssemblyAIStream) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in sendAudioData: %v", r)
		}
	}()
	for {
		select {
		case <-s.stopCh:
			return
		case audioData, ok := <-s.audioData:
			if !ok {
				return
			}
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, audioData); err != nil {
					log.Printf("error sending audio data: %v", err)
					return
				}
			}
		}
	}
}
