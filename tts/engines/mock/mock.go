// Package mock provides a scriptable synthesizer for tests and dry runs.
// It records every call and lets the caller emit notifications by hand, or
// complete utterances automatically in auto mode.
package mock

import (
	"sync"

	"readaloud/tts"
	"readaloud/tts/voices"
)

// DefaultVoices is the voice set reported by a fresh mock synthesizer.
var DefaultVoices = []voices.Descriptor{
	{ID: "en-us-x-mock-local", Name: "en-us-x-mock-local", Locale: "en-US", Installed: true},
	{ID: "en-gb-female_1-local", Name: "en-gb-female_1-local", Locale: "en-GB", Installed: true},
}

// Synthesizer implements tts.Synthesizer without producing audio.
type Synthesizer struct {
	mu        sync.Mutex
	notif     chan tts.Notification
	voices    []voices.Descriptor
	initError string
	auto      bool
	closed    bool

	spoken   []tts.Utterance
	rates    []float64
	voiceIDs []string
	stops    int
}

// New creates a mock synthesizer reporting DefaultVoices.
func New() *Synthesizer {
	return &Synthesizer{
		notif:  make(chan tts.Notification, 16),
		voices: DefaultVoices,
	}
}

// WithVoices overrides the voice descriptors reported at initialization.
func (s *Synthesizer) WithVoices(v []voices.Descriptor) *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices = v
	return s
}

// FailInitialization makes Initialize report failure with the given reason.
func (s *Synthesizer) FailInitialization(reason string) *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initError = reason
	return s
}

// AutoComplete makes every Speak immediately emit started and done
// notifications, so whole documents play through without intervention.
func (s *Synthesizer) AutoComplete() *Synthesizer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto = true
	return s
}

// Initialize emits the ready or init-failed notification.
func (s *Synthesizer) Initialize() error {
	s.mu.Lock()
	initError := s.initError
	v := s.voices
	s.mu.Unlock()

	if initError != "" {
		s.emit(tts.Notification{Kind: tts.NoteInitFailed, Message: initError})
		return nil
	}
	s.emit(tts.Notification{Kind: tts.NoteReady, Voices: v})
	return nil
}

// Speak records the utterance. In auto mode the utterance starts and
// finishes immediately.
func (s *Synthesizer) Speak(u tts.Utterance) {
	s.mu.Lock()
	s.spoken = append(s.spoken, u)
	auto := s.auto
	s.mu.Unlock()

	if auto {
		s.emit(tts.Notification{Kind: tts.NoteUtteranceStarted, BlockID: u.BlockID})
		s.emit(tts.Notification{Kind: tts.NoteUtteranceDone, BlockID: u.BlockID})
	}
}

// SetVoice records the voice selection.
func (s *Synthesizer) SetVoice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voiceIDs = append(s.voiceIDs, id)
}

// SetRate records the rate.
func (s *Synthesizer) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = append(s.rates, rate)
}

// Stop counts cancellation requests.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
}

// Notifications returns the notification channel.
func (s *Synthesizer) Notifications() <-chan tts.Notification {
	return s.notif
}

// Shutdown closes the notification channel.
func (s *Synthesizer) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.notif)
	}
	return nil
}

// EmitReady re-emits a ready notification. Tests also use it as a fence:
// once the ready callback fires, every notification emitted before it has
// been processed.
func (s *Synthesizer) EmitReady() {
	s.mu.Lock()
	v := s.voices
	s.mu.Unlock()
	s.emit(tts.Notification{Kind: tts.NoteReady, Voices: v})
}

// EmitStarted emits an utterance-started notification.
func (s *Synthesizer) EmitStarted(blockID int) {
	s.emit(tts.Notification{Kind: tts.NoteUtteranceStarted, BlockID: blockID})
}

// EmitDone emits an utterance-done notification.
func (s *Synthesizer) EmitDone(blockID int) {
	s.emit(tts.Notification{Kind: tts.NoteUtteranceDone, BlockID: blockID})
}

// EmitError emits an utterance-error notification.
func (s *Synthesizer) EmitError(blockID, code int, message string) {
	s.emit(tts.Notification{Kind: tts.NoteUtteranceError, BlockID: blockID, Code: code, Message: message})
}

// Spoken returns a copy of every utterance submitted so far.
func (s *Synthesizer) Spoken() []tts.Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tts.Utterance, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// LastSpoken returns the most recent utterance and whether one exists.
func (s *Synthesizer) LastSpoken() (tts.Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.spoken) == 0 {
		return tts.Utterance{}, false
	}
	return s.spoken[len(s.spoken)-1], true
}

// Stops returns how many times Stop was called.
func (s *Synthesizer) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Rates returns every rate passed to SetRate.
func (s *Synthesizer) Rates() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.rates))
	copy(out, s.rates)
	return out
}

// VoiceIDs returns every id passed to SetVoice.
func (s *Synthesizer) VoiceIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.voiceIDs))
	copy(out, s.voiceIDs)
	return out
}

func (s *Synthesizer) emit(n tts.Notification) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.notif <- n
}
