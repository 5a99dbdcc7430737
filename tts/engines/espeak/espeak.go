// Package espeak drives the espeak-ng command-line synthesizer. Each
// utterance runs in a fresh process; killing the process implements the
// flush and stop semantics.
package espeak

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"readaloud/tts"
	"readaloud/tts/voices"
)

// Config holds espeak-ng engine settings.
type Config struct {
	Binary  string // espeak-ng binary name or path
	BaseWPM int    // words per minute at rate 1.0
}

// DefaultConfig returns the stock espeak-ng configuration.
func DefaultConfig() Config {
	return Config{
		Binary:  "espeak-ng",
		BaseWPM: 175,
	}
}

// Synthesizer implements tts.Synthesizer on top of espeak-ng.
type Synthesizer struct {
	cfg   Config
	notif chan tts.Notification

	mu     sync.Mutex
	voice  string
	rate   float64
	cmd    *exec.Cmd
	closed bool
}

// New creates an espeak-ng synthesizer.
func New(cfg Config) *Synthesizer {
	if cfg.Binary == "" {
		cfg.Binary = "espeak-ng"
	}
	if cfg.BaseWPM <= 0 {
		cfg.BaseWPM = 175
	}
	return &Synthesizer{
		cfg:   cfg,
		notif: make(chan tts.Notification, 16),
		rate:  1.0,
	}
}

// Initialize checks the binary and lists voices in the background. The
// outcome arrives on Notifications.
func (s *Synthesizer) Initialize() error {
	go func() {
		if _, err := exec.LookPath(s.cfg.Binary); err != nil {
			s.emit(tts.Notification{
				Kind:    tts.NoteInitFailed,
				Message: fmt.Sprintf("%s not found in PATH", s.cfg.Binary),
			})
			return
		}

		out, err := exec.Command(s.cfg.Binary, "--voices").Output()
		if err != nil {
			s.emit(tts.Notification{
				Kind:    tts.NoteInitFailed,
				Message: fmt.Sprintf("listing voices failed: %v", err),
			})
			return
		}

		s.emit(tts.Notification{Kind: tts.NoteReady, Voices: ParseVoices(out)})
	}()
	return nil
}

// Speak starts a fresh espeak-ng process for the utterance. Flush kills any
// in-flight process first; a killed process never reports done or error.
func (s *Synthesizer) Speak(u tts.Utterance) {
	s.mu.Lock()
	if u.Flush {
		s.killLocked()
	}

	wpm := int(float64(s.cfg.BaseWPM) * s.rate)
	args := []string{"-s", strconv.Itoa(wpm)}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}

	cmd := exec.Command(s.cfg.Binary, args...)
	cmd.Stdin = strings.NewReader(u.Text + "\n")

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		s.emit(tts.Notification{
			Kind:    tts.NoteUtteranceError,
			BlockID: u.BlockID,
			Message: err.Error(),
		})
		return
	}
	s.cmd = cmd
	s.mu.Unlock()

	s.emit(tts.Notification{Kind: tts.NoteUtteranceStarted, BlockID: u.BlockID})

	go func() {
		err := cmd.Wait()

		s.mu.Lock()
		current := s.cmd == cmd
		if current {
			s.cmd = nil
		}
		s.mu.Unlock()

		if !current {
			// Flushed or stopped; the outcome no longer matters.
			return
		}
		if err != nil {
			s.emit(tts.Notification{
				Kind:    tts.NoteUtteranceError,
				BlockID: u.BlockID,
				Message: err.Error(),
			})
			return
		}
		s.emit(tts.Notification{Kind: tts.NoteUtteranceDone, BlockID: u.BlockID})
	}()
}

// SetVoice selects the espeak-ng voice for subsequent utterances.
func (s *Synthesizer) SetVoice(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = id
}

// SetRate sets the rate multiplier for subsequent utterances.
func (s *Synthesizer) SetRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = rate
}

// Stop kills the in-flight process, best effort.
func (s *Synthesizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
}

// Notifications returns the notification channel.
func (s *Synthesizer) Notifications() <-chan tts.Notification {
	return s.notif
}

// Shutdown stops any in-flight process and closes Notifications.
func (s *Synthesizer) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killLocked()
	if !s.closed {
		s.closed = true
		close(s.notif)
	}
	return nil
}

// killLocked terminates the in-flight process. Must be called with s.mu
// held. Clearing s.cmd marks the process as abandoned so its exit is never
// reported.
func (s *Synthesizer) killLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil {
			log.Debug("killing espeak process failed", "err", err)
		}
	}
	s.cmd = nil
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

// ParseVoices parses `espeak-ng --voices` output. Every espeak voice is
// local and carries no network requirement. Lines that do not look like
// voice rows are skipped.
//
// Sample row:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English (America)  gmw/en-US
func ParseVoices(out []byte) []voices.Descriptor {
	lines := strings.Split(string(out), "\n")

	var result []voices.Descriptor
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue // header
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}

		locale := fields[1]
		file := fields[len(fields)-1]
		name := strings.Join(fields[3:len(fields)-1], " ")

		result = append(result, voices.Descriptor{
			ID:        file,
			Name:      name,
			Locale:    locale,
			Installed: true,
		})
	}
	return result
}
