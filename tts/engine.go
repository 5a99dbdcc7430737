// Package tts provides the speech playback engine: a sequencing state
// machine that drives an external synthesis engine block-by-block with
// pause, resume, jump and range semantics. Text passes through the
// normalization pipeline in readaloud/tts/text before dispatch, and the
// voice catalog in readaloud/tts/voices is rebuilt on every engine-ready
// notification.
package tts

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"readaloud/tts/text"
	"readaloud/tts/voices"
)

// Engine owns the playback session state: the ordered block list, the
// current, start and end indices, and the Idle/Playing/Paused state. All
// mutation happens under one mutex, shared by caller operations and the
// single goroutine pumping synthesizer notifications. The still-Playing
// re-check in the auto-advance path is what keeps a late "done"
// notification from resurrecting a stopped session.
type Engine struct {
	synth Synthesizer
	pre   *text.Preprocessor

	mu        sync.Mutex
	state     StateType
	ready     bool
	started   bool
	catalog   []voices.Entry
	blocks    []Block
	current   int
	end       int
	paused    int
	hasPaused bool
	rate      float64
	voice     string
	docCtx    text.Context

	onReady             func([]voices.Entry)
	onBlockStarted      func(int)
	onBlockCompleted    func(int)
	onPlaybackCompleted func()
	onError             func(error)

	pumpDone chan struct{}
}

// NewEngine creates a playback engine on top of the given synthesizer.
func NewEngine(synth Synthesizer) *Engine {
	return &Engine{
		synth:    synth,
		pre:      text.NewPreprocessor(),
		state:    StateIdle,
		rate:     1.0,
		docCtx:   text.ContextGeneral,
		pumpDone: make(chan struct{}),
	}
}

// OnReady registers a callback fired once the synthesizer reports ready,
// carrying the freshly built voice catalog.
func (e *Engine) OnReady(fn func([]voices.Entry)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onReady = fn
}

// OnBlockStarted registers a callback fired when audio for a block begins.
// This is the only "now speaking" signal the engine emits.
func (e *Engine) OnBlockStarted(fn func(id int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBlockStarted = fn
}

// OnBlockCompleted registers a callback fired when a block finishes.
func (e *Engine) OnBlockCompleted(fn func(id int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onBlockCompleted = fn
}

// OnPlaybackCompleted registers a callback fired when the session reaches
// its end boundary.
func (e *Engine) OnPlaybackCompleted(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onPlaybackCompleted = fn
}

// OnError registers a callback for initialization and synthesis failures.
func (e *Engine) OnError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onError = fn
}

// Initialize starts the notification pump and kicks off asynchronous
// synthesizer startup. The ready (or failure) outcome is delivered through
// the OnReady and OnError callbacks.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyInitialized
	}
	e.started = true
	e.mu.Unlock()

	go e.pump()

	if err := e.synth.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	return nil
}

// Close shuts down the synthesizer and waits for the notification pump to
// drain.
func (e *Engine) Close() error {
	e.mu.Lock()
	started := e.started
	e.state = StateIdle
	e.mu.Unlock()

	err := e.synth.Shutdown()
	if started {
		<-e.pumpDone
	}
	return err
}

// Play starts playback at the block with the given id and runs to the last
// block.
func (e *Engine) Play(blocks []Block, startID int) error {
	return e.start(blocks, startID, 0, false)
}

// PlayRange starts playback at startID and stops after the block with
// endID. An unmatched endID falls back to the last block.
func (e *Engine) PlayRange(blocks []Block, startID, endID int) error {
	return e.start(blocks, startID, endID, true)
}

func (e *Engine) start(blocks []Block, startID, endID int, hasEnd bool) error {
	e.mu.Lock()
	if !e.ready {
		e.mu.Unlock()
		return ErrEngineNotReady
	}

	e.blocks = blocks

	idx := indexOf(blocks, startID)
	if idx < 0 {
		log.Warn("start block not found, falling back to first block", "block", startID)
		idx = 0
	}

	end := len(blocks) - 1
	if hasEnd {
		if j := indexOf(blocks, endID); j >= 0 {
			end = j
		} else {
			log.Warn("end block not found, falling back to last block", "block", endID)
		}
	}

	e.current = idx
	e.end = end
	e.hasPaused = false
	e.state = StatePlaying
	e.synth.SetRate(e.rate)

	completed := e.dispatchLocked()
	e.mu.Unlock()

	if completed != nil {
		completed()
	}
	return nil
}

// JumpToBlock moves the session to the block with the given id. During
// playback the in-flight utterance is stopped and the new block dispatched
// immediately; otherwise only the index moves and a later Resume or Play
// continues from there. The end boundary is unchanged.
func (e *Engine) JumpToBlock(id int) error {
	e.mu.Lock()
	idx := indexOf(e.blocks, id)
	if idx < 0 {
		e.mu.Unlock()
		log.Warn("jump target not found", "block", id)
		return ErrBlockNotFound
	}

	e.synth.Stop()
	e.current = idx
	if e.state == StatePaused {
		e.paused = idx
	}

	var completed func()
	if e.state == StatePlaying {
		completed = e.dispatchLocked()
	}
	e.mu.Unlock()

	if completed != nil {
		completed()
	}
	return nil
}

// Pause suspends playback at the current block. Only valid while playing.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return ErrNotPlaying
	}

	e.synth.Stop()
	e.paused = e.current
	e.hasPaused = true
	e.state = StatePaused
	return nil
}

// Resume restarts playback at the paused block, re-dispatching it from the
// beginning.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if e.state != StatePaused || !e.hasPaused {
		e.mu.Unlock()
		return ErrNotPaused
	}

	e.current = e.paused
	e.state = StatePlaying
	e.synth.SetRate(e.rate)

	completed := e.dispatchLocked()
	e.mu.Unlock()

	if completed != nil {
		completed()
	}
	return nil
}

// Stop halts playback unconditionally, clears the paused marker and resets
// the session to the first block. It emits no completion event.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.synth.Stop()
	e.hasPaused = false
	e.current = 0
	e.state = StateIdle
}

// SetRate clamps and applies the speech rate. It affects the next dispatch,
// never an utterance already in flight. Returns the applied rate.
func (e *Engine) SetRate(rate float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rate = ClampRate(rate)
	e.synth.SetRate(e.rate)
	log.Debug("speech rate set", "rate", RateDisplay(e.rate))
	return e.rate
}

// IncreaseRate steps the speech rate up to the next preset and applies it.
// Returns the new rate.
func (e *Engine) IncreaseRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rate = NextRate(e.rate)
	e.synth.SetRate(e.rate)
	log.Debug("speech rate increased", "rate", RateDisplay(e.rate))
	return e.rate
}

// DecreaseRate steps the speech rate down to the previous preset and
// applies it. Returns the new rate.
func (e *Engine) DecreaseRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rate = PreviousRate(e.rate)
	e.synth.SetRate(e.rate)
	log.Debug("speech rate decreased", "rate", RateDisplay(e.rate))
	return e.rate
}

// SetVoice selects the voice for subsequent dispatches.
func (e *Engine) SetVoice(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.voice = id
	e.synth.SetVoice(id)
}

// SetContext selects the document context the preprocessor expands
// abbreviations under.
func (e *Engine) SetContext(ctx text.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docCtx = ctx
}

// State returns the current playback state.
func (e *Engine) State() StateType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Ready reports whether the synthesizer has initialized successfully.
func (e *Engine) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

// Catalog returns a copy of the current voice catalog.
func (e *Engine) Catalog() []voices.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]voices.Entry, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// dispatchLocked preprocesses and submits the current block. An index
// outside the block list means the sequence is over: the engine goes Idle
// and the caller must fire the returned completion callback after
// unlocking. Must be called with e.mu held.
func (e *Engine) dispatchLocked() func() {
	if e.current < 0 || e.current >= len(e.blocks) {
		e.state = StateIdle
		return e.onPlaybackCompleted
	}

	block := e.blocks[e.current]
	spoken := e.pre.Process(block.Text, e.docCtx)
	log.Debug("dispatching block", "block", block.ID, "chars", len(spoken))

	e.synth.Speak(Utterance{Text: spoken, BlockID: block.ID, Flush: true})
	return nil
}

// pump funnels synthesizer notifications into the engine's serialized
// state-mutation path, one at a time.
func (e *Engine) pump() {
	defer close(e.pumpDone)

	for n := range e.synth.Notifications() {
		switch n.Kind {
		case NoteReady:
			e.handleReady(n.Voices)
		case NoteInitFailed:
			e.handleInitFailed(n.Message)
		case NoteUtteranceStarted:
			e.handleUtteranceStarted(n.BlockID)
		case NoteUtteranceDone:
			e.handleUtteranceDone(n.BlockID)
		case NoteUtteranceError:
			e.handleUtteranceError(n.BlockID, n.Code, n.Message)
		}
	}
}

func (e *Engine) handleReady(raw []voices.Descriptor) {
	e.mu.Lock()
	e.catalog = voices.Build(raw)
	e.ready = true
	fire := e.onReady
	catalog := make([]voices.Entry, len(e.catalog))
	copy(catalog, e.catalog)
	e.mu.Unlock()

	log.Info("speech engine ready", "voices", len(catalog))
	if fire != nil {
		fire(catalog)
	}
}

func (e *Engine) handleInitFailed(message string) {
	e.mu.Lock()
	e.ready = false
	e.catalog = nil
	fire := e.onError
	e.mu.Unlock()

	log.Error("speech engine initialization failed", "reason", message)
	if fire != nil {
		fire(fmt.Errorf("%w: %s", ErrInitializationFailed, message))
	}
}

func (e *Engine) handleUtteranceStarted(id int) {
	e.mu.Lock()
	if e.state != StatePlaying || !e.currentBlockIs(id) {
		e.mu.Unlock()
		log.Debug("ignoring stale utterance start", "block", id)
		return
	}
	fire := e.onBlockStarted
	e.mu.Unlock()

	if fire != nil {
		fire(id)
	}
}

// handleUtteranceDone is the auto-advance path. A pause or stop that took
// effect before this notification wins: anything but a Playing state with a
// matching correlation id is discarded.
func (e *Engine) handleUtteranceDone(id int) {
	e.mu.Lock()
	if e.state != StatePlaying || !e.currentBlockIs(id) {
		e.mu.Unlock()
		log.Debug("ignoring stale utterance done", "block", id)
		return
	}

	fireCompleted := e.onBlockCompleted

	e.current++
	var finished func()
	if e.current <= e.end && e.current < len(e.blocks) {
		finished = e.dispatchLocked()
	} else {
		e.state = StateIdle
		finished = e.onPlaybackCompleted
	}
	e.mu.Unlock()

	if fireCompleted != nil {
		fireCompleted(id)
	}
	if finished != nil {
		finished()
	}
}

// handleUtteranceError surfaces any synthesizer fault as a generic playback
// error and forces the session Idle. Nothing is retried; a fresh Play or
// Resume is required.
func (e *Engine) handleUtteranceError(id, code int, message string) {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		log.Debug("ignoring stale utterance error", "block", id, "code", code)
		return
	}

	e.state = StateIdle
	e.hasPaused = false
	fire := e.onError
	e.mu.Unlock()

	log.Error("synthesis failed", "block", id, "code", code, "reason", message)
	if fire != nil {
		fire(fmt.Errorf("%w: block %d: %s", ErrSynthesisFailed, id, message))
	}
}

// currentBlockIs reports whether the current index refers to the block with
// the given id. Must be called with e.mu held.
func (e *Engine) currentBlockIs(id int) bool {
	return e.current >= 0 && e.current < len(e.blocks) && e.blocks[e.current].ID == id
}

// indexOf returns the index of the first block with the given id, or -1.
func indexOf(blocks []Block, id int) int {
	for i, b := range blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
