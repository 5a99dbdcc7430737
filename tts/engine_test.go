package tts_test

import (
	"errors"
	"testing"
	"time"

	"readaloud/tts"
	"readaloud/tts/engines/mock"
	"readaloud/tts/text"
	"readaloud/tts/voices"
)

const waitTimeout = 2 * time.Second

// recorder collects engine events on channels so tests can wait for the
// notification pump without sleeping.
type recorder struct {
	ready     chan []voices.Entry
	started   chan int
	completed chan int
	finished  chan struct{}
	errs      chan error
}

func newRecorder(e *tts.Engine) *recorder {
	r := &recorder{
		ready:     make(chan []voices.Entry, 16),
		started:   make(chan int, 16),
		completed: make(chan int, 16),
		finished:  make(chan struct{}, 16),
		errs:      make(chan error, 16),
	}
	e.OnReady(func(c []voices.Entry) { r.ready <- c })
	e.OnBlockStarted(func(id int) { r.started <- id })
	e.OnBlockCompleted(func(id int) { r.completed <- id })
	e.OnPlaybackCompleted(func() { r.finished <- struct{}{} })
	e.OnError(func(err error) { r.errs <- err })
	return r
}

// fence guarantees every previously emitted notification has been handled:
// notifications are processed in order by a single consumer, so once the
// re-emitted ready event lands, nothing older is still in flight.
func (r *recorder) fence(t *testing.T, synth *mock.Synthesizer) {
	t.Helper()
	synth.EmitReady()
	select {
	case <-r.ready:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for fence")
	}
}

func (r *recorder) waitCompleted(t *testing.T) int {
	t.Helper()
	select {
	case id := <-r.completed:
		return id
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for block completion")
		return 0
	}
}

func (r *recorder) waitStarted(t *testing.T) int {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for block start")
		return 0
	}
}

func (r *recorder) waitFinished(t *testing.T) {
	t.Helper()
	select {
	case <-r.finished:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for playback completion")
	}
}

func (r *recorder) waitError(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.errs:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error")
		return nil
	}
}

// newReadyEngine builds an engine over a mock synthesizer and waits for the
// ready event.
func newReadyEngine(t *testing.T) (*tts.Engine, *mock.Synthesizer, *recorder) {
	t.Helper()

	synth := mock.New()
	engine := tts.NewEngine(synth)
	rec := newRecorder(engine)

	if err := engine.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	select {
	case <-rec.ready:
	case <-time.After(waitTimeout):
		t.Fatal("engine never became ready")
	}
	t.Cleanup(func() { _ = engine.Close() })

	return engine, synth, rec
}

func threeBlocks() []tts.Block {
	return []tts.Block{
		{ID: 1, Text: "Alpha"},
		{ID: 2, Text: "Bravo"},
		{ID: 3, Text: "Charlie"},
	}
}

// TestPlayBeforeReady verifies playback is rejected until the synthesizer
// reports ready, with no state change.
func TestPlayBeforeReady(t *testing.T) {
	synth := mock.New()
	engine := tts.NewEngine(synth)

	err := engine.Play(threeBlocks(), 1)
	if !errors.Is(err, tts.ErrEngineNotReady) {
		t.Fatalf("Play before ready = %v, want ErrEngineNotReady", err)
	}
	if got := engine.State(); got != tts.StateIdle {
		t.Errorf("state after rejected Play = %v, want idle", got)
	}
	if spoken := synth.Spoken(); len(spoken) != 0 {
		t.Errorf("rejected Play dispatched %d utterances, want 0", len(spoken))
	}
}

// TestPlayFromMiddleToEnd verifies that starting at block 2 of three
// resolves the range to the last block, and two done notifications finish
// the session.
func TestPlayFromMiddleToEnd(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 2); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	last, ok := synth.LastSpoken()
	if !ok || last.BlockID != 2 {
		t.Fatalf("first dispatch = %+v, want block 2", last)
	}
	if !last.Flush {
		t.Error("dispatch must always request flush")
	}

	synth.EmitDone(2)
	if id := rec.waitCompleted(t); id != 2 {
		t.Errorf("completed block = %d, want 2", id)
	}

	last, _ = synth.LastSpoken()
	if last.BlockID != 3 {
		t.Fatalf("auto-advance dispatched block %d, want 3", last.BlockID)
	}

	synth.EmitDone(3)
	if id := rec.waitCompleted(t); id != 3 {
		t.Errorf("completed block = %d, want 3", id)
	}
	rec.waitFinished(t)

	if got := engine.State(); got != tts.StateIdle {
		t.Errorf("state after completion = %v, want idle", got)
	}
}

// TestPlayStartFallback verifies an unknown start id clamps to the first
// block instead of failing.
func TestPlayStartFallback(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 99); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	last, ok := synth.LastSpoken()
	if !ok || last.BlockID != 1 {
		t.Errorf("dispatch = %+v, want fallback to block 1", last)
	}
}

// TestPlayRangeStopsAtEnd verifies the end boundary halts auto-advance.
func TestPlayRangeStopsAtEnd(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.PlayRange(threeBlocks(), 1, 2); err != nil {
		t.Fatalf("PlayRange() error: %v", err)
	}

	synth.EmitDone(1)
	rec.waitCompleted(t)

	last, _ := synth.LastSpoken()
	if last.BlockID != 2 {
		t.Fatalf("dispatched block %d, want 2", last.BlockID)
	}

	synth.EmitDone(2)
	rec.waitCompleted(t)
	rec.waitFinished(t)

	for _, u := range synth.Spoken() {
		if u.BlockID == 3 {
			t.Error("block 3 dispatched past the end boundary")
		}
	}
}

// TestPlayRangeEndFallback verifies an unknown end id falls back to the
// last block.
func TestPlayRangeEndFallback(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.PlayRange(threeBlocks(), 1, 99); err != nil {
		t.Fatalf("PlayRange() error: %v", err)
	}

	synth.EmitDone(1)
	rec.waitCompleted(t)
	synth.EmitDone(2)
	rec.waitCompleted(t)

	last, _ := synth.LastSpoken()
	if last.BlockID != 3 {
		t.Errorf("dispatched block %d, want 3 (end fallback is last block)", last.BlockID)
	}
}

// TestPauseResume verifies pause wins over in-flight notifications and
// resume re-dispatches the paused block with identical processed text.
func TestPauseResume(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	synth.EmitDone(1)
	rec.waitCompleted(t)

	pausedUtterance, _ := synth.LastSpoken()
	if pausedUtterance.BlockID != 2 {
		t.Fatalf("dispatched block %d, want 2", pausedUtterance.BlockID)
	}

	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}
	if got := engine.State(); got != tts.StatePaused {
		t.Fatalf("state after Pause = %v, want paused", got)
	}
	if synth.Stops() == 0 {
		t.Error("Pause did not stop the in-flight utterance")
	}

	// A done notification racing the pause must be discarded.
	synth.EmitDone(2)
	rec.fence(t, synth)
	select {
	case id := <-rec.completed:
		t.Fatalf("stale done after pause completed block %d", id)
	default:
	}

	if err := engine.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	resumed, _ := synth.LastSpoken()
	if resumed.BlockID != 2 {
		t.Errorf("Resume dispatched block %d, want 2", resumed.BlockID)
	}
	if resumed.Text != pausedUtterance.Text {
		t.Errorf("Resume text %q differs from paused dispatch %q", resumed.Text, pausedUtterance.Text)
	}
}

// TestPauseRequiresPlaying verifies the pause and resume preconditions.
func TestPauseRequiresPlaying(t *testing.T) {
	engine, _, _ := newReadyEngine(t)

	if err := engine.Pause(); !errors.Is(err, tts.ErrNotPlaying) {
		t.Errorf("Pause while idle = %v, want ErrNotPlaying", err)
	}
	if err := engine.Resume(); !errors.Is(err, tts.ErrNotPaused) {
		t.Errorf("Resume while idle = %v, want ErrNotPaused", err)
	}
}

// TestStopDiscardsStaleNotifications verifies a done notification arriving
// after Stop neither resurrects playback nor emits events.
func TestStopDiscardsStaleNotifications(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	engine.Stop()
	if got := engine.State(); got != tts.StateIdle {
		t.Fatalf("state after Stop = %v, want idle", got)
	}

	synth.EmitStarted(1)
	synth.EmitDone(1)
	rec.fence(t, synth)

	select {
	case id := <-rec.started:
		t.Errorf("stale start emitted BlockStarted(%d)", id)
	default:
	}
	select {
	case id := <-rec.completed:
		t.Errorf("stale done emitted BlockCompleted(%d)", id)
	default:
	}
	select {
	case <-rec.finished:
		t.Error("stale done emitted PlaybackCompleted")
	default:
	}
	if got := engine.State(); got != tts.StateIdle {
		t.Errorf("stale done resurrected playback, state = %v", got)
	}
}

// TestJumpWhilePlaying verifies a jump restarts dispatch at the target
// without touching the end boundary.
func TestJumpWhilePlaying(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if err := engine.JumpToBlock(3); err != nil {
		t.Fatalf("JumpToBlock() error: %v", err)
	}

	last, _ := synth.LastSpoken()
	if last.BlockID != 3 {
		t.Fatalf("jump dispatched block %d, want 3", last.BlockID)
	}
	if synth.Stops() == 0 {
		t.Error("jump did not stop the in-flight utterance")
	}

	synth.EmitDone(3)
	rec.waitCompleted(t)
	rec.waitFinished(t)
}

// TestJumpWhilePaused verifies a jump outside playback only moves the
// index; resume then continues from the jump target.
func TestJumpWhilePaused(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if err := engine.Pause(); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	before := len(synth.Spoken())
	if err := engine.JumpToBlock(3); err != nil {
		t.Fatalf("JumpToBlock() error: %v", err)
	}
	if after := len(synth.Spoken()); after != before {
		t.Errorf("jump while paused dispatched %d utterances", after-before)
	}

	if err := engine.Resume(); err != nil {
		t.Fatalf("Resume() error: %v", err)
	}
	last, _ := synth.LastSpoken()
	if last.BlockID != 3 {
		t.Errorf("Resume after jump dispatched block %d, want 3", last.BlockID)
	}
}

// TestJumpToUnknownBlock verifies the jump-specific not-found error.
func TestJumpToUnknownBlock(t *testing.T) {
	engine, _, _ := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if err := engine.JumpToBlock(42); !errors.Is(err, tts.ErrBlockNotFound) {
		t.Errorf("JumpToBlock(42) = %v, want ErrBlockNotFound", err)
	}
	if got := engine.State(); got != tts.StatePlaying {
		t.Errorf("failed jump changed state to %v", got)
	}
}

// TestBlockStartedForwarded verifies started notifications surface for the
// current block only.
func TestBlockStartedForwarded(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	synth.EmitStarted(1)
	if id := rec.waitStarted(t); id != 1 {
		t.Errorf("BlockStarted(%d), want 1", id)
	}

	// A start for a block that is no longer current is dropped.
	synth.EmitStarted(2)
	rec.fence(t, synth)
	select {
	case id := <-rec.started:
		t.Errorf("stale start emitted BlockStarted(%d)", id)
	default:
	}
}

// TestUtteranceErrorForcesIdle verifies any synthesizer error surfaces once
// and ends the session without retry.
func TestUtteranceErrorForcesIdle(t *testing.T) {
	engine, synth, rec := newReadyEngine(t)

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	synth.EmitError(1, 7, "synth exploded")
	err := rec.waitError(t)
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("error = %v, want ErrSynthesisFailed", err)
	}
	if got := engine.State(); got != tts.StateIdle {
		t.Errorf("state after synthesis error = %v, want idle", got)
	}
	if err := engine.Resume(); !errors.Is(err, tts.ErrNotPaused) {
		t.Errorf("Resume after error = %v, want ErrNotPaused", err)
	}

	// No retry: the failed block was dispatched exactly once.
	count := 0
	for _, u := range synth.Spoken() {
		if u.BlockID == 1 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("block 1 dispatched %d times, want 1", count)
	}
}

// TestInitializationFailure verifies a failed startup surfaces via OnError
// and keeps rejecting playback afterwards.
func TestInitializationFailure(t *testing.T) {
	synth := mock.New().FailInitialization("no synthesis backend")
	engine := tts.NewEngine(synth)
	rec := newRecorder(engine)

	if err := engine.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	err := rec.waitError(t)
	if !errors.Is(err, tts.ErrInitializationFailed) {
		t.Errorf("error = %v, want ErrInitializationFailed", err)
	}
	if engine.Ready() {
		t.Error("engine reports ready after failed initialization")
	}
	if len(engine.Catalog()) != 0 {
		t.Error("catalog not empty after failed initialization")
	}
	if err := engine.Play(threeBlocks(), 1); !errors.Is(err, tts.ErrEngineNotReady) {
		t.Errorf("Play after failed init = %v, want ErrEngineNotReady", err)
	}
}

// TestReadyBuildsCatalog verifies the catalog snapshot delivered with the
// ready event.
func TestReadyBuildsCatalog(t *testing.T) {
	engine, _, _ := newReadyEngine(t)

	catalog := engine.Catalog()
	if len(catalog) != len(mock.DefaultVoices) {
		t.Fatalf("catalog has %d entries, want %d", len(catalog), len(mock.DefaultVoices))
	}
	for i := 1; i < len(catalog); i++ {
		if catalog[i-1].LanguageLabel > catalog[i].LanguageLabel {
			t.Errorf("catalog not sorted: %q > %q", catalog[i-1].LanguageLabel, catalog[i].LanguageLabel)
		}
	}
}

// TestSetRateClamps verifies rate clamping and immediate application.
func TestSetRateClamps(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	tests := []struct {
		in   float64
		want float64
	}{
		{9.0, 3.0},
		{0.1, 0.5},
		{1.25, 1.25},
	}

	for _, tt := range tests {
		if got := engine.SetRate(tt.in); got != tt.want {
			t.Errorf("SetRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	rates := synth.Rates()
	if len(rates) == 0 || rates[len(rates)-1] != 1.25 {
		t.Errorf("synthesizer rates = %v, want last 1.25", rates)
	}

	// The current rate is re-applied on every playback start.
	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	rates = synth.Rates()
	if rates[len(rates)-1] != 1.25 {
		t.Errorf("Play did not re-apply rate, rates = %v", rates)
	}
}

// TestRateStepping verifies Increase and Decrease move through the presets
// and reach the synthesizer.
func TestRateStepping(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	if got := engine.IncreaseRate(); got != 1.25 {
		t.Errorf("IncreaseRate() from 1.0 = %v, want 1.25", got)
	}
	if got := engine.DecreaseRate(); got != 1.0 {
		t.Errorf("DecreaseRate() back = %v, want 1.0", got)
	}

	rates := synth.Rates()
	if len(rates) != 2 || rates[0] != 1.25 || rates[1] != 1.0 {
		t.Errorf("synthesizer rates = %v, want [1.25 1]", rates)
	}
}

// TestSetVoiceApplies verifies voice selection reaches the synthesizer.
func TestSetVoiceApplies(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	engine.SetVoice("en-gb-female_1-local")
	ids := synth.VoiceIDs()
	if len(ids) != 1 || ids[0] != "en-gb-female_1-local" {
		t.Errorf("synthesizer voices = %v", ids)
	}
}

// TestDispatchPreprocessesText verifies block text runs through the
// context-aware pipeline before dispatch.
func TestDispatchPreprocessesText(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	engine.SetContext(text.ContextTechnical)
	blocks := []tts.Block{{ID: 1, Text: "the ML model v1.2"}}
	if err := engine.Play(blocks, 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	last, _ := synth.LastSpoken()
	want := "the machine learning model version 1 point 2"
	if last.Text != want {
		t.Errorf("dispatched text = %q, want %q", last.Text, want)
	}
}

// TestDuplicateBlockIDs verifies first-match-wins lookup does not crash on
// a caller error.
func TestDuplicateBlockIDs(t *testing.T) {
	engine, synth, _ := newReadyEngine(t)

	blocks := []tts.Block{
		{ID: 7, Text: "first"},
		{ID: 7, Text: "second"},
	}
	if err := engine.Play(blocks, 7); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	last, _ := synth.LastSpoken()
	if last.Text != "first" {
		t.Errorf("dispatched %q, want the first matching block", last.Text)
	}
}

// TestPlayEmptyBlockList verifies an empty sequence completes immediately.
func TestPlayEmptyBlockList(t *testing.T) {
	engine, _, rec := newReadyEngine(t)

	if err := engine.Play(nil, 1); err != nil {
		t.Fatalf("Play(nil) error: %v", err)
	}
	rec.waitFinished(t)
	if got := engine.State(); got != tts.StateIdle {
		t.Errorf("state = %v, want idle", got)
	}
}

// TestAutoCompletePlaysWholeDocument runs the auto-completing mock through
// all blocks without manual notifications.
func TestAutoCompletePlaysWholeDocument(t *testing.T) {
	synth := mock.New().AutoComplete()
	engine := tts.NewEngine(synth)
	rec := newRecorder(engine)

	if err := engine.Initialize(); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	select {
	case <-rec.ready:
	case <-time.After(waitTimeout):
		t.Fatal("engine never became ready")
	}
	t.Cleanup(func() { _ = engine.Close() })

	if err := engine.Play(threeBlocks(), 1); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	for want := 1; want <= 3; want++ {
		if id := rec.waitCompleted(t); id != want {
			t.Errorf("completed block %d, want %d", id, want)
		}
	}
	rec.waitFinished(t)
}
