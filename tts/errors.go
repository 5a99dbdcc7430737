package tts

import "errors"

// Common errors for the speech playback engine.
var (
	// ErrEngineNotReady is returned when playback is requested before the
	// synthesizer has reported itself ready, or after initialization failed.
	ErrEngineNotReady = errors.New("speech engine is not ready")

	// ErrBlockNotFound is returned by JumpToBlock when no block carries the
	// requested id. Start and end resolution never return it; they fall back
	// to the first and last block instead.
	ErrBlockNotFound = errors.New("block not found")

	// ErrNotPlaying is returned when Pause is called outside of playback.
	ErrNotPlaying = errors.New("playback is not active")

	// ErrNotPaused is returned when Resume is called without a paused session.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrAlreadyInitialized is returned when Initialize is called twice.
	ErrAlreadyInitialized = errors.New("engine already initialized")

	// ErrSynthesisFailed wraps error notifications from the synthesizer.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrInitializationFailed wraps a failed synthesizer startup.
	ErrInitializationFailed = errors.New("speech engine initialization failed")
)
