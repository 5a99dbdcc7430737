package tts

import "readaloud/tts/voices"

// Block is the smallest addressable unit of document content. Ordering is
// the slice order supplied by the caller; ids need not be contiguous or
// sorted. Lookup is by value equality and the first match wins, so
// duplicate ids are a caller error the engine tolerates but cannot repair.
type Block struct {
	ID   int
	Text string
}

// Utterance is one synthesis request. BlockID doubles as the correlation id
// echoed back in utterance notifications. Flush asks the synthesizer to
// discard any pending utterance before speaking.
type Utterance struct {
	Text    string
	BlockID int
	Flush   bool
}

// NotificationKind discriminates synthesizer notifications.
type NotificationKind int

const (
	// NoteReady reports successful initialization and carries the raw
	// voice descriptors. Fired once.
	NoteReady NotificationKind = iota
	// NoteInitFailed reports failed initialization. Fired once.
	NoteInitFailed
	// NoteUtteranceStarted reports that audio for an utterance began.
	NoteUtteranceStarted
	// NoteUtteranceDone reports that an utterance finished playing.
	NoteUtteranceDone
	// NoteUtteranceError reports a synthesis failure for an utterance.
	NoteUtteranceError
)

// Notification is an asynchronous event from the synthesizer. Notifications
// arrive on the synthesizer's own goroutines and are funneled through a
// single engine-owned consumer, never handled concurrently.
type Notification struct {
	Kind    NotificationKind
	Voices  []voices.Descriptor // NoteReady only
	BlockID int                 // utterance notifications, correlation id
	Code    int                 // NoteUtteranceError only
	Message string              // NoteInitFailed and NoteUtteranceError
}

// Synthesizer is the contract the playback engine requires from an external
// speech-synthesis engine.
type Synthesizer interface {
	// Initialize begins asynchronous startup. The outcome arrives on
	// Notifications as NoteReady or NoteInitFailed.
	Initialize() error

	// Speak submits an utterance, fire-and-forget.
	Speak(u Utterance)

	// SetVoice selects the voice for subsequent utterances.
	SetVoice(id string)

	// SetRate sets the speech rate multiplier for subsequent utterances.
	SetRate(rate float64)

	// Stop cancels the current utterance, best effort.
	Stop()

	// Notifications returns the event channel. It is closed by Shutdown.
	Notifications() <-chan Notification

	// Shutdown releases engine resources and closes Notifications.
	Shutdown() error
}
