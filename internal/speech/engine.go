// Package speech defines the abstract speech-engine contract consumed by
// the playback coordinator, plus its two implementations: the Polly-backed
// synthesizer and a manually driven engine for deterministic tests.
package speech

// PlaybackState is the engine-reported playback state.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StatePlaying
	StatePaused
)

func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "idle"
	}
}

// Utterance is one unit of text (one sentence) submitted for synthesis.
type Utterance struct {
	ID   int64
	Text string
}

// Callbacks are the engine's completion notifications. Nil fields are not
// invoked. For a given utterance they arrive in the order started, zero or
// more word ranges, then exactly one finished or error.
type Callbacks struct {
	OnStarted   func(utteranceID int64)
	OnFinished  func(utteranceID int64)
	OnWordRange func(utteranceID int64, start, end int)
	OnError     func(utteranceID int64, err error)
}

// Engine is the abstract speech engine. At most one utterance is in flight:
// Speak is never called again before the previous utterance completes or an
// explicit Stop. Stop acts as synchronous cancellation and still produces a
// finish notification for an in-flight utterance. Pause and Resume are
// idempotent.
type Engine interface {
	Speak(u Utterance)
	Pause()
	Resume()
	Stop()
	SetRate(rate float64)
	Rate() float64
	State() PlaybackState
	SetCallbacks(cb Callbacks)
}

// ClampRate bounds a speech rate to [0, 1].
func ClampRate(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
