package speech

import "sync"

// ManualEngine is the deterministic test engine. It performs no synthesis;
// tests decide exactly when callbacks fire via FinishCurrent, EmitWordRange,
// and FailCurrent. Every command is recorded for inspection.
type ManualEngine struct {
	mu sync.Mutex

	cb      Callbacks
	state   PlaybackState
	rate    float64
	current Utterance
	active  bool

	Spoken   []Utterance // every utterance passed to Speak, in order
	Commands []string    // "speak", "pause", "resume", "stop", "rate"
}

// NewManualEngine creates a manual engine with the default rate.
func NewManualEngine() *ManualEngine {
	return &ManualEngine{rate: 0.5}
}

func (e *ManualEngine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
}

func (e *ManualEngine) Speak(u Utterance) {
	e.mu.Lock()
	e.current = u
	e.active = true
	e.state = StatePlaying
	e.Spoken = append(e.Spoken, u)
	e.Commands = append(e.Commands, "speak")
	started := e.cb.OnStarted
	e.mu.Unlock()

	if started != nil {
		started(u.ID)
	}
}

func (e *ManualEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePlaying {
		e.state = StatePaused
	}
	e.Commands = append(e.Commands, "pause")
}

func (e *ManualEngine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StatePaused {
		e.state = StatePlaying
	}
	e.Commands = append(e.Commands, "resume")
}

// Stop cancels the in-flight utterance and synchronously acknowledges it
// with a finish callback, matching the engine contract.
func (e *ManualEngine) Stop() {
	e.mu.Lock()
	e.Commands = append(e.Commands, "stop")
	e.state = StateIdle
	wasActive := e.active
	e.active = false
	id := e.current.ID
	finished := e.cb.OnFinished
	e.mu.Unlock()

	if wasActive && finished != nil {
		finished(id)
	}
}

func (e *ManualEngine) SetRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = ClampRate(rate)
	e.Commands = append(e.Commands, "rate")
}

func (e *ManualEngine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *ManualEngine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Current returns the in-flight utterance and whether one is active.
func (e *ManualEngine) Current() (Utterance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current, e.active
}

// FinishCurrent fires the finished callback for the in-flight utterance.
func (e *ManualEngine) FinishCurrent() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.state = StateIdle
	id := e.current.ID
	finished := e.cb.OnFinished
	e.mu.Unlock()

	if finished != nil {
		finished(id)
	}
}

// EmitWordRange fires a word-range callback for the in-flight utterance.
func (e *ManualEngine) EmitWordRange(start, end int) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	id := e.current.ID
	wordRange := e.cb.OnWordRange
	e.mu.Unlock()

	if wordRange != nil {
		wordRange(id, start, end)
	}
}

// FailCurrent fires the error callback for the in-flight utterance.
func (e *ManualEngine) FailCurrent(err error) {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.state = StateIdle
	id := e.current.ID
	onError := e.cb.OnError
	e.mu.Unlock()

	if onError != nil {
		onError(id, err)
	}
}
