package service

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lectorapp/lector/internal/domain"
	"github.com/lectorapp/lector/internal/speech"
)

// CoordinatorState is the playback coordinator's state machine state.
type CoordinatorState int

const (
	StateIdle CoordinatorState = iota
	StatePlaying
	StatePaused
	StateLoading
)

func (s CoordinatorState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateLoading:
		return "loading"
	default:
		return "idle"
	}
}

// WordRange is the last word-highlight range reported by the engine,
// as byte offsets into the current sentence.
type WordRange struct {
	Start int
	End   int
}

// Snapshot is the coordinator's externally visible state: a plain versioned
// struct, free of any UI coupling. Version increases on every change.
type Snapshot struct {
	State           CoordinatorState
	BookID          string
	ChapterIndex    int
	SentenceIndex   int
	ChapterCount    int
	Sentence        string
	ChapterProgress float64
	BookProgress    float64
	Highlight       WordRange
	Rate            float64
	Version         uint64
}

// PlaybackCoordinator drives the speech engine one sentence at a time over
// a loaded chapter list: navigation, chapter rollover, and position
// persistence. Methods never return errors; invalid-state calls and
// out-of-range navigation are no-ops. Logically single-threaded: all state
// lives behind one mutex, and engine callbacks are serialized through it.
type PlaybackCoordinator struct {
	engine    speech.Engine
	positions domain.PositionStore
	logger    *slog.Logger

	// utterance is the id of the in-flight utterance. It is bumped before
	// any engine stop so the synchronous stop acknowledgment, and any other
	// stale completion, is dropped by an id check without touching the lock.
	utterSeq  atomic.Int64
	utterance atomic.Int64

	mu            sync.Mutex
	state         CoordinatorState
	bookID        string
	chapters      []*domain.Chapter
	chapterIndex  int
	sentenceIndex int
	highlight     WordRange
	rate          float64
	version       uint64
	subscribers   []func(Snapshot)
}

// NewPlaybackCoordinator creates a coordinator bound to an engine and a
// position store. The engine's callbacks are claimed by the coordinator.
func NewPlaybackCoordinator(engine speech.Engine, positions domain.PositionStore, logger *slog.Logger) *PlaybackCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &PlaybackCoordinator{
		engine:    engine,
		positions: positions,
		logger:    logger,
		state:     StateIdle,
		rate:      engine.Rate(),
	}
	engine.SetCallbacks(speech.Callbacks{
		OnFinished:  c.handleFinished,
		OnWordRange: c.handleWordRange,
		OnError:     c.handleError,
	})
	return c
}

// Subscribe registers an observer notified with a snapshot after every
// externally visible change.
func (c *PlaybackCoordinator) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Snapshot returns the current coordinator state.
func (c *PlaybackCoordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Load resets the coordinator to Idle over a new chapter list (sorted by
// spine index) and restores the persisted position, clamped into the new
// bounds. A book with no chapters resets to (0,0) without consulting
// persistence.
func (c *PlaybackCoordinator) Load(bookID string, chapters []*domain.Chapter) {
	c.invalidateUtterance()
	c.engine.Stop()

	c.mu.Lock()
	c.state = StateIdle
	c.bookID = bookID
	c.chapters = append([]*domain.Chapter(nil), chapters...)
	sort.Slice(c.chapters, func(i, j int) bool {
		return c.chapters[i].SpineIndex < c.chapters[j].SpineIndex
	})
	c.chapterIndex, c.sentenceIndex = 0, 0
	c.highlight = WordRange{}

	if len(c.chapters) > 0 {
		if pos, ok := c.positions.GetPosition(bookID); ok {
			c.chapterIndex, c.sentenceIndex = c.clampLocked(pos.ChapterIndex, pos.SentenceIndex)
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// Play starts or resumes playback. Only meaningful from Idle or Paused with
// a current sentence; resuming from Paused does not re-issue the sentence.
func (c *PlaybackCoordinator) Play() {
	c.mu.Lock()
	sentence, ok := c.currentSentenceLocked()
	if !ok || (c.state != StateIdle && c.state != StatePaused) {
		c.mu.Unlock()
		return
	}

	resuming := c.state == StatePaused
	c.state = StatePlaying
	var u speech.Utterance
	if !resuming {
		u = c.nextUtteranceLocked(sentence)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if resuming {
		c.engine.Resume()
	} else {
		c.engine.Speak(u)
	}
	c.notify(snap)
}

// Pause pauses playback and persists the position. Only from Playing.
func (c *PlaybackCoordinator) Pause() {
	c.mu.Lock()
	if c.state != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.state = StatePaused
	pos := c.positionLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.engine.Pause()
	c.persist(pos)
	c.notify(snap)
}

// Stop halts playback, clears the word highlight, and persists the
// position. Always allowed.
func (c *PlaybackCoordinator) Stop() {
	c.invalidateUtterance()

	c.mu.Lock()
	c.state = StateIdle
	c.highlight = WordRange{}
	pos := c.positionLocked()
	hasBook := c.bookID != ""
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.engine.Stop()
	if hasBook {
		c.persist(pos)
	}
	c.notify(snap)
}

// TogglePlayPause flips between playing and paused. Loading is a no-op.
func (c *PlaybackCoordinator) TogglePlayPause() {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateIdle, StatePaused:
		c.Play()
	case StatePlaying:
		c.Pause()
	}
}

// SetRate forwards the rate to the engine and stores it locally.
func (c *PlaybackCoordinator) SetRate(rate float64) {
	rate = speech.ClampRate(rate)

	c.mu.Lock()
	c.rate = rate
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.engine.SetRate(rate)
	c.notify(snap)
}

// SkipForward advances one sentence, rolling into the next chapter at its
// first sentence, saturating at book end. Persists afterward; when playing,
// the in-flight utterance is stopped and the new sentence re-issued.
func (c *PlaybackCoordinator) SkipForward() {
	c.navigate(func() bool {
		ch := c.chapters[c.chapterIndex]
		switch {
		case c.sentenceIndex+1 < len(ch.Sentences):
			c.sentenceIndex++
		case c.chapterIndex+1 < len(c.chapters):
			c.chapterIndex++
			c.sentenceIndex = 0
		default:
			return false
		}
		return true
	}, true)
}

// SkipBackward moves one sentence back, crossing into the previous
// chapter's last sentence, saturating at book start.
func (c *PlaybackCoordinator) SkipBackward() {
	c.navigate(func() bool {
		switch {
		case c.sentenceIndex > 0:
			c.sentenceIndex--
		case c.chapterIndex > 0:
			c.chapterIndex--
			c.sentenceIndex = len(c.chapters[c.chapterIndex].Sentences) - 1
		default:
			return false
		}
		return true
	}, true)
}

// JumpToChapter moves to the first sentence of chapter i. Out-of-range
// indices are a no-op.
func (c *PlaybackCoordinator) JumpToChapter(i int) {
	c.navigate(func() bool {
		if i < 0 || i >= len(c.chapters) {
			return false
		}
		c.chapterIndex = i
		c.sentenceIndex = 0
		return true
	}, false)
}

// navigate applies a position mutation under the lock, then handles the
// shared re-issue and persistence behavior. move reports whether the
// position changed; persistUnmoved keeps the skip commands writing the
// position at the book boundaries.
func (c *PlaybackCoordinator) navigate(move func() bool, persistUnmoved bool) {
	c.mu.Lock()
	if len(c.chapters) == 0 {
		c.mu.Unlock()
		return
	}
	moved := move()
	if moved {
		c.highlight = WordRange{}
	}
	playing := c.state == StatePlaying
	var u speech.Utterance
	reissue := moved && playing
	if reissue {
		sentence, _ := c.currentSentenceLocked()
		u = c.nextUtteranceLocked(sentence)
	}
	pos := c.positionLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if reissue {
		c.engine.Stop()
		c.engine.Speak(u)
	}
	if moved || persistUnmoved {
		c.persist(pos)
	}
	if moved {
		c.notify(snap)
	}
}

// handleFinished reacts to an utterance completing: advance within the
// chapter, roll to the next chapter (persisting at the roll point), or end
// the book. Stale completions and completions outside Playing are ignored.
func (c *PlaybackCoordinator) handleFinished(id int64) {
	if id != c.utterance.Load() {
		return // stale: an explicit stop or skip already superseded it
	}

	c.mu.Lock()
	if c.state != StatePlaying || c.chapterIndex >= len(c.chapters) {
		c.mu.Unlock()
		return
	}

	var u speech.Utterance
	speak := false
	persist := false

	ch := c.chapters[c.chapterIndex]
	switch {
	case c.sentenceIndex+1 < len(ch.Sentences):
		c.sentenceIndex++
		speak = true
	case c.chapterIndex+1 < len(c.chapters):
		c.chapterIndex++
		c.sentenceIndex = 0
		speak = true
		persist = true
	default:
		// End of book.
		c.state = StateIdle
		c.highlight = WordRange{}
		persist = true
	}

	c.highlight = WordRange{}
	if speak {
		sentence, _ := c.currentSentenceLocked()
		u = c.nextUtteranceLocked(sentence)
	}
	pos := c.positionLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if speak {
		c.engine.Speak(u)
	}
	if persist {
		c.persist(pos)
	}
	c.notify(snap)
}

// handleWordRange stores the highlight range for observers. No transition.
func (c *PlaybackCoordinator) handleWordRange(id int64, start, end int) {
	if id != c.utterance.Load() {
		return
	}

	c.mu.Lock()
	c.highlight = WordRange{Start: start, End: end}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// handleError transitions to Idle. The error detail is logged but not
// retained in the snapshot.
func (c *PlaybackCoordinator) handleError(id int64, err error) {
	if id != c.utterance.Load() {
		return
	}
	c.logger.Warn("speech engine error", "utterance", id, "error", err)

	c.mu.Lock()
	c.state = StateIdle
	c.highlight = WordRange{}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snap)
}

// ChapterProgress is the fraction of the current chapter already passed.
func (c *PlaybackCoordinator) ChapterProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chapterProgressLocked()
}

// BookProgress is the fraction of all sentences in the book already passed.
func (c *PlaybackCoordinator) BookProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bookProgressLocked()
}

// === internal ===

func (c *PlaybackCoordinator) chapterProgressLocked() float64 {
	if c.chapterIndex >= len(c.chapters) {
		return 0
	}
	n := len(c.chapters[c.chapterIndex].Sentences)
	if n == 0 {
		return 0
	}
	return float64(c.sentenceIndex) / float64(n)
}

func (c *PlaybackCoordinator) bookProgressLocked() float64 {
	total := domain.SentenceCount(c.chapters)
	if total == 0 {
		return 0
	}
	passed := c.sentenceIndex
	for i := 0; i < c.chapterIndex && i < len(c.chapters); i++ {
		passed += len(c.chapters[i].Sentences)
	}
	return float64(passed) / float64(total)
}

func (c *PlaybackCoordinator) currentSentenceLocked() (string, bool) {
	if c.chapterIndex >= len(c.chapters) {
		return "", false
	}
	ch := c.chapters[c.chapterIndex]
	if c.sentenceIndex >= len(ch.Sentences) {
		return "", false
	}
	return ch.Sentences[c.sentenceIndex], true
}

// nextUtteranceLocked allocates the next utterance id and marks it current.
func (c *PlaybackCoordinator) nextUtteranceLocked(sentence string) speech.Utterance {
	id := c.utterSeq.Add(1)
	c.utterance.Store(id)
	return speech.Utterance{ID: id, Text: sentence}
}

// invalidateUtterance drops the in-flight utterance so any completion it
// still produces is ignored.
func (c *PlaybackCoordinator) invalidateUtterance() {
	c.utterance.Store(0)
}

func (c *PlaybackCoordinator) clampLocked(chapter, sentence int) (int, int) {
	if chapter < 0 || chapter >= len(c.chapters) {
		return 0, 0
	}
	n := len(c.chapters[chapter].Sentences)
	if sentence < 0 || sentence >= n {
		sentence = 0
	}
	return chapter, sentence
}

func (c *PlaybackCoordinator) positionLocked() domain.ReadingPosition {
	return domain.ReadingPosition{
		BookID:        c.bookID,
		ChapterIndex:  c.chapterIndex,
		SentenceIndex: c.sentenceIndex,
		UpdatedAt:     time.Now(),
	}
}

func (c *PlaybackCoordinator) snapshotLocked() Snapshot {
	c.version++
	sentence, _ := c.currentSentenceLocked()
	return Snapshot{
		State:           c.state,
		BookID:          c.bookID,
		ChapterIndex:    c.chapterIndex,
		SentenceIndex:   c.sentenceIndex,
		ChapterCount:    len(c.chapters),
		Sentence:        sentence,
		ChapterProgress: c.chapterProgressLocked(),
		BookProgress:    c.bookProgressLocked(),
		Highlight:       c.highlight,
		Rate:            c.rate,
		Version:         c.version,
	}
}

// persist saves the position; failures are logged and swallowed so playback
// is never interrupted by the store.
func (c *PlaybackCoordinator) persist(pos domain.ReadingPosition) {
	if pos.BookID == "" {
		return
	}
	if err := c.positions.SavePosition(pos); err != nil {
		c.logger.Warn("failed to persist reading position", "book", pos.BookID, "error", err)
	}
}

func (c *PlaybackCoordinator) notify(snap Snapshot) {
	c.mu.Lock()
	subs := make([]func(Snapshot), len(c.subscribers))
	copy(subs, c.subscribers)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}
