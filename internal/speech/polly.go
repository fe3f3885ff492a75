package speech

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/lectorapp/lector/internal/segment"
)

// PollyConfig configures the Polly-backed engine.
type PollyConfig struct {
	Voice         string   // Polly voice id, e.g. "Joanna"
	PlayerCommand string   // external audio player, e.g. "mpv"
	PlayerArgs    []string // extra player arguments
	CacheDir      string   // synthesized audio cache directory
}

// PollyEngine is the real synthesizer wrapper. Each utterance is synthesized
// to MP3 (cached per voice, rate, and text), played through an external
// player process, and paced with Polly word speech marks for word-range
// callbacks.
type PollyEngine struct {
	client *polly.Client
	voice  types.VoiceId
	cache  string
	pl     *player
	logger *slog.Logger

	mu      sync.Mutex
	cb      Callbacks
	state   PlaybackState
	rate    float64
	current Utterance
	active  bool
	gen     int           // bumped on stop; stale synthesis results are dropped
	pacing  chan struct{} // closed to cancel word-range pacing
}

// NewPollyEngine creates the engine using the default AWS credential chain.
func NewPollyEngine(ctx context.Context, cfg PollyConfig, logger *slog.Logger) (*PollyEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not load AWS credentials: %w", err)
	}

	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create audio cache: %w", err)
		}
	}

	voice := cfg.Voice
	if voice == "" {
		voice = "Joanna"
	}

	return &PollyEngine{
		client: polly.NewFromConfig(awsCfg),
		voice:  types.VoiceId(voice),
		cache:  cfg.CacheDir,
		pl:     newPlayer(cfg.PlayerCommand, cfg.PlayerArgs, logger),
		logger: logger,
		rate:   0.5,
	}, nil
}

func (e *PollyEngine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
}

func (e *PollyEngine) SetRate(rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rate = ClampRate(rate)
}

func (e *PollyEngine) Rate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rate
}

func (e *PollyEngine) State() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Speak synthesizes and plays one utterance. Synthesis happens off the
// caller's goroutine; callbacks fire as playback progresses.
func (e *PollyEngine) Speak(u Utterance) {
	e.mu.Lock()
	e.current = u
	e.active = true
	e.state = StatePlaying
	gen := e.gen
	rate := e.rate
	e.mu.Unlock()

	go e.synthesizeAndPlay(u, rate, gen)
}

func (e *PollyEngine) synthesizeAndPlay(u Utterance, rate float64, gen int) {
	ctx := context.Background()

	audioPath, err := e.synthesize(ctx, u.Text, rate)
	if err != nil {
		e.failIfCurrent(u.ID, gen, err)
		return
	}

	marks, err := e.fetchWordMarks(ctx, u.Text, rate)
	if err != nil {
		e.logger.Warn("speech marks unavailable, pacing by word count", "error", err)
		marks = estimatedMarks(u.Text, rate)
	}

	e.mu.Lock()
	if e.gen != gen {
		e.mu.Unlock()
		return // stopped while synthesizing
	}
	pacing := make(chan struct{})
	e.pacing = pacing
	started := e.cb.OnStarted
	e.mu.Unlock()

	err = e.pl.play(audioPath, func(playErr error) {
		close(pacing)
		if playErr != nil {
			e.failIfCurrent(u.ID, gen, playErr)
			return
		}
		e.finishIfCurrent(u.ID, gen)
	})
	if err != nil {
		e.failIfCurrent(u.ID, gen, err)
		return
	}

	if started != nil {
		started(u.ID)
	}

	go e.paceWordMarks(u.ID, gen, marks, pacing)
}

// synthesize produces (or reuses) the cached MP3 for this voice, rate, and
// text.
func (e *PollyEngine) synthesize(ctx context.Context, text string, rate float64) (string, error) {
	path := e.cachePath(text, rate)
	if _, err := os.Stat(path); err == nil {
		e.logger.Debug("audio cache hit", "file", path)
		return path, nil
	}

	ssml := fmt.Sprintf(`<speak><prosody rate="%d%%">%s</prosody></speak>`,
		ratePercent(rate), escapeSSML(text))

	var stream io.ReadCloser
	err := retry.Do(
		func() error {
			out, err := e.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
				Text:         &ssml,
				TextType:     types.TextTypeSsml,
				VoiceId:      e.voice,
				OutputFormat: types.OutputFormatMp3,
			})
			if err != nil {
				return err
			}
			stream = out.AudioStream
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return "", fmt.Errorf("could not synthesize speech: %w", err)
	}
	defer stream.Close()

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// wordMark is one entry of Polly's newline-delimited speech-mark stream.
type wordMark struct {
	TimeMS int    `json:"time"`
	Type   string `json:"type"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// fetchWordMarks requests word timing marks for the plain text, so byte
// offsets map directly onto the utterance. Mark times are scaled to the
// prosody rate the audio was synthesized with.
func (e *PollyEngine) fetchWordMarks(ctx context.Context, text string, rate float64) ([]wordMark, error) {
	var stream io.ReadCloser
	err := retry.Do(
		func() error {
			out, err := e.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
				Text:            &text,
				VoiceId:         e.voice,
				OutputFormat:    types.OutputFormatJson,
				SpeechMarkTypes: []types.SpeechMarkType{types.SpeechMarkTypeWord},
			})
			if err != nil {
				return err
			}
			stream = out.AudioStream
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	scale := 100.0 / float64(ratePercent(rate))

	var marks []wordMark
	sc := bufio.NewScanner(stream)
	for sc.Scan() {
		var m wordMark
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			continue
		}
		if m.Type != "word" {
			continue
		}
		m.TimeMS = int(float64(m.TimeMS) * scale)
		marks = append(marks, m)
	}
	return marks, sc.Err()
}

// estimatedMarks spreads word spans evenly when speech marks are
// unavailable.
func estimatedMarks(text string, rate float64) []wordMark {
	spans := segment.Words(text)
	if len(spans) == 0 {
		return nil
	}
	perWord := int(320.0 * 100.0 / float64(ratePercent(rate)))
	marks := make([]wordMark, 0, len(spans))
	for i, sp := range spans {
		marks = append(marks, wordMark{TimeMS: i * perWord, Type: "word", Start: sp.Start, End: sp.End})
	}
	return marks
}

// paceWordMarks delivers word-range callbacks at mark timestamps until the
// utterance completes or is cancelled.
func (e *PollyEngine) paceWordMarks(id int64, gen int, marks []wordMark, cancel <-chan struct{}) {
	start := time.Now()
	for _, m := range marks {
		delay := time.Duration(m.TimeMS)*time.Millisecond - time.Since(start)
		if delay > 0 {
			select {
			case <-cancel:
				return
			case <-time.After(delay):
			}
		}

		e.mu.Lock()
		stale := e.gen != gen || !e.active || e.current.ID != id
		wordRange := e.cb.OnWordRange
		e.mu.Unlock()
		if stale {
			return
		}
		if wordRange != nil {
			wordRange(id, m.Start, m.End)
		}
	}
}

func (e *PollyEngine) Pause() {
	e.mu.Lock()
	if e.state != StatePlaying {
		e.mu.Unlock()
		return
	}
	e.state = StatePaused
	e.mu.Unlock()
	e.pl.pause()
}

func (e *PollyEngine) Resume() {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return
	}
	e.state = StatePlaying
	e.mu.Unlock()
	e.pl.resume()
}

// Stop cancels the in-flight utterance and synchronously acknowledges it
// with a finish callback.
func (e *PollyEngine) Stop() {
	e.mu.Lock()
	e.gen++
	e.state = StateIdle
	wasActive := e.active
	e.active = false
	id := e.current.ID
	finished := e.cb.OnFinished
	e.mu.Unlock()

	e.pl.stop()

	if wasActive && finished != nil {
		finished(id)
	}
}

func (e *PollyEngine) finishIfCurrent(id int64, gen int) {
	e.mu.Lock()
	if e.gen != gen || !e.active || e.current.ID != id {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.state = StateIdle
	finished := e.cb.OnFinished
	e.mu.Unlock()

	if finished != nil {
		finished(id)
	}
}

func (e *PollyEngine) failIfCurrent(id int64, gen int, err error) {
	e.mu.Lock()
	if e.gen != gen || !e.active || e.current.ID != id {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.state = StateIdle
	onError := e.cb.OnError
	e.mu.Unlock()

	e.logger.Warn("utterance failed", "utterance", id, "error", err)
	if onError != nil {
		onError(id, err)
	}
}

func (e *PollyEngine) cachePath(text string, rate float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", e.voice, ratePercent(rate), text)))
	name := hex.EncodeToString(sum[:8]) + ".mp3"
	if e.cache == "" {
		return filepath.Join(os.TempDir(), name)
	}
	return filepath.Join(e.cache, name)
}

// ratePercent maps the abstract 0..1 rate onto an SSML prosody percentage,
// 50% at the slow end through 200% at the fast end.
func ratePercent(rate float64) int {
	return 50 + int(ClampRate(rate)*150)
}

func escapeSSML(text string) string {
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	).Replace(text)
}
