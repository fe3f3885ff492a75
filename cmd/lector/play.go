package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectorapp/lector/internal/adapter"
	"github.com/lectorapp/lector/internal/service"
	"github.com/lectorapp/lector/internal/speech"
)

var playCmd = &cobra.Command{
	Use:   "play <book>",
	Short: "Read a book aloud from where you left off",
	Long: `Play starts speech playback at the saved reading position and
accepts commands on stdin:

  <enter>    toggle play/pause
  n          next sentence
  b          previous sentence
  j <n>      jump to chapter n (or a fuzzy chapter title)
  r <rate>   set speech rate (0..1)
  s          stop (position is saved)
  q          quit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveBook(args[0])
		if err != nil {
			return err
		}
		chapters, err := a.library.Chapters(id)
		if err != nil {
			return err
		}

		voice := a.cfg.Speech.Voice
		if playVoice != "" {
			voice = playVoice
		}
		rate := a.cfg.Speech.Rate
		if cmd.Flags().Changed("rate") {
			rate = playRate
		}

		engine, err := speech.NewPollyEngine(context.Background(), speech.PollyConfig{
			Voice:         voice,
			PlayerCommand: a.cfg.Player.Command,
			PlayerArgs:    a.cfg.Player.Args,
			CacheDir:      a.cfg.Speech.CacheDir,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create speech engine: %w", err)
		}

		coord := service.NewPlaybackCoordinator(engine, a.store, a.logger)
		coord.SetRate(rate)
		coord.Subscribe(printSnapshot)
		coord.Load(id, chapters)
		coord.Play()

		// Config edits take effect mid-session for the rate.
		adapter.WatchConfig(func(cfg *adapter.Config) {
			a.logger.Info("config reloaded", "rate", cfg.Speech.Rate)
			coord.SetRate(cfg.Speech.Rate)
		})

		return commandLoop(coord, a)
	},
}

var (
	playRate  float64
	playVoice string
)

func init() {
	playCmd.Flags().Float64Var(&playRate, "rate", 0.5, "speech rate (0..1)")
	playCmd.Flags().StringVar(&playVoice, "voice", "", "Polly voice id (overrides config)")
}

// commandLoop reads single-letter commands from stdin until quit or EOF.
func commandLoop(coord *service.PlaybackCoordinator, a *app) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		cmd, arg := line, ""
		if i := strings.IndexByte(line, ' '); i >= 0 {
			cmd, arg = line[:i], strings.TrimSpace(line[i+1:])
		}

		switch cmd {
		case "", "p":
			coord.TogglePlayPause()
		case "n":
			coord.SkipForward()
		case "b":
			coord.SkipBackward()
		case "j":
			jump(coord, a, arg)
		case "r":
			if rate, err := strconv.ParseFloat(arg, 64); err == nil {
				coord.SetRate(rate)
			} else {
				fmt.Println("usage: r <rate 0..1>")
			}
		case "s":
			coord.Stop()
		case "q":
			coord.Stop()
			return nil
		default:
			fmt.Println("commands: <enter> n b j s r q")
		}
	}
	coord.Stop()
	return scanner.Err()
}

// jump accepts a chapter index or a fuzzy chapter title.
func jump(coord *service.PlaybackCoordinator, a *app, arg string) {
	if arg == "" {
		fmt.Println("usage: j <chapter number or title>")
		return
	}
	if n, err := strconv.Atoi(arg); err == nil {
		coord.JumpToChapter(n)
		return
	}
	snap := coord.Snapshot()
	ch, err := a.search.FindChapter(snap.BookID, arg)
	if err != nil {
		fmt.Println(err)
		return
	}
	coord.JumpToChapter(ch.SpineIndex)
}

func printSnapshot(s service.Snapshot) {
	switch s.State {
	case service.StatePlaying:
		fmt.Printf("[%s %d:%d %3.0f%%] %s\n",
			s.State, s.ChapterIndex, s.SentenceIndex, s.BookProgress*100, s.Sentence)
	default:
		fmt.Printf("[%s %d:%d %3.0f%%]\n",
			s.State, s.ChapterIndex, s.SentenceIndex, s.BookProgress*100)
	}
}
