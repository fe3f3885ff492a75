package speech

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
)

// player runs an external audio player process for one file at a time.
// Pause and resume are delivered as SIGSTOP/SIGCONT to the process.
type player struct {
	command string
	args    []string
	logger  *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	gen    int // bumped on stop so a killed process's exit is not reported
	paused bool
}

func newPlayer(command string, args []string, logger *slog.Logger) *player {
	if logger == nil {
		logger = slog.Default()
	}
	return &player{command: command, args: args, logger: logger}
}

// play starts the player on path. onDone is called once from a background
// goroutine when the process exits on its own; it is not called for
// processes killed by stop.
func (p *player) play(path string, onDone func(err error)) error {
	if _, err := exec.LookPath(p.command); err != nil {
		return fmt.Errorf("player command not found: %w", err)
	}

	args := append(append([]string{}, p.args...), path)
	cmd := exec.Command(p.command, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cmd = cmd
	p.paused = false
	gen := p.gen
	p.mu.Unlock()

	p.logger.Debug("audio player started", "command", p.command, "file", path)

	go func() {
		err := cmd.Wait()

		p.mu.Lock()
		stale := p.gen != gen
		if !stale {
			p.cmd = nil
		}
		p.mu.Unlock()

		if !stale {
			onDone(err)
		}
	}()

	return nil
}

func (p *player) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.paused || p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		p.logger.Warn("failed to pause player", "error", err)
		return
	}
	p.paused = true
}

func (p *player) resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || !p.paused || p.cmd.Process == nil {
		return
	}
	if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		p.logger.Warn("failed to resume player", "error", err)
		return
	}
	p.paused = false
}

// stop kills the in-flight process, if any. The exit of a killed process is
// never reported through onDone.
func (p *player) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	if p.paused {
		// A stopped process cannot die; wake it before killing.
		p.cmd.Process.Signal(syscall.SIGCONT)
		p.paused = false
	}
	if err := p.cmd.Process.Kill(); err != nil {
		p.logger.Debug("failed to kill player process", "error", err)
	}
	p.cmd = nil
}
