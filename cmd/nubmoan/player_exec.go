package main

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
)

// execPlayer plays sounds through an external command such as paplay or
// aplay. The process is started and not waited on by the caller.
type execPlayer struct {
	command string
	args    []string
	logger  *slog.Logger

	mu      sync.Mutex
	running map[*exec.Cmd]struct{}
	stopped bool
}

func newExecPlayer(command string, args []string, logger *slog.Logger) (*execPlayer, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, fmt.Errorf("sound command %q: %w", command, err)
	}
	return &execPlayer{
		command: command,
		args:    args,
		logger:  logger,
		running: make(map[*exec.Cmd]struct{}),
	}, nil
}

func (p *execPlayer) Play(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return errPlayerClosed
	}

	args := append(append([]string(nil), p.args...), path)
	cmd := exec.Command(p.command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.command, err)
	}
	p.running[cmd] = struct{}{}

	go func() {
		err := cmd.Wait()

		p.mu.Lock()
		delete(p.running, cmd)
		stopped := p.stopped
		p.mu.Unlock()

		if err != nil && !stopped {
			p.logger.Warn("sound command exited with error", "command", p.command, "file", path, "error", err)
		}
	}()

	return nil
}

// Stop kills every sound command that is still running.
func (p *execPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	for cmd := range p.running {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
}
