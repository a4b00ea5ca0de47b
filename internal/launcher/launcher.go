// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/browserbox/browserbox/internal/config"
	"github.com/browserbox/browserbox/internal/core/serverbase"
	"github.com/browserbox/browserbox/internal/issue"
	"github.com/browserbox/browserbox/pkg/types"
)

const (
	// DefaultShutdownTimeout is how long Stop waits after SIGTERM before killing.
	DefaultShutdownTimeout = 10 * time.Second

	listenPollInterval = 100 * time.Millisecond
	outputDrainTimeout = 2 * time.Second
)

// ErrPortUnavailable is returned by Start when the listen address is taken.
var ErrPortUnavailable = errors.New("port unavailable")

type (
	// Config configures a Launcher.
	Config struct {
		// Runtime holds the port and interpreter switches, see config.LoadRuntime.
		Runtime config.Runtime
		// Command is the shell-form launch command, e.g.
		// "gunicorn --bind 0.0.0.0:${PORT} app:app".
		Command string
		// Env is the base environment of the server. Nil means os.Environ().
		// The runtime variables are applied on top.
		Env []string
		// Dir is the working directory of the server. Empty means the current one.
		Dir string
		// Stdout and Stderr receive server output line by line.
		// Nil means os.Stdout and os.Stderr.
		Stdout io.Writer
		Stderr io.Writer
		// ShutdownTimeout bounds the graceful part of Stop.
		ShutdownTimeout time.Duration
		// Logger receives lifecycle messages. Nil means a stderr logger
		// with the "launcher" prefix.
		Logger *log.Logger
	}

	// Launcher runs the production server as a child process and owns its
	// lifecycle. It binds nothing itself and never restarts the server.
	//
	// A Launcher is single-use: once stopped or failed, create a new one.
	Launcher struct {
		*serverbase.Base

		cfg    Config
		logger *log.Logger

		cmd          *exec.Cmd
		exitedCh     chan struct{}
		drainTimeout time.Duration
		waitErr  error
		stopping bool
		mu       sync.Mutex
	}

	// ExitError reports a server that exited on its own with a non-zero status.
	ExitError struct {
		Code  types.ExitCode
		State string
	}
)

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("server exited with code %d (%s)", e.Code, e.State)
}

// New creates a Launcher. Call Start to run the server.
func New(cfg Config) *Launcher {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Runtime.Host == "" {
		cfg.Runtime.Host = config.ListenHost
	}
	if cfg.Runtime.Port == 0 {
		cfg.Runtime.Port = types.DefaultPort
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "launcher"})
	}

	l := &Launcher{
		cfg:          cfg,
		logger:       logger,
		exitedCh:     make(chan struct{}),
		drainTimeout: outputDrainTimeout,
	}
	l.Base = serverbase.NewBase(serverbase.WithTransitionHook(func(from, to serverbase.State) {
		logger.Debug("State changed", "from", from, "to", to)
	}))
	return l
}

// Addr returns the address the server is expected to listen on.
func (l *Launcher) Addr() string {
	return l.cfg.Runtime.Addr()
}

// ShutdownTimeout returns how long Stop waits after SIGTERM.
func (l *Launcher) ShutdownTimeout() time.Duration {
	return l.cfg.ShutdownTimeout
}

// Start checks that the listen address is free, starts the server and
// returns once the process is running. It does not wait for the server to
// accept connections; see WaitListening.
func (l *Launcher) Start(ctx context.Context) error {
	if err := l.TransitionToStarting(ctx); err != nil {
		return err
	}

	if err := checkPortFree(l.Addr()); err != nil {
		err = issue.NewErrorContext().
			WithOperation("bind server port").
			WithResource(l.Addr()).
			WithIssue(issue.PortUnavailableId).
			WithSuggestion("Stop the process using port " + l.cfg.Runtime.Port.String() + " or set PORT to a free port").
			Wrap(err).
			BuildError()
		l.TransitionToFailed(err)
		return err
	}

	env := mergeEnv(l.baseEnv(), l.cfg.Runtime.Environ())
	argv, err := Argv(l.cfg.Command, env)
	if err != nil {
		l.TransitionToFailed(err)
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = l.cfg.Dir
	setProcessGroup(cmd)

	// The server gets the write ends directly so Wait does not depend on
	// every descendant closing its copy of stdout and stderr.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		l.TransitionToFailed(err)
		return err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		l.TransitionToFailed(err)
		return err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		l.TransitionToStopped()
		return errors.New("stopped before the server was started")
	}
	if err := cmd.Start(); err != nil {
		l.mu.Unlock()
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		err = issue.NewErrorContext().
			WithOperation("start server").
			WithResource(argv[0]).
			WithSuggestion("Check that the launch command is installed in the image").
			WithSuggestion("Override it with: browserbox serve --command '<command>'").
			Wrap(err).
			BuildError()
		l.TransitionToFailed(err)
		return err
	}
	l.cmd = cmd
	l.mu.Unlock()
	closeAll(stdoutW, stderrW)

	l.logger.Info("Server started", "pid", cmd.Process.Pid, "addr", l.Addr(), "command", strings.Join(argv, " "))

	var outMu sync.Mutex
	var forwarders sync.WaitGroup
	for _, p := range []struct {
		r *os.File
		w io.Writer
	}{{stdoutR, l.cfg.Stdout}, {stderrR, l.cfg.Stderr}} {
		l.AddGoroutine()
		forwarders.Add(1)
		go func() {
			defer l.DoneGoroutine()
			defer forwarders.Done()
			err := forwardLines(p.r, p.w, &outMu)
			if err != nil && !errors.Is(err, os.ErrClosed) {
				l.logger.Warn("Output forwarding stopped", "error", err)
			}
		}()
	}

	l.AddGoroutine()
	go func() {
		defer l.DoneGoroutine()
		err := cmd.Wait()

		drained := make(chan struct{})
		go func() {
			forwarders.Wait()
			close(drained)
		}()
		timer := time.NewTimer(l.drainTimeout)
		select {
		case <-drained:
		case <-timer.C:
			// A descendant outlived the server and still holds the pipes.
			l.logger.Warn("Server output still open after exit, closing it", "timeout", l.drainTimeout)
			closeAll(stdoutR, stderrR)
			<-drained
		}
		timer.Stop()
		closeAll(stdoutR, stderrR)
		l.exited(err)
	}()

	l.TransitionToRunning()
	return nil
}

// exited records the child's exit and moves to a terminal state.
func (l *Launcher) exited(err error) {
	l.mu.Lock()
	stopping := l.stopping
	l.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		l.logger.Info("Server exited", "code", 0)
	case errors.As(err, &exitErr) && stopping:
		// Terminated by Stop: a graceful shutdown from the orchestrator's view.
		l.logger.Info("Server stopped", "state", exitErr.ProcessState.String())
		err = nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		if code <= 0 {
			code = int(types.ExitFailure)
		}
		err = &ExitError{Code: types.ExitCode(code), State: exitErr.ProcessState.String()}
		l.logger.Error("Server exited", "code", code)
	default:
		l.logger.Error("Server wait failed", "error", err)
	}

	l.mu.Lock()
	l.waitErr = err
	l.mu.Unlock()
	close(l.exitedCh)

	if err != nil {
		l.TransitionToFailed(err)
	} else {
		l.TransitionToStopped()
	}
}

// Wait blocks until the server process exits. It returns nil for exit
// status 0 or a shutdown requested through Stop, and *ExitError otherwise.
func (l *Launcher) Wait() error {
	select {
	case <-l.exitedCh:
	case <-l.Done():
		l.mu.Lock()
		started := l.cmd != nil
		l.mu.Unlock()
		if !started {
			// Failed or stopped before the process ever ran.
			return l.LastError()
		}
		<-l.exitedCh
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waitErr
}

// Stop asks the server to shut down with SIGTERM and kills it when it is
// still running after the shutdown timeout or when ctx ends first.
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.stopping = true
	cmd := l.cmd
	l.mu.Unlock()

	if !l.TransitionToStopping() {
		return nil
	}
	if cmd == nil {
		// Start has not launched the process and now never will.
		return nil
	}

	l.logger.Info("Stopping server", "pid", cmd.Process.Pid, "timeout", l.cfg.ShutdownTimeout)
	if err := signalGroup(cmd.Process, syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		l.logger.Warn("SIGTERM failed, killing", "error", err)
		_ = signalGroup(cmd.Process, syscall.SIGKILL)
	}

	timer := time.NewTimer(l.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-l.exitedCh:
	case <-timer.C:
		l.logger.Warn("Shutdown timeout exceeded, killing server")
		_ = signalGroup(cmd.Process, syscall.SIGKILL)
		<-l.exitedCh
	case <-ctx.Done():
		_ = signalGroup(cmd.Process, syscall.SIGKILL)
		<-l.exitedCh
	}

	l.WaitForShutdown()
	return nil
}

// WaitListening polls until the server accepts TCP connections on its port,
// the server exits, or ctx ends.
func (l *Launcher) WaitListening(ctx context.Context) error {
	addr := dialAddr(l.cfg.Runtime)
	ticker := time.NewTicker(listenPollInterval)
	defer ticker.Stop()

	for {
		conn, err := net.DialTimeout("tcp", addr, listenPollInterval)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", addr, ctx.Err())
		case <-l.Done():
			if err := l.LastError(); err != nil {
				return fmt.Errorf("server exited before listening on %s: %w", addr, err)
			}
			return fmt.Errorf("server exited before listening on %s", addr)
		case <-ticker.C:
		}
	}
}

func (l *Launcher) baseEnv() []string {
	if l.cfg.Env != nil {
		return l.cfg.Env
	}
	return os.Environ()
}

// checkPortFree binds addr once and releases it. There is no fallback to
// another port.
func checkPortFree(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPortUnavailable, err)
	}
	return ln.Close()
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// dialAddr is the address to probe for a server bound to rt.Host.
func dialAddr(rt config.Runtime) string {
	host := rt.Host
	if host == "" || host == config.ListenHost || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, rt.Port.String())
}

// mergeEnv applies overrides on top of base. Order of first appearance is
// kept and the last value for a key wins.
func mergeEnv(base []string, overrides ...[]string) []string {
	index := make(map[string]int)
	var out []string
	add := func(kv string) {
		key, _, _ := strings.Cut(kv, "=")
		if i, ok := index[key]; ok {
			out[i] = kv
			return
		}
		index[key] = len(out)
		out = append(out, kv)
	}
	for _, kv := range base {
		add(kv)
	}
	for _, list := range overrides {
		for _, kv := range list {
			add(kv)
		}
	}
	return out
}
