package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/solveiti/trgscout/internal/types"
)

// establishTimeout bounds how long Establish waits for the loopback SOCKS
// port to accept connections (spec §4.2: "poll until the loopback port
// accepts TCP connections (up to 10s) or declare failed").
const establishTimeout = 10 * time.Second

// probeTimeout bounds the pre-use health probe (spec §4.2: "a probe
// CONNECT / to the loopback port must succeed within 2s").
const probeTimeout = 2 * time.Second

// pollInterval is how often Establish retries the loopback dial.
const pollInterval = 200 * time.Millisecond

// Supervisor is C4. It owns at most one live SSH child process at a time
// and tracks every process it has ever spawned so CloseAll can guarantee
// none survive, even ones left over from a failed rotation.
type Supervisor struct {
	mu      sync.Mutex
	entries []entry
	nextIdx int
	current *types.ProxyEndpoint
	cmd     *exec.Cmd
	spawned []*exec.Cmd
}

// New builds a Supervisor over the entries loaded from a tunnel config file.
func New(entries []entry) *Supervisor {
	return &Supervisor{entries: entries}
}

// Establish spawns the SSH -D process for the named entry and waits for its
// loopback SOCKS port to come up.
func (s *Supervisor) Establish(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, idx, err := s.findEntry(name)
	if err != nil {
		return err
	}

	if err := validateKeyFile(e.SSHKeyPath); err != nil {
		return fmt.Errorf("tunnel %s: %w", name, err)
	}

	cmd, err := spawnSSH(ctx, e)
	if err != nil {
		return fmt.Errorf("tunnel %s: spawning ssh: %w", name, err)
	}
	s.spawned = append(s.spawned, cmd)

	if err := waitForPort(ctx, e.LocalPort, establishTimeout); err != nil {
		_ = killProcess(cmd)
		return fmt.Errorf("tunnel %s: %w", name, err)
	}

	s.cmd = cmd
	s.nextIdx = (idx + 1) % len(s.entries)
	s.current = &types.ProxyEndpoint{
		Name:          e.Name,
		LocalPort:     e.LocalPort,
		RemoteSSHHost: e.RemoteSSHHost,
		RemoteSSHPort: e.RemoteSSHPort,
		SSHUser:       e.SSHUser,
		SSHKeyPath:    e.SSHKeyPath,
		Status:        types.ProxyUp,
	}

	slog.Info("tunnel established",
		"component", "tunnel", "name", e.Name, "local_port", e.LocalPort)
	return nil
}

// Current returns the in-use endpoint if it is still healthy, or nil.
func (s *Supervisor) Current() *types.ProxyEndpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	if err := probe(s.current.LocalPort, probeTimeout); err != nil {
		s.current.Status = types.ProxyFailed
		return nil
	}
	return s.current
}

// Rotate closes the current tunnel and establishes the next entry in
// round-robin order.
func (s *Supervisor) Rotate(ctx context.Context) error {
	s.mu.Lock()
	name := ""
	if len(s.entries) > 0 {
		name = s.entries[s.nextIdx].Name
	}
	cur := s.cmd
	s.cmd = nil
	s.current = nil
	s.mu.Unlock()

	if cur != nil {
		_ = killProcess(cur)
	}

	if name == "" {
		return fmt.Errorf("tunnel: no entries configured to rotate into")
	}

	slog.Warn("rotating tunnel", "component", "tunnel", "next", name)
	return s.Establish(ctx, name)
}

// CloseAll terminates every SSH process this supervisor has ever spawned.
func (s *Supervisor) CloseAll() error {
	s.mu.Lock()
	procs := s.spawned
	s.spawned = nil
	s.cmd = nil
	s.current = nil
	s.mu.Unlock()

	var firstErr error
	for _, p := range procs {
		if err := killProcess(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Supervisor) findEntry(name string) (entry, int, error) {
	for i, e := range s.entries {
		if e.Name == name {
			return e, i, nil
		}
	}
	return entry{}, 0, fmt.Errorf("tunnel %q not found in config", name)
}

// validateKeyFile checks that path parses as a private key understood by
// golang.org/x/crypto/ssh before we hand it to the system ssh binary.
func validateKeyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading ssh key: %w", err)
	}
	if _, err := ssh.ParsePrivateKey(data); err != nil {
		return fmt.Errorf("parsing ssh key: %w", err)
	}
	return nil
}

// spawnSSH starts an `ssh -D <port>` dynamic forward as a background child
// process: it returns once ssh has started, without waiting for it to exit.
// The child is not placed in its own session or process group.
func spawnSSH(ctx context.Context, e entry) (*exec.Cmd, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", e.LocalPort)
	args := []string{
		"-D", addr,
		"-N",
		"-o", "StrictHostKeyChecking=accept-new",
		"-o", "ExitOnForwardFailure=yes",
		"-o", "ServerAliveInterval=15",
		"-p", fmt.Sprintf("%d", e.RemoteSSHPort),
		"-i", e.SSHKeyPath,
		fmt.Sprintf("%s@%s", e.SSHUser, e.RemoteSSHHost),
	}

	cmd := exec.Command("ssh", args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func waitForPort(ctx context.Context, port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := probe(port, pollInterval); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("local port %d did not come up within %s", port, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func probe(port int, timeout time.Duration) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

func killProcess(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil {
		return err
	}
	_ = cmd.Wait()
	return nil
}
