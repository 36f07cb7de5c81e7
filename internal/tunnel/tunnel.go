// Package tunnel forwards a local TCP port to a database on a remote private
// network through an SSH bastion.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gustycube/quad9-domains/internal/config"
	"github.com/gustycube/quad9-domains/internal/logging"
	"github.com/gustycube/quad9-domains/internal/types"
)

// Options controls how a session is established.
type Options struct {
	SSHPort    int
	LocalHost  string
	LocalPort  int // 0 binds an ephemeral port
	RemotePort int
	Timeout    time.Duration
	// KnownHosts is an OpenSSH known_hosts file. Empty disables host key
	// verification.
	KnownHosts string
}

// OptionsFrom maps the runtime config onto tunnel options.
func OptionsFrom(c *config.Config) Options {
	return Options{
		SSHPort:    c.SSHPort,
		LocalHost:  c.LocalHost,
		LocalPort:  c.LocalPort,
		RemotePort: c.RemotePort,
		Timeout:    time.Duration(c.SSHTimeoutSec) * time.Second,
		KnownHosts: c.KnownHosts,
	}
}

// Session is one active tunnel. It must be closed by the caller.
type Session struct {
	endpoint string
	remote   string
	client   *ssh.Client
	listener net.Listener
	log      *logging.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// Open authenticates against ep.PublicAddr and starts forwarding
// opts.LocalHost:opts.LocalPort to ep.PrivateAddr:opts.RemotePort. Every
// failure is returned as a *types.TunnelError.
func Open(ctx context.Context, ep config.Endpoint, opts Options, log *logging.Logger) (*Session, error) {
	fail := func(err error) (*Session, error) {
		return nil, &types.TunnelError{Endpoint: ep.String(), Err: err}
	}

	hostKey, err := hostKeyCallback(opts.KnownHosts)
	if err != nil {
		return fail(err)
	}

	addr := sshAddr(ep.PublicAddr, opts.SSHPort)
	password := ep.Password
	cfg := &ssh.ClientConfig{
		User: ep.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         opts.Timeout,
	}

	client, err := dial(ctx, addr, cfg)
	if err != nil {
		return fail(err)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(opts.LocalHost, strconv.Itoa(opts.LocalPort)))
	if err != nil {
		_ = client.Close()
		return fail(fmt.Errorf("bind local port: %w", err))
	}

	s := &Session{
		endpoint: ep.String(),
		remote:   net.JoinHostPort(ep.PrivateAddr, strconv.Itoa(opts.RemotePort)),
		client:   client,
		listener: ln,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()

	log.Infow("SSH-tunneled", "endpoint", s.endpoint, "local", ln.Addr().String(), "remote", s.remote)
	return s, nil
}

func dial(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	d := net.Dialer{Timeout: cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if cfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func sshAddr(public string, port int) string {
	if _, _, err := net.SplitHostPort(public); err == nil {
		return public
	}
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(public, strconv.Itoa(port))
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known_hosts: %w", err)
	}
	return cb, nil
}

// LocalAddr returns the bound local address, host:port.
func (s *Session) LocalAddr() string {
	return s.listener.Addr().String()
}

func (s *Session) serve() {
	defer s.wg.Done()
	for {
		local, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warnw("tunnel accept stopped", "endpoint", s.endpoint, "err", err)
			}
			return
		}
		if !s.track(local) {
			_ = local.Close()
			return
		}
		s.wg.Add(1)
		go s.forward(local)
	}
}

func (s *Session) forward(local net.Conn) {
	defer s.wg.Done()
	defer s.untrack(local)

	remote, err := s.client.Dial("tcp", s.remote)
	if err != nil {
		s.log.Warnw("tunnel remote dial failed", "endpoint", s.endpoint, "remote", s.remote, "err", err)
		_ = local.Close()
		return
	}
	if !s.track(remote) {
		_ = remote.Close()
		_ = local.Close()
		return
	}
	defer s.untrack(remote)

	errCh := make(chan error, 2)
	go func() {
		_, e := io.Copy(remote, local) // local -> remote
		if cw, ok := remote.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		}
		errCh <- e
	}()
	go func() {
		_, e := io.Copy(local, remote) // remote -> local
		if tcp, ok := local.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
		errCh <- e
	}()
	<-errCh
	<-errCh
	_ = local.Close()
	_ = remote.Close()
}

func (s *Session) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Session) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Close stops the listener, drops forwarded connections and closes the SSH
// client. It is safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		conns := make([]net.Conn, 0, len(s.conns))
		for c := range s.conns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		err = s.listener.Close()
		for _, c := range conns {
			_ = c.Close()
		}
		if cerr := s.client.Close(); cerr != nil && err == nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
		s.wg.Wait()
		s.log.Infow("tunnel stopped", "endpoint", s.endpoint)
	})
	return err
}
