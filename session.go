package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/credential"
	"github.com/tonimelisma/ftp-mirror/internal/ftpclient"
	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

const (
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

var errNoHost = errors.New("no server configured: pass --host, set [server] host, or run 'ftp-mirror login'")

// dialFTP opens control connections. Tests replace it with a fake server.
var dialFTP = func(cfg *config.Resolved) ftpclient.DialFunc {
	return ftpclient.NewDialer(cfg.DialTimeout(), cfg.Network.DisableEPSV)
}

// serverSettings is everything needed to reach and log in to the server.
type serverSettings struct {
	Host       string
	Port       int
	User       string
	Password   string
	LocalDir   string
	RemoteRoot string
}

// resolveServer fills the settings from the resolved config, falling back to
// the saved credentials. The saved password is only used for the host and
// user it was saved with.
func resolveServer(cfg *config.Resolved, creds *credential.Credentials) (serverSettings, error) {
	s := serverSettings{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		User:       cfg.Server.Username,
		LocalDir:   cfg.Mirror.LocalDir,
		RemoteRoot: cfg.Server.RemoteRoot,
	}

	if creds != nil {
		if s.Host == "" {
			s.Host = creds.Host
			if creds.Port != 0 {
				s.Port = creds.Port
			}
		}

		if s.User == "" && s.Host == creds.Host {
			s.User = creds.Username
		}

		if s.LocalDir == "" {
			s.LocalDir = creds.LocalDir
		}

		if s.Host == creds.Host && s.User == creds.Username {
			pw, err := creds.PlainPassword()
			if err != nil {
				return s, fmt.Errorf("reading saved password: %w", err)
			}

			s.Password = pw
		}
	}

	if s.Host == "" {
		return s, errNoHost
	}

	if s.User == "" {
		s.User = anonymousUser
	}

	if s.User == anonymousUser && s.Password == "" {
		s.Password = anonymousPassword
	}

	return s, nil
}

// newTransport builds the FTP client for one command invocation.
func newTransport(ctx context.Context, cfg *config.Resolved, port int, logger *slog.Logger) (*ftpclient.Client, error) {
	limit, err := cfg.BandwidthRate()
	if err != nil {
		return nil, err
	}

	return ftpclient.New(ctx, ftpclient.Options{
		Port:    port,
		Dial:    dialFTP(cfg),
		Limiter: ftpclient.NewBandwidthLimiter(limit, logger),
		Logger:  logger,
	}), nil
}

// verifyLogin connects and logs in without mirroring. It returns the host and
// user the session authenticated as.
func verifyLogin(ctx context.Context, cfg *config.Resolved, s serverSettings, logger *slog.Logger) (host, user string, err error) {
	transport, err := newTransport(ctx, cfg, s.Port, logger)
	if err != nil {
		return "", "", err
	}

	localRoot := s.LocalDir
	if localRoot == "" {
		localRoot = os.TempDir()
	}

	engine, err := mirror.NewEngine(transport, &mirror.Config{LocalRoot: localRoot, Logger: logger})
	if err != nil {
		transport.Close()
		return "", "", err
	}
	defer engine.Close()

	if err := engine.Authenticate(s.Host, s.User, s.Password); err != nil {
		return "", "", err
	}

	if err := engine.Run(ctx); err != nil {
		return "", "", err
	}

	if engine.State() != mirror.StateAuthenticated {
		return "", "", fmt.Errorf("login ended in state %s", engine.State())
	}

	return engine.CurrentHost(), engine.CurrentUser(), nil
}
