package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/credential"
)

// credentialPath is replaced in tests.
var credentialPath = config.DefaultCredentialPath

// passwordInput is where login reads the password from.
var passwordInput io.Reader = os.Stdin

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify and save FTP credentials",
		Long: `Connect to the server, log in, and save the host, user, password and local
directory for later mirror runs. The password is stored obfuscated in a file
readable only by the current user.`,
		RunE: runLogin,
	}

	cmd.Flags().String("host", "", "FTP server host, optionally with :port")
	cmd.Flags().String("user", "", "login name (default anonymous)")
	cmd.Flags().String("local-dir", "", "local directory to mirror into")
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Remove saved credentials",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "whoami",
		Short:       "Display the saved server and user",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE:        runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.mustConfig()
	logger := cc.Logger

	s, err := resolveServer(cfg, nil)
	if err != nil {
		return err
	}

	fromStdin, err := cmd.Flags().GetBool("password-stdin")
	if err != nil {
		return err
	}

	if s.User != anonymousUser || fromStdin {
		pw, err := readPassword(passwordInput, fromStdin)
		if err != nil {
			return err
		}

		s.Password = pw
	}

	logger.Info("login started", "host", s.Host, "user", s.User)

	host, user, err := verifyLogin(cmd.Context(), cfg, s, logger)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	creds := &credential.Credentials{
		Host:     host,
		Username: user,
		LocalDir: s.LocalDir,
	}

	if s.Port != config.DefaultPort {
		creds.Port = s.Port
	}

	creds.SetPassword(s.Password)

	if err := credential.Save(credentialPath(), creds); err != nil {
		return err
	}

	logger.Info("login successful", "host", host, "user", user)
	cc.Statusf("Logged in to %s as %s.\n", host, user)

	return nil
}

// readPassword reads one line. Without --password-stdin a prompt is printed
// first; the input is not hidden.
func readPassword(r io.Reader, fromStdin bool) (string, error) {
	if !fromStdin {
		fmt.Fprint(os.Stderr, "Password: ")
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" && errors.Is(err, io.EOF) && fromStdin {
		return "", errors.New("reading password: stdin is empty")
	}

	return line, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	path := credentialPath()

	creds, err := credential.Load(path)
	if err != nil {
		return err
	}

	if creds == nil {
		cc.Statusf("Not logged in.\n")
		return nil
	}

	if err := credential.Remove(path); err != nil {
		return err
	}

	cc.Logger.Info("logout successful", "host", creds.Host, "user", creds.Username)
	cc.Statusf("Logged out of %s.\n", creds.Host)

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	LocalDir string `json:"local_dir,omitempty"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	creds, err := credential.Load(credentialPath())
	if err != nil {
		return err
	}

	if creds == nil {
		return errors.New("not logged in: run 'ftp-mirror login' first")
	}

	out := whoamiOutput{Host: creds.Host, Port: creds.Port, User: creds.Username, LocalDir: creds.LocalDir}
	if out.Port == 0 {
		out.Port = config.DefaultPort
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, out)
	}

	fmt.Fprintf(w, "Host:      %s:%d\n", out.Host, out.Port)
	fmt.Fprintf(w, "User:      %s\n", out.User)

	if out.LocalDir != "" {
		fmt.Fprintf(w, "Local dir: %s\n", out.LocalDir)
	}

	return nil
}
