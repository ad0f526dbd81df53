// Package testutil provides shared environment helpers for the E2E tests,
// which drive the built binary against a live FTP server. It depends only on
// stdlib so packages outside internal/ can use it.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables read by the E2E suite.
const (
	EnvTestHost     = "FTP_MIRROR_TEST_HOST"
	EnvTestUser     = "FTP_MIRROR_TEST_USER"
	EnvTestPassword = "FTP_MIRROR_TEST_PASSWORD"
	EnvTestRoot     = "FTP_MIRROR_TEST_REMOTE_ROOT"
	EnvAllowedHosts = "FTP_MIRROR_ALLOWED_TEST_HOSTS"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at envPath. A missing
// file is not an error (CI sets env vars directly). Variables already set
// take precedence over the file.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ServerFromEnv returns the test server settings. The host must be listed in
// FTP_MIRROR_ALLOWED_TEST_HOSTS so a stray variable never points the suite
// at a production server; anything else exits the process.
func ServerFromEnv() (host, user, password, remoteRoot string) {
	host = os.Getenv(EnvTestHost)
	if host == "" {
		fatalf("%s not set", EnvTestHost)
	}

	allowed := os.Getenv(EnvAllowedHosts)
	if allowed == "" {
		fatalf("%s not set (example: %s=ftp.test.internal)", EnvAllowedHosts, EnvAllowedHosts)
	}

	if !inList(allowed, host) {
		fatalf("%s=%q is not in %s=%q", EnvTestHost, host, EnvAllowedHosts, allowed)
	}

	return host, os.Getenv(EnvTestUser), os.Getenv(EnvTestPassword), os.Getenv(EnvTestRoot)
}

func inList(list, item string) bool {
	for _, a := range strings.Split(list, ",") {
		if strings.TrimSpace(a) == item {
			return true
		}
	}

	return false
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns fallback if no root is found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FATAL: "+format+"\n", args...)
	os.Exit(1)
}
