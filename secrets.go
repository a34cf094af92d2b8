package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// Secret lookup is tiered: OS keyring first, environment second. Keyring
// failures of any kind (locked, missing backend, no entry) fall through to
// the environment rather than propagating. A third tier, promptForSecret,
// only runs interactively at startup.

// Indirection over the keyring so tests can stub the platform store.
var (
	keyringGet = keyring.Get
	keyringSet = keyring.Set
)

// sanitizeKeyForEnv converts a credential reference key into an environment
// variable suffix: runs of non-alphanumeric characters collapse to a single
// underscore, leading/trailing underscores are stripped, and the result is
// upper-cased. "prusalink:mk4-office" becomes "PRUSALINK_MK4_OFFICE".
func sanitizeKeyForEnv(key string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range key {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if isAlnum {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		} else {
			pendingSep = true
		}
	}
	return strings.ToUpper(b.String())
}

// envVarForKey names the environment fallback variable for a credential key.
func envVarForKey(key string) string {
	return EnvSecretPrefix + sanitizeKeyForEnv(key)
}

// getSecret resolves a secret by reference key: keyring, then environment.
// Returns "" when neither tier has it.
func getSecret(key string) string {
	if key == "" {
		return ""
	}

	secret, err := keyringGet(KeyringService, key)
	if err == nil && secret != "" {
		return secret
	}
	if err != nil && err != keyring.ErrNotFound {
		log.Printf("Keyring lookup failed for %q: %v (falling back to environment)", key, err)
	}

	return os.Getenv(envVarForKey(key))
}

// setSecret stores a secret in the keyring under the fixed service name.
func setSecret(key, secret string) error {
	if err := keyringSet(KeyringService, key, secret); err != nil {
		return fmt.Errorf("failed to store secret for %q: %w", key, err)
	}
	return nil
}

// legacyKey is the historical keyring key format, kept for configs that
// predate password_key references.
func legacyKey(baseURL, username string) string {
	return fmt.Sprintf("%s:%s", baseURL, username)
}

// resolveSecret looks up the credential for a config: the password_key
// reference wins, otherwise the legacy (url, username) composite key.
func resolveSecret(cfg *Config) string {
	if cfg.PasswordKey != "" {
		secret := getSecret(cfg.PasswordKey)
		if secret == "" {
			log.Printf("No credential found for password_key %q", cfg.PasswordKey)
		}
		return secret
	}
	if cfg.Username != "" && cfg.PrinterBaseURL != "" {
		secret := getSecret(legacyKey(cfg.PrinterBaseURL, cfg.Username))
		if secret == "" {
			log.Printf("No credential found via legacy url:username lookup")
		}
		return secret
	}
	return ""
}

// buildAuthHeaders constructs the outgoing auth headers for a config.
// A missing credential yields no headers: the request goes out anyway and
// the server's rejection is classified by the adapter.
func buildAuthHeaders(cfg *Config) map[string]string {
	headers := make(map[string]string)

	switch cfg.AuthMode {
	case AuthModeAPIKey:
		if apiKey := resolveSecret(cfg); apiKey != "" {
			headers["X-Api-Key"] = apiKey
		}
	case AuthModeDigest:
		// True digest needs a challenge/response round trip; send Basic
		// with the same credentials and let the server decide.
		if password := resolveSecret(cfg); password != "" {
			credentials := fmt.Sprintf("%s:%s", cfg.Username, password)
			encoded := base64.StdEncoding.EncodeToString([]byte(credentials))
			headers["Authorization"] = "Basic " + encoded
		}
	}

	return headers
}

// promptForSecret interactively asks for a credential and persists it into
// the keyring. Startup-only: the steady-state fetch path never blocks on a
// terminal.
func promptForSecret(key string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter credential for %q: ", key)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return "", fmt.Errorf("empty credential for %q", key)
	}

	if err := setSecret(key, secret); err != nil {
		// Still usable for this run even if the keyring rejected it.
		log.Printf("Could not persist credential: %v", err)
	}
	return secret, nil
}

// ensureCredential makes sure a secret exists for the config's auth mode,
// prompting once when the terminal is interactive. Called from main before
// polling starts.
func ensureCredential(cfg *Config) {
	if cfg.AuthMode == AuthModeNone || cfg.PasswordKey == "" {
		return
	}
	if getSecret(cfg.PasswordKey) != "" {
		return
	}
	if !term.IsTerminal(int(syscall.Stdin)) {
		log.Printf("No credential for %q and no terminal to prompt on; set %s",
			cfg.PasswordKey, envVarForKey(cfg.PasswordKey))
		return
	}
	if _, err := promptForSecret(cfg.PasswordKey); err != nil {
		log.Printf("Credential prompt failed: %v", err)
	}
}
