package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	talkwire "github.com/talkwire-im/talkwire-go"
)

// getClient loads the stored config and returns an authenticated API client.
// It exits with a helpful message when no credential is stored.
func getClient() (*talkwire.Client, *Config) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.loggedIn() {
		fmt.Fprintln(os.Stderr, "Not logged in.")
		fmt.Fprintln(os.Stderr, "Run 'talkwire login <username>' first.")
		os.Exit(1)
	}
	return talkwire.NewClient(cfg.baseURL(), cfg.Auth.Token), cfg
}

// promptLine prints a prompt and reads a single trimmed line from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// maskToken shows at most the last 4 characters of a credential.
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
