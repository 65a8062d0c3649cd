package keystore

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// PromptPassphrase reads a passphrase from the terminal without echo
func PromptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal, set the passphrase through the environment")
	}
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(passphrase), nil
}
