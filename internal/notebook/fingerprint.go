package notebook

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

// Fingerprint returns the hex SHA3-256 digest of the file at path.
// Summaries carry it so a comparison can tell whether the notebook source
// changed between two runs.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from discovery
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	h := sha3.New256()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
