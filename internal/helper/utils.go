package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// CreateFolder creates path and its parents; an existing directory is not an error.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// SecureFilename reduces name to a safe base name: path components are dropped,
// whitespace becomes '_' and anything outside [A-Za-z0-9._-] is removed.
// It returns "" when nothing usable is left.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")
	return name
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Println(string(b))
}
