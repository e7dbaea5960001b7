// Package chunkstore persists the ordered chunk list of a document as JSON.
package chunkstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-rag/internal/apperr"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

const fileSuffix = ".chunks.json"

// PathFor returns the chunk file location for a source document inside dir.
func PathFor(dir, filename string) string {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return filepath.Join(dir, stem+fileSuffix)
}

// Save writes chunks to path as an indented JSON array, creating parent
// directories. The file is replaced atomically.
func Save(chunks []models.Chunk, path string) error {
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	if err := helper.CreateFolder(filepath.Dir(path)); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(chunks); err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move chunk file into place: %w", err)
	}
	return nil
}

// Load reads a chunk file written by Save. A missing file is a NotFound error;
// unreadable or structurally invalid content is DataCorruption.
func Load(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.NotFoundf("load chunks", "chunk file %s does not exist", path)
		}
		return nil, apperr.Corruptf("load chunks", "failed to read %s: %v", path, err)
	}

	var chunks []models.Chunk
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&chunks); err != nil {
		return nil, apperr.Corruptf("load chunks", "invalid chunk file %s: %v", path, err)
	}
	if chunks == nil {
		return nil, apperr.Corruptf("load chunks", "chunk file %s does not contain a list", path)
	}
	for i, ch := range chunks {
		if err := validate(ch); err != nil {
			return nil, apperr.Corruptf("load chunks", "%s: record %d: %v", path, i, err)
		}
	}
	return chunks, nil
}

func validate(ch models.Chunk) error {
	switch {
	case ch.Filename == "":
		return errors.New("missing filename")
	case ch.PageIndex < 1:
		return fmt.Errorf("page_index %d below 1", ch.PageIndex)
	case ch.ChunkIndex < 0:
		return fmt.Errorf("negative chunk_index %d", ch.ChunkIndex)
	case ch.Text == "":
		return errors.New("empty text")
	}
	return nil
}
