package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/andybalholm/brotli"

	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

// JSONSink writes the result set as an indented JSON array, or as a checkpoint
// envelope when metadata is enabled.
type JSONSink struct {
	path           string
	compress       bool
	checkpointMeta bool
	runID          string
}

// NewJSONSink writes to base+".json", or base+".json.br" when compress is set.
func NewJSONSink(base string, compress, checkpointMeta bool, runID string) *JSONSink {
	path := base + ".json"
	if compress {
		path += ".br"
	}
	return &JSONSink{
		path:           path,
		compress:       compress,
		checkpointMeta: checkpointMeta,
		runID:          runID,
	}
}

// Path returns the output file.
func (s *JSONSink) Path() string {
	return s.path
}

// Save implements Sink.
func (s *JSONSink) Save(records []models.Record, page int) (string, error) {
	if records == nil {
		records = []models.Record{}
	}

	var data []byte
	var err error
	if s.checkpointMeta {
		data, err = models.NewCheckpoint(s.runID, page, records).ToJSON()
	} else {
		data, err = json.MarshalIndent(records, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("encode json output: %w", err)
	}

	if s.compress {
		data, err = compressBrotli(data)
		if err != nil {
			return "", err
		}
	}

	if err := utils.WriteFileAtomic(s.path, data, 0644); err != nil {
		return "", err
	}
	return s.path, nil
}

func compressBrotli(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("brotli compress: %w", err)
	}
	return buf.Bytes(), nil
}
