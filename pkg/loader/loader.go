// Package loader reads results payloads from disk or stdin.
package loader

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/Dicklesworthstone/dplace_viewer/pkg/debug"
	"github.com/Dicklesworthstone/dplace_viewer/pkg/model"
)

// Stdin is the path that reads the payload from standard input.
const Stdin = "-"

// MaxPayloadSize bounds how much is read from one payload.
const MaxPayloadSize = 256 << 20

// ErrNotPayload means the input is JSON but not a results payload.
var ErrNotPayload = errors.New("not a results payload")

// Payload is a decoded results document plus where it came from.
type Payload struct {
	Path    string
	Hash    string // sha256 of the raw bytes, for change detection
	Results *model.Results
}

// Load reads and validates the payload at path ("-" for stdin).
func Load(path string) (*Payload, error) {
	defer debug.LogEnterExit("loader.Load")()

	var (
		data []byte
		err  error
	)
	if path == Stdin {
		data, err = io.ReadAll(io.LimitReader(os.Stdin, MaxPayloadSize+1))
	} else {
		data, err = readFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload %s: %w", path, err)
	}
	if len(data) > MaxPayloadSize {
		return nil, fmt.Errorf("payload %s exceeds %d bytes", path, MaxPayloadSize)
	}

	results, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("payload %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return &Payload{Path: path, Hash: hex.EncodeToString(sum[:]), Results: results}, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxPayloadSize+1))
}

// Decode parses and validates a payload.
func Decode(data []byte) (*model.Results, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload: %w", ErrNotPayload)
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object: %w", ErrNotPayload)
	}

	var results model.Results
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	if err := results.Validate(); err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}
	debug.Log("loader: %d societies, %d trees, %d variables",
		len(results.Societies), len(results.Trees), len(results.CodeIDs))
	return &results, nil
}

// Sniff reports whether path looks like a results payload: a JSON object
// with a "societies" or "trees" member. It does not validate the contents.
func Sniff(path string) (bool, error) {
	data, err := readFile(path)
	if err != nil {
		return false, err
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false, nil
	}
	_, hasSocieties := probe["societies"]
	_, hasTrees := probe["trees"]
	return hasSocieties || hasTrees, nil
}

// LoadRegions reads a selected-regions file: a JSON list of {code, name}
// objects, or a plain list of codes.
func LoadRegions(path string) ([]model.Region, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading regions %s: %w", path, err)
	}
	var regions []model.Region
	if err := json.Unmarshal(data, &regions); err == nil {
		return regions, nil
	}
	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("regions %s: expected a list of regions or codes: %w", path, err)
	}
	regions = make([]model.Region, 0, len(codes))
	for _, c := range codes {
		regions = append(regions, model.Region{Code: c})
	}
	return regions, nil
}
