package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// New returns a logger that writes JSON to the specified file.
// If file is empty, logs are written to stderr.
//
// The level parameter can be one of: debug, info, warn, error, fatal.
func New(level string, file string) (zerolog.Logger, func(), error) {
	closer := func() {}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, closer, err
	}

	var writer io.Writer = os.Stderr
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("create logs dir: %w", err)
		}
		f, err := os.Create(file)
		if err != nil {
			return zerolog.Logger{}, closer, err
		}
		closer = func() { _ = f.Close() }
		writer = f
	}

	l := zerolog.New(writer).
		With().
		Timestamp().
		Logger().
		Level(lvl)

	return l, closer, nil
}
