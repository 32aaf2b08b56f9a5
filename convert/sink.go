package convert

import (
	"fmt"
	"os"
	"path/filepath"

	fixzip "github.com/hidez8891/zip"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// sink receives scoped stylesheets. Names are relative output paths.
type sink interface {
	// Put stores data and returns its final location for logging.
	Put(name string, data []byte) (string, error)
	Close() error
}

// dirSink writes every stylesheet into its own file under destination directory.
type dirSink struct {
	dst       string
	overwrite bool
	log       *zap.Logger
}

func newDirSink(dst string, overwrite bool, log *zap.Logger) *dirSink {
	return &dirSink{dst: dst, overwrite: overwrite, log: log}
}

func (s *dirSink) Put(name string, data []byte) (string, error) {
	outputName := filepath.Join(s.dst, name)

	if _, err := os.Stat(outputName); err == nil {
		if !s.overwrite {
			return "", fmt.Errorf("output file already exists: %s", outputName)
		}
		s.log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return "", err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := os.WriteFile(outputName, data, 0644); err != nil {
		return "", fmt.Errorf("unable to write output: %w", err)
	}
	return outputName, nil
}

func (s *dirSink) Close() error {
	return nil
}

// bundleSink puts all stylesheets into single zip archive.
type bundleSink struct {
	path  string
	file  *os.File
	arc   *fixzip.Writer
	names map[string]struct{}
}

func newBundleSink(path string, overwrite bool) (*bundleSink, error) {
	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return nil, fmt.Errorf("output file already exists: %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create bundle: %w", err)
	}
	return &bundleSink{
		path:  path,
		file:  f,
		arc:   fixzip.NewWriter(f),
		names: make(map[string]struct{}),
	}, nil
}

func (s *bundleSink) Put(name string, data []byte) (string, error) {
	name = filepath.ToSlash(name)
	if _, exists := s.names[name]; exists {
		return "", fmt.Errorf("duplicate name in bundle: %s", name)
	}

	w, err := s.arc.Create(name)
	if err != nil {
		return "", fmt.Errorf("unable to add %s to bundle: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("unable to write %s to bundle: %w", name, err)
	}
	s.names[name] = struct{}{}
	return s.path + ":" + name, nil
}

func (s *bundleSink) Close() (err error) {
	err = multierr.Append(err, s.arc.Close())
	err = multierr.Append(err, s.file.Close())
	return err
}

// openSink selects destination for results: bundle archive when requested,
// destination directory otherwise.
func openSink(dst, bundle string, overwrite bool, log *zap.Logger) (sink, error) {
	if bundle == "" {
		return newDirSink(dst, overwrite, log), nil
	}
	log.Debug("Writing results into bundle", zap.String("bundle", bundle))
	return newBundleSink(bundle, overwrite)
}
