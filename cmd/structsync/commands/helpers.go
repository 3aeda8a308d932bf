package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/structsync/cmd/structsync/opts"
)

// writeDocument serializes v to path, picking the format from the file
// extension. Reports use the same document formats as templates so CI
// pipelines can consume either.
func writeDocument(path string, v interface{}) error {
	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		data, err = json.MarshalIndent(v, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		return errors.Errorf("unsupported report extension %q", ext)
	}
	if err != nil {
		return errors.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Errorf("writing report: %w", err)
	}
	return nil
}

// zerologLevel maps the shared debug flag to a console log level.
func zerologLevel(o *opts.RootOpts) zerolog.Level {
	if o.Debug {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}
