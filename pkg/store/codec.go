package store

import (
	"bytes"
	"encoding/json"
	"strings"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/structsync/pkg/structure"
)

// Codec encodes and decodes template documents in one on-disk format.
type Codec interface {
	// Extensions returns the file extensions this codec handles, with
	// the canonical one first.
	Extensions() []string

	// Encode serializes a model to a template document.
	Encode(m *structure.Model) ([]byte, error)

	// Decode parses a template document into a model.
	Decode(data []byte) (*structure.Model, error)
}

// codecs is the list of registered codecs. The first registration wins
// lookup ties, and its canonical extension is the default format.
var codecs []Codec

// RegisterCodec registers a template document codec.
func RegisterCodec(c Codec) {
	codecs = append(codecs, c)
}

// codecFor returns the codec handling the given filename, or nil.
func codecFor(filename string) Codec {
	lower := strings.ToLower(filename)
	for _, c := range codecs {
		for _, ext := range c.Extensions() {
			if strings.HasSuffix(lower, ext) {
				return c
			}
		}
	}
	return nil
}

// defaultExtension is the canonical extension of the first codec.
func defaultExtension() string {
	return codecs[0].Extensions()[0]
}

// JSONCodec is the default template document format.
type JSONCodec struct{}

func init() {
	RegisterCodec(&JSONCodec{})
}

func (c *JSONCodec) Extensions() []string {
	return []string{".json"}
}

func (c *JSONCodec) Encode(m *structure.Model) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Errorf("encoding JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func (c *JSONCodec) Decode(data []byte) (*structure.Model, error) {
	var m structure.Model
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&m); err != nil {
		return nil, errors.Errorf("%w: parsing JSON: %v", ErrTemplateFormat, err)
	}
	return &m, nil
}

// YAMLCodec is an alternative human-editable template document format.
type YAMLCodec struct{}

func init() {
	RegisterCodec(&YAMLCodec{})
}

func (c *YAMLCodec) Extensions() []string {
	return []string{".yaml", ".yml"}
}

func (c *YAMLCodec) Encode(m *structure.Model) ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Errorf("encoding YAML: %w", err)
	}
	return data, nil
}

func (c *YAMLCodec) Decode(data []byte) (*structure.Model, error) {
	var m structure.Model
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, errors.Errorf("%w: parsing YAML: %v", ErrTemplateFormat, err)
	}
	return &m, nil
}
