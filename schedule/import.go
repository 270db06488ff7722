package schedule

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// DefinitionSpec is the file form of a Definition.
type DefinitionSpec struct {
	JobType           string            `yaml:"job_type" toml:"job_type"`
	Description       string            `yaml:"description" toml:"description"`
	RepeatTimeMinutes int               `yaml:"repeat_time_minutes" toml:"repeat_time_minutes"`
	RepeatDailyAt     string            `yaml:"repeat_daily_at" toml:"repeat_daily_at"`
	Active            *bool             `yaml:"active" toml:"active"`
	Params            map[string]string `yaml:"params" toml:"params"`
}

// File is the top-level shape of a definitions file.
type File struct {
	Definitions []DefinitionSpec `yaml:"definitions" toml:"definitions"`
}

// Definition converts the imported entry, defaulting Active to true.
func (s DefinitionSpec) Definition() *Definition {
	active := true
	if s.Active != nil {
		active = *s.Active
	}
	return &Definition{
		JobType:           s.JobType,
		Description:       s.Description,
		RepeatTimeMinutes: s.RepeatTimeMinutes,
		RepeatDailyAt:     s.RepeatDailyAt,
		Active:            active,
		Params:            s.Params,
	}
}

// Format of a definitions file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the decoder by file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewInvalidRequestError("unsupported definitions file %q (use .yaml or .toml)", path)
	}
}

// Decode reads definitions from r and validates each one.
func Decode(r io.Reader, format Format) ([]*Definition, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to decode yaml definitions")
		}
	case FormatTOML:
		if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
			return nil, errors.Wrap(err, "failed to decode toml definitions")
		}
	default:
		return nil, errors.NewInvalidRequestError("unknown definitions format %q", format)
	}

	defs := make([]*Definition, 0, len(f.Definitions))
	for i, spec := range f.Definitions {
		d := spec.Definition()
		if err := d.Validate(); err != nil {
			return nil, errors.Wrapf(err, "definition #%d (%s)", i+1, spec.JobType)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// ImportFile decodes path and stores every definition in it.
func ImportFile(ctx context.Context, store *Store, path string) ([]*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	defs, err := Decode(f, format)
	if err != nil {
		return nil, errors.Wrapf(err, "import %s", path)
	}

	for _, d := range defs {
		if err := store.CreateDefinition(ctx, d); err != nil {
			return nil, errors.Wrapf(err, "import %s", path)
		}
	}
	return defs, nil
}
