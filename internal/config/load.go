package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a pipeline file over Defaults. An empty path returns Defaults.
//
// Keys absent from the file keep their default values. Unknown keys are
// rejected so typos surface instead of silently falling back.
func Load(path string) (Pipeline, error) {
	p := Defaults()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read config: %w", err)
	}
	if err := Decode(b, &p); err != nil {
		return p, fmt.Errorf("parse config %s: %w", path, err)
	}
	return p, nil
}

// Decode decodes YAML or JSON bytes into p, keeping values already set on p
// for keys the document omits.
func Decode(b []byte, p *Pipeline) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return err
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return nil
}
