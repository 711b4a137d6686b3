package fields

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defs/*.yaml
var defaultDefs embed.FS

// LoadDefault builds the registry from the topic files shipped with the
// binary.
func LoadDefault() (*Registry, error) {
	return LoadFS(defaultDefs, "defs")
}

// LoadFS reads every *.yaml file under dir as a Source, in file name order.
func LoadFS(fsys fs.FS, dir string) (*Registry, error) {
	names, err := fs.Glob(fsys, dir+"/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		src, err := ParseSource(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if src.Name == "" {
			src.Name = name
		}
		sources = append(sources, src)
	}
	return NewRegistry(sources...)
}

// ParseSource decodes one YAML topic file.
func ParseSource(data []byte) (Source, error) {
	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return Source{}, err
	}
	if src.Fields == nil {
		src.Fields = NewFieldSet()
	}
	return src, nil
}
