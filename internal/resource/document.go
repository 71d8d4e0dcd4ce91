package resource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const listSuffix = "List"

// Document is a parsed, untyped resource document. The spec is kept as a
// YAML node until a controller decodes it into its own type.
type Document struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   Meta       `yaml:"metadata"`
	Spec       yaml.Node  `yaml:"spec"`
	Items      []Document `yaml:"items,omitempty"`
}

// Type returns the document's API version and kind.
func (d Document) Type() Type {
	return Type{APIVersion: d.APIVersion, Kind: d.Kind}
}

func (d Document) isEmpty() bool {
	return d.APIVersion == "" && d.Kind == "" && d.Items == nil
}

func (d Document) isList() bool {
	return strings.HasSuffix(d.Kind, listSuffix) && d.Items != nil
}

// Decode converts a document into a typed object.
func Decode[T any](doc Document) (Object[T], error) {
	var spec T
	if doc.Spec.Kind != 0 {
		if err := doc.Spec.Decode(&spec); err != nil {
			return Object[T]{}, fmt.Errorf("failed to decode spec of %s %q: %w", doc.Kind, doc.Metadata.Name, err)
		}
	}
	return Object[T]{
		APIVersion: doc.APIVersion,
		Kind:       doc.Kind,
		Metadata:   doc.Metadata,
		Spec:       spec,
	}, nil
}

// DecodeAll converts documents into typed objects, preserving order.
func DecodeAll[T any](docs []Document) ([]Object[T], error) {
	out := make([]Object[T], 0, len(docs))
	for _, doc := range docs {
		obj, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

// Parse reads a multi-document YAML stream. List documents (kind ending in
// "List" with an items field) are flattened into their items.
func Parse(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)

	var docs []Document
	for {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse document %d: %w", len(docs)+1, err)
		}
		if doc.isEmpty() {
			continue
		}
		docs = append(docs, flatten(doc)...)
	}

	for i, doc := range docs {
		if doc.APIVersion == "" || doc.Kind == "" {
			return nil, fmt.Errorf("document %d: apiVersion and kind are required", i+1)
		}
	}

	return docs, nil
}

// flatten expands list documents. Items inherit the list's apiVersion and
// labels when they don't set their own.
func flatten(doc Document) []Document {
	if !doc.isList() {
		return []Document{doc}
	}

	itemKind := strings.TrimSuffix(doc.Kind, listSuffix)
	var out []Document
	for _, item := range doc.Items {
		if item.APIVersion == "" {
			item.APIVersion = doc.APIVersion
		}
		if item.Kind == "" {
			item.Kind = itemKind
		}
		if len(doc.Metadata.Labels) > 0 {
			labels := make(map[string]string, len(doc.Metadata.Labels)+len(item.Metadata.Labels))
			for k, v := range doc.Metadata.Labels {
				labels[k] = v
			}
			for k, v := range item.Metadata.Labels {
				labels[k] = v
			}
			item.Metadata.Labels = labels
		}
		out = append(out, flatten(item)...)
	}
	return out
}

// Load reads documents from files or directories. Directories are walked
// for *.yaml and *.yml files in lexical order.
func Load(paths ...string) ([]Document, error) {
	var docs []Document
	for _, path := range paths {
		files, err := expand(path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			loaded, err := loadFile(file)
			if err != nil {
				return nil, err
			}
			docs = append(docs, loaded...)
		}
	}
	return docs, nil
}

func loadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(p) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
