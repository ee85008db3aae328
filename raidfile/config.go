// raidfile/config.go
// Copyright(c) 2017 Matt Pharr
// BSD licensed; see LICENSE for details.

package raidfile

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies the syntax of a disc set configuration file.
type Format int

const (
	// FormatYAML is a YAML mapping from section names to sections.
	FormatYAML Format = iota
	// FormatJSONC is the same structure as a JSON object, with // and
	// /* */ comments and trailing commas allowed.
	FormatJSONC
)

// FormatForPath picks the configuration format from a file's extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSONC
	default:
		return FormatYAML
	}
}

/*
A configuration is an ordered set of named sections, one per disc set:

	disc0:
	  SetNumber: 0
	  BlockSize: 4096
	  Dir0: /raid/0.0
	  Dir1: /raid/0.1
	  Dir2: /raid/0.2
	disc1:
	  SetNumber: 1
	  BlockSize: 4096
	  Dir0: /store/1

The section names are arbitrary, but the SetNumbers must count up from
zero in the order the sections appear. Dir1 and Dir2 may be omitted, or
all three directories may be the same, for a non-raid set.
*/

type sectionConfig struct {
	SetNumber *int    `yaml:"SetNumber"`
	BlockSize *int    `yaml:"BlockSize"`
	Dir0      *string `yaml:"Dir0"`
	Dir1      *string `yaml:"Dir1"`
	Dir2      *string `yaml:"Dir2"`
}

var sectionKeys = map[string]bool{
	"SetNumber": true, "BlockSize": true, "Dir0": true, "Dir1": true, "Dir2": true,
}

// parseDiscSets returns the disc sets described by data; either all of
// them are valid or an error wrapping ErrBadConfig is returned.
func parseDiscSets(data []byte, format Format) ([]*DiscSet, error) {
	if format == FormatJSONC {
		data = jsonc.ToJSON(data)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(ErrBadConfig, err.Error())
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		// Empty file: no disc sets.
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, badConfig("line %d: expected a mapping of disc set sections", root.Line)
	}

	var sets []*DiscSet
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, body := root.Content[i].Value, root.Content[i+1]
		ds, err := parseSection(name, body, len(sets))
		if err != nil {
			return nil, err
		}
		sets = append(sets, ds)
	}
	return sets, nil
}

func parseSection(name string, body *yaml.Node, expectedSetNum int) (*DiscSet, error) {
	if body.Kind != yaml.MappingNode {
		return nil, badConfig("%s (line %d): section is not a mapping", name, body.Line)
	}
	for i := 0; i < len(body.Content); i += 2 {
		if key := body.Content[i].Value; !sectionKeys[key] {
			return nil, badConfig("%s (line %d): unknown key %q", name,
				body.Content[i].Line, key)
		}
	}

	var sc sectionConfig
	if err := body.Decode(&sc); err != nil {
		return nil, badConfig("%s: %s", name, err)
	}
	switch {
	case sc.SetNumber == nil:
		return nil, badConfig("%s: SetNumber missing", name)
	case sc.BlockSize == nil:
		return nil, badConfig("%s: BlockSize missing", name)
	case sc.Dir0 == nil:
		return nil, badConfig("%s: Dir0 missing", name)
	case (sc.Dir1 == nil) != (sc.Dir2 == nil):
		return nil, badConfig("%s: Dir1 and Dir2 must be given together", name)
	}
	if *sc.SetNumber != expectedSetNum {
		return nil, badConfig("%s: SetNumber %d out of sequence; expected %d",
			name, *sc.SetNumber, expectedSetNum)
	}

	dirs := []string{*sc.Dir0}
	if sc.Dir1 != nil {
		d0, d1, d2 := *sc.Dir0, *sc.Dir1, *sc.Dir2
		switch {
		case d0 == d1 && d1 == d2:
			// All the same: a non-raid set stored in Dir0.
		case d0 != d1 && d1 != d2 && d0 != d2:
			dirs = []string{d0, d1, d2}
		default:
			return nil, badConfig("%s: two of Dir0, Dir1 and Dir2 are the same", name)
		}
	}

	ds, err := NewDiscSet(*sc.SetNumber, *sc.BlockSize, dirs...)
	if err != nil {
		return nil, errors.WithMessage(err, name)
	}
	return ds, nil
}
