package sync

import (
	"bytes"
	_ "embed"
	"fmt"
	"io/fs"
	"os"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type MappingFile struct {
	Name   string
	Reader *bytes.Reader
	Length int
}

func newMappingFile(name string, b []byte) MappingFile {
	return MappingFile{
		Name:   name,
		Reader: bytes.NewReader(b),
		Length: len(b),
	}
}

// DefaultsMappingFile returns the built in defaults (mapping tables, schedule and ledger settings).
// Every config is layered on top of it.
func DefaultsMappingFile() MappingFile {
	return newMappingFile("defaults.yaml", defaultsYAML)
}

// FindMappingFile reads a config file from fsys, or from the OS filesystem when fsys is nil.
func FindMappingFile(fsys fs.FS, name string) (MappingFile, error) {
	var result MappingFile
	var b []byte
	var err error
	if fsys != nil {
		b, err = fs.ReadFile(fsys, name)
	} else {
		b, err = os.ReadFile(name)
	}
	if err != nil {
		return result, fmt.Errorf("failed to read config file %s %w", name, err)
	}
	if len(b) == 0 {
		return result, fmt.Errorf("config file %s is empty", name)
	}
	return newMappingFile(name, b), nil
}
