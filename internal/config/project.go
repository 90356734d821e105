package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectFile is the name of the project configuration inside a project root.
const ProjectFile = "project.yaml"

// ErrProjectNotFound is returned by Load when the project root has no project.yaml.
// It also matches fs.ErrNotExist.
var ErrProjectNotFound = fmt.Errorf("%s not found: %w", ProjectFile, fs.ErrNotExist)

// KnownHALModules lists the peripheral modules documented in generated project files.
var KnownHALModules = []string{"uart", "spi", "i2c", "adc", "tim", "can", "dma", "pcd", "sdmmc", "eth"}

// ProjectPath returns the project.yaml path for a project root.
func ProjectPath(root string) string {
	return filepath.Join(root, ProjectFile)
}

// Exists reports whether root already holds a project.yaml.
func Exists(root string) bool {
	_, err := os.Stat(ProjectPath(root))
	return err == nil
}

// Load reads project.yaml from root.
func Load(root string) (*ProjectConfig, error) {
	raw, err := os.ReadFile(ProjectPath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", ProjectFile, err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", ProjectFile, err)
	}
	return &cfg, nil
}

// Save writes cfg to root/project.yaml, replacing any existing file.
// The output carries section comments and documents the hal_modules key
// even when no modules are configured.
func Save(cfg *ProjectConfig, root string) error {
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(ProjectPath(root), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", ProjectFile, err)
	}
	return nil
}

// Marshal renders cfg in the commented project.yaml layout.
func Marshal(cfg *ProjectConfig) ([]byte, error) {
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	mapping.Content = append(mapping.Content,
		keyNode("sources", "# Source files to compile"),
		sequenceNode(cfg.Sources),
		keyNode("board", "# Target board"),
		scalarNode(cfg.Board),
	)
	if len(cfg.HALModules) > 0 {
		mapping.Content = append(mapping.Content,
			keyNode("hal_modules", halModulesComment(false)),
			sequenceNode(cfg.HALModules),
		)
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "# Lumos Project Configuration\n# Generated by: lumos init",
		Content:     []*yaml.Node{mapping},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", ProjectFile, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", ProjectFile, err)
	}

	if len(cfg.HALModules) == 0 {
		buf.WriteString("\n")
		buf.WriteString(halModulesComment(true))
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// halModulesComment documents hal_modules. When example is true the block also
// shows a commented-out list so users can uncomment it.
func halModulesComment(example bool) string {
	lines := []string{
		"# Optional: HAL modules to include (auto-detected if not specified)",
		"# Recognized modules: " + strings.Join(KnownHALModules, ", "),
	}
	if example {
		lines = append(lines, "# hal_modules:", "#   - uart", "#   - spi", "#   - i2c")
	}
	return strings.Join(lines, "\n")
}

func keyNode(name, comment string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name, HeadComment: comment}
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func sequenceNode(values []string) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range values {
		seq.Content = append(seq.Content, scalarNode(v))
	}
	return seq
}

// EntryFile returns the first generated entry file (main.cpp or main.c) listed
// in Sources, or "" when none is listed.
func (c *ProjectConfig) EntryFile() string {
	for _, src := range c.Sources {
		switch filepath.ToSlash(filepath.Clean(src)) {
		case LanguageCpp.EntryFile(), LanguageC.EntryFile():
			return filepath.Clean(src)
		}
	}
	return ""
}

// Language infers the project language from the listed entry file.
// ok is false when no entry file is listed.
func (c *ProjectConfig) Language() (lang Language, ok bool) {
	switch c.EntryFile() {
	case LanguageC.EntryFile():
		return LanguageC, true
	case LanguageCpp.EntryFile():
		return LanguageCpp, true
	}
	return "", false
}

// HasSource reports whether path is listed in Sources.
func (c *ProjectConfig) HasSource(path string) bool {
	for _, src := range c.Sources {
		if filepath.Clean(src) == filepath.Clean(path) {
			return true
		}
	}
	return false
}

// AddSource appends path to Sources unless it is already listed.
// It reports whether Sources changed.
func (c *ProjectConfig) AddSource(path string) bool {
	if c.HasSource(path) {
		return false
	}
	c.Sources = append(c.Sources, path)
	return true
}

// AppendSource adds path to the sources list of root/project.yaml in place.
// The rest of the document, comments included, is re-encoded unchanged.
// It reports whether the file was modified.
func AppendSource(root, path string) (bool, error) {
	raw, err := os.ReadFile(ProjectPath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, ErrProjectNotFound
		}
		return false, fmt.Errorf("failed to read %s: %w", ProjectFile, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", ProjectFile, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return false, fmt.Errorf("%s: top level is not a mapping", ProjectFile)
	}

	mapping := doc.Content[0]
	var seq *yaml.Node
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "sources" {
			seq = mapping.Content[i+1]
			break
		}
	}
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode}
		mapping.Content = append(mapping.Content, keyNode("sources", "# Source files to compile"), seq)
	}
	if seq.Kind != yaml.SequenceNode {
		return false, fmt.Errorf("%s: sources is not a list", ProjectFile)
	}
	for _, item := range seq.Content {
		if filepath.Clean(item.Value) == filepath.Clean(path) {
			return false, nil
		}
	}
	seq.Style = 0
	seq.Content = append(seq.Content, scalarNode(path))

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return false, fmt.Errorf("failed to marshal %s: %w", ProjectFile, err)
	}
	if err := enc.Close(); err != nil {
		return false, fmt.Errorf("failed to marshal %s: %w", ProjectFile, err)
	}
	if err := os.WriteFile(ProjectPath(root), buf.Bytes(), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", ProjectFile, err)
	}
	return true, nil
}
