// Package scaffold creates new Lumos projects and repairs partially
// initialized ones. It never overwrites a file that already exists.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"lumos/internal/config"
	"lumos/internal/fsutil"
	"lumos/internal/logger"
)

// Outcome tells which of the three init paths was taken.
type Outcome int

const (
	// Created means a new project was generated.
	Created Outcome = iota
	// MainRestored means project.yaml existed and the entry file was recreated.
	MainRestored
	// AlreadyReady means project.yaml and an entry file both existed.
	AlreadyReady
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case MainRestored:
		return "main-restored"
	case AlreadyReady:
		return "already-ready"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Scaffolder initializes the project rooted at Root.
type Scaffolder struct {
	Root   string
	Prompt *Prompter
	Log    *logger.Logger
}

// New returns a Scaffolder for root.
func New(root string, prompt *Prompter, log *logger.Logger) *Scaffolder {
	return &Scaffolder{Root: root, Prompt: prompt, Log: log}
}

// Init runs `lumos init`.
func (s *Scaffolder) Init() (Outcome, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return Created, fmt.Errorf("failed to resolve project directory: %w", err)
	}

	if config.Exists(root) {
		return s.repair(root)
	}
	return Created, s.create(root)
}

func (s *Scaffolder) create(root string) error {
	s.Log.Printf("\n=== Lumos Project Initialization ===\n\n")
	s.Log.Printf("Creating project in: %s\n\n", root)

	params := TemplateParams{
		ProjectName: filepath.Base(root),
		Board:       s.Prompt.Board(),
		Language:    s.Prompt.Language(),
	}

	s.Log.Printf("Generating project files...\n")
	if err := s.writeOnce(root, params.EntryFile(), MainFile(params)); err != nil {
		return err
	}

	// project.yaml was absent when Init started.
	if err := config.Save(ProjectConfig(params), root); err != nil {
		return err
	}
	s.Log.Printf("  Created %s\n", config.ProjectFile)

	if err := s.writeOnce(root, "README.md", Readme(params)); err != nil {
		return err
	}

	s.Log.Success("Project initialized successfully!\n")
	s.nextSteps(params.EntryFile())
	return nil
}

func (s *Scaffolder) repair(root string) (Outcome, error) {
	s.Log.Printf("\n=== Lumos Project ===\n\n")
	s.Log.Printf("Project directory: %s\n", root)
	s.Log.Printf("%s already exists\n\n", config.ProjectFile)

	// The entry file listed in sources decides what "ready" means. Without
	// one, either generated main file on disk will do.
	lang, known := s.listedLanguage(root)
	candidates := []config.Language{config.LanguageC, config.LanguageCpp}
	if known {
		candidates = []config.Language{lang}
	}
	for _, c := range candidates {
		if fileExists(filepath.Join(root, c.EntryFile())) {
			s.Log.Printf("Main file already exists: %s\n", c.EntryFile())
			s.Log.Printf("\nProject is ready. Run 'lumos build' to compile.\n")
			return AlreadyReady, nil
		}
	}

	if known {
		s.Log.Printf("Language from %s: %s\n\n", config.ProjectFile, lang)
	} else {
		lang = s.Prompt.Language()
	}

	entry := lang.EntryFile()
	params := TemplateParams{ProjectName: filepath.Base(root), Language: lang}
	if err := s.writeOnce(root, entry, MainFile(params)); err != nil {
		return MainRestored, err
	}

	added, err := config.AppendSource(root, entry)
	if err != nil {
		return MainRestored, err
	}
	if added {
		s.Log.Printf("  Added %s to %s sources\n", entry, config.ProjectFile)
	}

	s.Log.Printf("\n")
	s.Log.Success("Main file created successfully!\n")
	s.nextSteps(entry)
	return MainRestored, nil
}

// listedLanguage infers the language from the entry file already listed in project.yaml.
func (s *Scaffolder) listedLanguage(root string) (config.Language, bool) {
	cfg, err := config.Load(root)
	if err != nil {
		s.Log.Warn("Could not read %s: %v\n", config.ProjectFile, err)
		return "", false
	}
	return cfg.Language()
}

func (s *Scaffolder) writeOnce(root, name, content string) error {
	wrote, err := fsutil.WriteFileIfMissing(filepath.Join(root, name), []byte(content), 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if wrote {
		s.Log.Printf("  Created %s\n", name)
	} else {
		s.Log.Printf("  Kept existing %s\n", name)
	}
	return nil
}

func (s *Scaffolder) nextSteps(entry string) {
	s.Log.Printf("\nNext steps:\n")
	s.Log.Printf("  1. Edit %s to add your code\n", entry)
	s.Log.Printf("  2. Run 'lumos build' to compile\n")
	s.Log.Printf("  3. Run 'lumos flash' to flash firmware to MCU\n\n")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
