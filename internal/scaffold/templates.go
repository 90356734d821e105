package scaffold

import (
	"bytes"
	"embed"
	"text/template"

	"lumos/internal/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// TemplateParams are the inputs of every generated project file.
type TemplateParams struct {
	ProjectName string
	Board       string
	Language    config.Language
}

// EntryFile is the generated entry source file name.
func (p TemplateParams) EntryFile() string { return p.Language.EntryFile() }

// SetupSignature is the declaration line of setup() for the language.
func (p TemplateParams) SetupSignature() string {
	if p.Language == config.LanguageC {
		return "void setup(void)"
	}
	return "void setup()"
}

// LoopSignature is the declaration line of loop() for the language.
func (p TemplateParams) LoopSignature() string {
	if p.Language == config.LanguageC {
		return "void loop(void)"
	}
	return "void loop()"
}

// MainFile renders the entry source file.
func MainFile(p TemplateParams) string {
	return render("main.tmpl", p)
}

// Readme renders README.md.
func Readme(p TemplateParams) string {
	return render("readme.tmpl", p)
}

// ProjectConfig returns the initial project.yaml contents for p.
func ProjectConfig(p TemplateParams) *config.ProjectConfig {
	return &config.ProjectConfig{
		Sources: []string{p.EntryFile()},
		Board:   p.Board,
	}
}

func render(name string, p TemplateParams) string {
	var buf bytes.Buffer
	// Templates are embedded and parameters are plain strings, so execution cannot fail.
	if err := templates.ExecuteTemplate(&buf, name, p); err != nil {
		panic(err)
	}
	return buf.String()
}
