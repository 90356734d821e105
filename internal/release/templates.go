package release

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Install script and README file names inside the package directory.
const (
	InstallScript = "install.sh"
	ReadmeFile    = "README.txt"
)

type templateData struct {
	Product string
	Version string
}

// Title is the display name of the product ("lumos" becomes "Lumos").
func (d templateData) Title() string {
	if d.Product == "" {
		return ""
	}
	return strings.ToUpper(d.Product[:1]) + d.Product[1:]
}

// TitleRule underlines the install banner.
func (d templateData) TitleRule() string {
	return strings.Repeat("=", len(d.Title()+" v"+d.Version+" Installation Script"))
}

// Rule is the README heading separator.
func (d templateData) Rule() string {
	return strings.Repeat("=", 60)
}

// RenderInstallScript renders install.sh for product and version.
func RenderInstallScript(product, version string) ([]byte, error) {
	return render("install.sh.tmpl", templateData{Product: product, Version: version})
}

// RenderReadme renders README.txt for product and version.
func RenderReadme(product, version string) ([]byte, error) {
	return render("README.txt.tmpl", templateData{Product: product, Version: version})
}

func render(name string, data templateData) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
