package scaffold

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lumos/internal/config"
)

func TestMainFileCpp(t *testing.T) {
	src := MainFile(TemplateParams{Language: config.LanguageCpp})
	assert.Contains(t, src, "void setup()\n")
	assert.Contains(t, src, "void loop()\n")
	assert.Contains(t, src, "// Initialize your application here")
	assert.NotContains(t, src, "(void)")
}

func TestMainFileC(t *testing.T) {
	src := MainFile(TemplateParams{Language: config.LanguageC})
	assert.Contains(t, src, "void setup(void)")
	assert.Contains(t, src, "void loop(void)")
}

func TestReadme(t *testing.T) {
	readme := Readme(TemplateParams{ProjectName: "blinky", Board: "LumosMiniBrain", Language: config.LanguageC})
	assert.Contains(t, readme, "# blinky")
	assert.Contains(t, readme, "A Lumos project for LumosMiniBrain.")
	assert.Contains(t, readme, "- **Language**: C\n")
	assert.Contains(t, readme, "lumos build")
	assert.Contains(t, readme, "`main.c`")
}

func TestProjectConfigTemplate(t *testing.T) {
	cfg := ProjectConfig(TemplateParams{Board: "LumosEscMini", Language: config.LanguageCpp})
	assert.Equal(t, []string{"main.cpp"}, cfg.Sources)
	assert.Equal(t, "LumosEscMini", cfg.Board)
	assert.Empty(t, cfg.HALModules)
}
