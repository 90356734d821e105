// Package builder compiles a Lumos project into build/firmware.bin with the
// arm-none-eabi toolchain.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"lumos/internal/config"
	"lumos/internal/logger"
	"lumos/internal/runner"
	"lumos/internal/state"
)

// ErrNoResources is returned when the HAL/platform resource tree cannot be located.
var ErrNoResources = errors.New("lumos resources not found; set " + config.EnvRoot + " or add it to the project .env")

// Artifact describes the files produced by a successful build.
type Artifact struct {
	ELF     string
	Bin     string
	Map     string
	Size    int64
	Modules []string
}

// Builder builds the project rooted at Root.
type Builder struct {
	Root    string
	Env     config.Environment
	Invoker runner.Invoker
	Log     *logger.Logger
}

// New returns a Builder for root.
func New(root string, env config.Environment, inv runner.Invoker, log *logger.Logger) *Builder {
	return &Builder{Root: root, Env: env, Invoker: inv, Log: log}
}

type compileUnit struct {
	source string // absolute or project-relative source path
	object string // object path relative to the project root
}

type unitGroup struct {
	title string
	units []compileUnit
}

// Build runs the full pipeline: load, detect modules, compile, link, objcopy.
func (b *Builder) Build(ctx context.Context) (*Artifact, error) {
	b.Log.Info("=== Lumos Builder ===\n")
	b.Log.Printf("Project directory: %s\n\n", b.Root)

	project, err := config.Load(b.Root)
	if err != nil {
		if errors.Is(err, config.ErrProjectNotFound) {
			return nil, fmt.Errorf("%w\nMake sure you're in a Lumos project directory\nHint: Run 'lumos init' to create a new project", err)
		}
		return nil, err
	}
	if err := b.validateSources(project); err != nil {
		return nil, err
	}
	if b.Env.Root == "" {
		return nil, ErrNoResources
	}

	b.Log.Printf("Board: %s\n", project.Board)
	b.Log.Printf("Sources: %d files\n", len(project.Sources))

	modules := b.modules(project)

	board, known := config.LookupBoard(project.Board)
	if !known {
		b.Log.Warn("Warning: Unknown board '%s', defaulting to %s\n", project.Board, board.Platform)
	}
	platform := LocatePlatform(b.Env.Root, board.Platform)
	b.Log.Printf("Platform: %s\n", board.Platform)
	b.Log.Printf("MCU: %s\n", board.MCU)
	b.Log.Printf("CPU: %s\n\n", board.CPU)
	b.Log.Debug("[DEBUG] Platform directory: %s\n", platform.Dir)

	for _, f := range []string{platform.StartupFile(), platform.SystemFile(), platform.LinkerScript()} {
		if !exists(f) {
			return nil, fmt.Errorf("platform file not found: %s", f)
		}
	}

	buildDir := config.BuildDir(b.Root)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}

	tc := ResolveToolchain(b.Env)
	b.Log.Debug("[DEBUG] Toolchain: %s\n", tc.CC())

	st := state.LoadState(state.Path(buildDir))
	c := &compiler{
		b:           b,
		tc:          tc,
		board:       board,
		platform:    platform,
		state:       st,
		includeDirs: platform.IncludeDirs(b.Root),
		includes:    make(map[string][]string),
	}

	groups := []unitGroup{
		{"Compiling user sources...", userUnits(project.Sources)},
		{"Compiling HAL drivers...", vendorUnits("hal", platform.HALSources(modules))},
	}
	if usesUSB(modules) {
		groups = append(groups, unitGroup{"Compiling USB middleware...", vendorUnits("usb", platform.USBSources())})
	}
	groups = append(groups, unitGroup{"Compiling system files...", vendorUnits("system", []string{platform.StartupFile(), platform.SystemFile()})})

	var objects []string
	for _, g := range groups {
		b.Log.Printf("%s\n", g.title)
		for _, u := range g.units {
			obj, err := c.compile(ctx, u)
			if err != nil {
				_ = state.SaveState(state.Path(buildDir), st)
				return nil, err
			}
			if obj != "" {
				objects = append(objects, obj)
			}
		}
		b.Log.Printf("\n")
	}

	if err := state.SaveState(state.Path(buildDir), st); err != nil {
		b.Log.Warn("Warning: failed to save build state: %v\n", err)
	}

	art := &Artifact{
		ELF:     filepath.Join(buildDir, "firmware.elf"),
		Bin:     filepath.Join(buildDir, "firmware.bin"),
		Map:     filepath.Join(buildDir, "firmware.map"),
		Modules: modules,
	}

	b.Log.Printf("Linking...\n")
	link := append(append([]string{}, objects...), "-o", art.ELF)
	link = append(link, LinkFlags(board, platform.LinkerScript(), art.Map)...)
	if err := b.run(ctx, tc.CXX(), link); err != nil {
		return nil, fmt.Errorf("linking failed: %w", err)
	}

	b.Log.Printf("Creating binary...\n")
	if err := b.run(ctx, tc.Objcopy(), []string{"-O", "binary", art.ELF, art.Bin}); err != nil {
		return nil, fmt.Errorf("failed to create binary: %w", err)
	}

	b.Log.Printf("\n")
	b.Log.Success("Build complete!\n")
	b.Log.Printf("Output files:\n  %s\n  %s\n", art.ELF, art.Bin)
	if info, err := os.Stat(art.Bin); err == nil {
		art.Size = info.Size()
		b.Log.Printf("  Binary size: %d bytes\n", art.Size)
	}
	return art, nil
}

func (b *Builder) validateSources(project *config.ProjectConfig) error {
	if len(project.Sources) == 0 {
		return fmt.Errorf("%s lists no sources", config.ProjectFile)
	}
	var missing []string
	for _, src := range project.Sources {
		if !exists(filepath.Join(b.Root, src)) {
			missing = append(missing, src)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("source files not found: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (b *Builder) modules(project *config.ProjectConfig) []string {
	if len(project.HALModules) > 0 {
		b.Log.Printf("Using manually specified HAL modules: %s\n\n", strings.Join(project.HALModules, ", "))
		return project.HALModules
	}

	b.Log.Printf("Auto-detecting HAL modules from source files...\n")
	modules := DetectModules(b.Root, project.Sources)
	if len(modules) == 0 {
		b.Log.Printf("No HAL modules detected (using core modules only)\n\n")
	} else {
		b.Log.Printf("Detected modules: %s\n\n", strings.Join(modules, ", "))
	}
	return modules
}

func (b *Builder) run(ctx context.Context, name string, args []string) error {
	cmd := runner.Command{Name: name, Args: args, Dir: b.Root}
	b.Log.Debug("Running: %s\n", cmd)
	_, err := runner.Run(ctx, b.Invoker, cmd)
	return err
}

// compiler compiles single units and tracks their digests.
type compiler struct {
	b        *Builder
	tc       Toolchain
	board    config.BoardProfile
	platform Platform
	state    *state.State

	includeDirs []string
	includes    map[string][]string // resolved direct includes per file
}

// compile builds one unit and returns its absolute object path.
// Missing vendor files are skipped and yield "".
func (c *compiler) compile(ctx context.Context, u compileUnit) (string, error) {
	src := u.source
	if !filepath.IsAbs(src) {
		src = filepath.Join(c.b.Root, src)
	}
	display := filepath.Base(u.source)
	if !filepath.IsAbs(u.source) {
		display = u.source
	}

	if !exists(src) {
		c.b.Log.Printf("  Skipping %s (not found)\n", display)
		return "", nil
	}

	obj := filepath.Join(c.b.Root, u.object)
	tool, args, err := c.command(src, obj)
	if err != nil {
		return "", err
	}

	digest, err := state.Digest(src, c.dependencies(src), append([]string{tool}, args...))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", display, err)
	}
	if c.state.UpToDate(u.object, obj, digest) {
		c.b.Log.Debug("  %s is up to date\n", display)
		return obj, nil
	}

	c.b.Log.Printf("  %s -> %s\n", display, filepath.Base(obj))
	if err := os.MkdirAll(filepath.Dir(obj), 0755); err != nil {
		return "", err
	}
	if err := c.b.run(ctx, tool, args); err != nil {
		return "", fmt.Errorf("compilation failed for %s: %w", display, err)
	}
	c.state.Record(u.object, u.source, digest)
	return obj, nil
}

// command returns the compiler and arguments for src.
func (c *compiler) command(src, obj string) (string, []string, error) {
	args := []string{"-c", src, "-o", obj}

	switch strings.ToLower(filepath.Ext(src)) {
	case ".s":
		return c.tc.CC(), append(args, "-mcpu="+c.board.CPU, "-mthumb"), nil
	case ".c":
		return c.tc.CC(), append(args, c.codegen()...), nil
	case ".cpp", ".cc", ".cxx":
		return c.tc.CXX(), append(args, c.codegen()...), nil
	}
	return "", nil, fmt.Errorf("unknown file type: %s", src)
}

// dependencies returns every header reachable from src through #include
// directives, sorted. Headers that cannot be found on the include path
// (toolchain system headers) are left out.
func (c *compiler) dependencies(src string) []string {
	seen := make(map[string]bool)
	var walk func(file string)
	walk = func(file string) {
		for _, dep := range c.directIncludes(file) {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			walk(dep)
		}
	}
	walk(src)

	deps := make([]string, 0, len(seen))
	for dep := range seen {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

func (c *compiler) directIncludes(file string) []string {
	if deps, ok := c.includes[file]; ok {
		return deps
	}

	var deps []string
	if f, err := os.Open(file); err == nil {
		for _, name := range ParseIncludes(f) {
			if dep := c.resolveInclude(filepath.Dir(file), name); dep != "" {
				deps = append(deps, dep)
			}
		}
		f.Close()
	}
	c.includes[file] = deps
	return deps
}

// resolveInclude looks for name next to the including file first, then
// along the -I directories in order.
func (c *compiler) resolveInclude(dir, name string) string {
	for _, base := range append([]string{dir}, c.includeDirs...) {
		candidate := filepath.Join(base, filepath.FromSlash(name))
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

func (c *compiler) codegen() []string {
	args := CompileFlags(c.board)
	for _, d := range Defines(c.board) {
		args = append(args, "-D"+d)
	}
	for _, inc := range c.includeDirs {
		args = append(args, "-I"+inc)
	}
	return args
}

func userUnits(sources []string) []compileUnit {
	units := make([]compileUnit, 0, len(sources))
	for _, src := range sources {
		clean := filepath.Clean(src)
		// The source extension stays so main.c and main.cpp get distinct objects.
		obj := clean + ".o"
		// Keep sources from outside the project inside build/obj.
		obj = strings.ReplaceAll(obj, "..", "__")
		units = append(units, compileUnit{source: clean, object: filepath.Join("build", "obj", "user", obj)})
	}
	return units
}

func vendorUnits(group string, files []string) []compileUnit {
	units := make([]compileUnit, 0, len(files))
	for _, f := range files {
		obj := filepath.Base(f) + ".o"
		units = append(units, compileUnit{source: f, object: filepath.Join("build", "obj", group, obj)})
	}
	return units
}

func usesUSB(modules []string) bool {
	for _, m := range modules {
		if m == "pcd" || m == "pcd_ex" {
			return true
		}
	}
	return false
}
