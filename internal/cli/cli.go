// Package cli provides the command-line interface with injectable io.Writer for testing.
package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"

	"github.com/mergetools/mergecat/internal/archive"
	"github.com/mergetools/mergecat/internal/config"
	"github.com/mergetools/mergecat/internal/discover"
)

// ConfigService provides configuration operations for the CLI.
type ConfigService interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
	ConfigPath() string
	DefaultConfig() *config.Config
}

// ArchiveService provides codec operations for the CLI.
type ArchiveService interface {
	Merge(opts archive.Options, entries []archive.Entry, archivePath string) (*archive.MergeResult, error)
	Split(opts archive.Options, archivePath, outputDir string) (map[string]string, error)
	List(opts archive.Options, archivePath string) ([]archive.Record, error)
	Verify(opts archive.Options, archivePath string) error
}

// DiscoverService provides input discovery operations for the CLI.
type DiscoverService interface {
	Dir(dir, pattern string, exclude []string) ([]string, error)
	NamesRelativeTo(files []string, root string) ([]archive.Entry, error)
	AssertExist(files []string) error
}

// CLI represents the command-line interface with injectable dependencies.
type CLI struct {
	Out     io.Writer // Standard output
	Err     io.Writer // Standard error
	Version string    // Application version
	Args    []string  // Command arguments (like os.Args)

	// Exit function for testability (defaults to os.Exit)
	Exit func(code int)

	// Injectable dependencies (nil means use defaults)
	ConfigSvc   ConfigService
	ArchiveSvc  ArchiveService
	DiscoverSvc DiscoverService

	// Color functions (can be disabled for testing)
	green  func(a ...interface{}) string
	yellow func(a ...interface{}) string
	cyan   func(a ...interface{}) string
	gray   func(a ...interface{}) string
	red    func(a ...interface{}) string
}

// New creates a new CLI with default settings.
func New(version string) *CLI {
	return &CLI{
		Out:     os.Stdout,
		Err:     os.Stderr,
		Version: version,
		Args:    os.Args,
		Exit:    os.Exit,
		green:   color.New(color.FgGreen, color.Bold).SprintFunc(),
		yellow:  color.New(color.FgYellow).SprintFunc(),
		cyan:    color.New(color.FgCyan).SprintFunc(),
		gray:    color.New(color.FgHiBlack).SprintFunc(),
		red:     color.New(color.FgRed).SprintFunc(),
	}
}

// NewForTesting creates a CLI configured for testing (no colors, captured output).
func NewForTesting(out, errOut io.Writer, args []string) *CLI {
	noColor := func(a ...interface{}) string { return fmt.Sprint(a...) }
	exitCode := 0
	return &CLI{
		Out:     out,
		Err:     errOut,
		Version: "test",
		Args:    args,
		Exit:    func(code int) { exitCode = code; _ = exitCode },
		green:   noColor,
		yellow:  noColor,
		cyan:    noColor,
		gray:    noColor,
		red:     noColor,
	}
}

// defaultConfigService wraps the config package functions.
type defaultConfigService struct{}

func (d *defaultConfigService) Load() (*config.Config, error)  { return config.Load() }
func (d *defaultConfigService) Save(cfg *config.Config) error  { return cfg.Save() }
func (d *defaultConfigService) ConfigPath() string             { return config.ConfigPath() }
func (d *defaultConfigService) DefaultConfig() *config.Config  { return config.DefaultConfig() }

// defaultArchiveService wraps the archive package functions.
type defaultArchiveService struct{}

func (d *defaultArchiveService) Merge(opts archive.Options, entries []archive.Entry, archivePath string) (*archive.MergeResult, error) {
	return archive.Merge(opts, entries, archivePath)
}
func (d *defaultArchiveService) Split(opts archive.Options, archivePath, outputDir string) (map[string]string, error) {
	return archive.Split(opts, archivePath, outputDir)
}
func (d *defaultArchiveService) List(opts archive.Options, archivePath string) ([]archive.Record, error) {
	return archive.List(opts, archivePath)
}
func (d *defaultArchiveService) Verify(opts archive.Options, archivePath string) error {
	return archive.Verify(opts, archivePath)
}

// defaultDiscoverService wraps the discover package functions.
type defaultDiscoverService struct{}

func (d *defaultDiscoverService) Dir(dir, pattern string, exclude []string) ([]string, error) {
	return discover.Dir(dir, pattern, exclude)
}
func (d *defaultDiscoverService) NamesRelativeTo(files []string, root string) ([]archive.Entry, error) {
	return discover.NamesRelativeTo(files, root)
}
func (d *defaultDiscoverService) AssertExist(files []string) error {
	return discover.AssertExist(files)
}

// Helper methods to get the service or default
func (c *CLI) configSvc() ConfigService {
	if c.ConfigSvc != nil {
		return c.ConfigSvc
	}
	return &defaultConfigService{}
}

func (c *CLI) archiveSvc() ArchiveService {
	if c.ArchiveSvc != nil {
		return c.ArchiveSvc
	}
	return &defaultArchiveService{}
}

func (c *CLI) discoverSvc() DiscoverService {
	if c.DiscoverSvc != nil {
		return c.DiscoverSvc
	}
	return &defaultDiscoverService{}
}

// Run executes the CLI with the configured arguments.
func (c *CLI) Run() {
	if len(c.Args) < 2 {
		c.PrintUsage()
		return
	}

	switch c.Args[1] {
	case "run":
		c.RunPipeline()
	case "merge":
		c.RunMerge()
	case "split":
		c.RunSplit()
	case "list":
		c.ListEntries()
	case "verify":
		c.RunVerify()
	case "init":
		c.InitConfig()
	case "version", "-v", "--version":
		fmt.Fprintf(c.Out, "mergecat v%s\n", c.Version)
	case "help", "-h", "--help":
		c.PrintUsage()
	default:
		fmt.Fprintf(c.Err, "Unknown command: %s\n", c.Args[1])
		c.PrintUsage()
		c.Exit(1)
	}
}

// PrintUsage prints the help message.
func (c *CLI) PrintUsage() {
	fmt.Fprintln(c.Out, `mergecat - Sentinel-Framed File Archiver

Usage:
  mergecat run <path>...              For each directory: merge it into <path>.txt,
                                      then split the archive into <path>.out/.
                                      For each archive file: split it into <path>.out/
  mergecat merge <dir> [archive]      Merge a directory's files into an archive
                                      (default: <dir>.txt)
  mergecat split <archive> [outdir]   Split an archive back into files
                                      (default: <archive>.out)
  mergecat list <archive>             List the entries in an archive
  mergecat verify <archive>           Recompute and check every entry checksum
  mergecat init                       Create default config file
  mergecat version, -v                Show version
  mergecat help, -h                   Show this help

Config: ~/.mergecat/config.yaml`)
}

// InitConfig creates the default config file.
func (c *CLI) InitConfig() {
	svc := c.configSvc()
	if err := svc.Save(svc.DefaultConfig()); err != nil {
		fmt.Fprintf(c.Err, "Error saving config: %v\n", err)
		c.Exit(1)
		return
	}
	fmt.Fprintf(c.Out, "Created config at %s\n", svc.ConfigPath())
}

// RunPipeline handles the run command: merge each directory argument into an
// archive next to it, then split the archive (or a directly given archive
// file) into a sibling output directory.
func (c *CLI) RunPipeline() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: mergecat run <path>...")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	for _, path := range c.Args[2:] {
		path = config.ExpandPath(path)
		archivePath := path
		outputDir := path + cfg.SplitSuffix

		if info, err := os.Stat(path); err == nil && info.IsDir() {
			archivePath = path + cfg.MergeSuffix
			if !c.mergeDir(cfg, path, archivePath) {
				return
			}
		}

		if !c.splitArchive(cfg, archivePath, outputDir) {
			return
		}
	}
}

// RunMerge handles the merge command.
func (c *CLI) RunMerge() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: mergecat merge <dir> [archive]")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	dir := config.ExpandPath(c.Args[2])
	archivePath := dir + cfg.MergeSuffix
	if len(c.Args) > 3 {
		archivePath = config.ExpandPath(c.Args[3])
	}

	c.mergeDir(cfg, dir, archivePath)
}

// RunSplit handles the split command.
func (c *CLI) RunSplit() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: mergecat split <archive> [outdir]")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	archivePath := config.ExpandPath(c.Args[2])
	outputDir := archivePath + cfg.SplitSuffix
	if len(c.Args) > 3 {
		outputDir = config.ExpandPath(c.Args[3])
	}

	c.splitArchive(cfg, archivePath, outputDir)
}

// mergeDir merges every matching file under dir into archivePath. Returns
// false if the operation failed (Exit has already been called).
func (c *CLI) mergeDir(cfg *config.Config, dir, archivePath string) bool {
	discoverSvc := c.discoverSvc()
	archiveSvc := c.archiveSvc()

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return false
	}

	fmt.Fprintf(c.Out, "%s Scanning %s...\n", c.cyan("=>"), dir)

	files, err := discoverSvc.Dir(dir, cfg.Pattern, cfg.Exclude)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return false
	}

	if cfg.FailFast {
		if err := discoverSvc.AssertExist(files); err != nil {
			fmt.Fprintf(c.Err, "Error: %v\n", err)
			c.Exit(1)
			return false
		}
	}

	entries, err := discoverSvc.NamesRelativeTo(files, dir)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return false
	}

	result, err := archiveSvc.Merge(opts, entries, archivePath)
	if err != nil {
		fmt.Fprintf(c.Err, "Merge failed: %v\n", err)
		c.Exit(1)
		return false
	}

	for _, rec := range result.Written {
		fmt.Fprintf(c.Out, "  %s %s %s %s\n",
			c.green("+"),
			rec.Name,
			c.yellow(formatSize(rec.Size)),
			c.gray(shortChecksum(rec.Checksum)))
	}
	for _, src := range result.Skipped {
		fmt.Fprintf(c.Out, "  %s %s %s\n", c.gray("-"), c.gray(src), c.gray("(skipped)"))
	}

	fmt.Fprintf(c.Out, "%s Merged %d entries into %s\n", c.green("*"), len(result.Written), archivePath)
	return true
}

// splitArchive splits archivePath into outputDir. Returns false if the
// operation failed (Exit has already been called).
func (c *CLI) splitArchive(cfg *config.Config, archivePath, outputDir string) bool {
	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return false
	}

	written, err := c.archiveSvc().Split(opts, archivePath, outputDir)
	if err != nil {
		fmt.Fprintf(c.Err, "Split failed: %v\n", err)
		c.Exit(1)
		return false
	}

	names := make([]string, 0, len(written))
	for name := range written {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.Out, "  %s %s -> %s\n", c.green("+"), name, c.gray(written[name]))
	}

	fmt.Fprintf(c.Out, "%s Split %d entries into %s\n", c.green("*"), len(written), outputDir)
	return true
}

// ListEntries lists the records of an archive without extracting it.
func (c *CLI) ListEntries() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: mergecat list <archive>")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	archivePath := config.ExpandPath(c.Args[2])
	records, err := c.archiveSvc().List(opts, archivePath)
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	if len(records) == 0 {
		fmt.Fprintf(c.Out, "No entries in %s\n", archivePath)
		return
	}

	fmt.Fprintf(c.Out, "Entries in %s:\n\n", c.cyan(archivePath))
	fmt.Fprintf(c.Out, "  %-40s %10s %s\n", "NAME", "SIZE", "SHA256")
	fmt.Fprintf(c.Out, "  %-40s %10s %s\n", "----", "----", "------")
	for _, rec := range records {
		fmt.Fprintf(c.Out, "  %-40s %10s %s\n",
			rec.Name,
			formatSize(rec.Size),
			c.gray(shortChecksum(rec.Checksum)))
	}
}

// RunVerify verifies every checksum in an archive.
func (c *CLI) RunVerify() {
	if len(c.Args) < 3 {
		fmt.Fprintln(c.Out, "Usage: mergecat verify <archive>")
		c.Exit(1)
		return
	}

	cfg, err := c.configSvc().Load()
	if err != nil {
		fmt.Fprintf(c.Err, "Error loading config: %v\n", err)
		c.Exit(1)
		return
	}

	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(c.Err, "Error: %v\n", err)
		c.Exit(1)
		return
	}

	archivePath := config.ExpandPath(c.Args[2])
	if err := c.archiveSvc().Verify(opts, archivePath); err != nil {
		fmt.Fprintf(c.Err, "Verification failed: %v\n", err)
		c.Exit(1)
		return
	}

	fmt.Fprintf(c.Out, "%s Checksums verified for %s\n", c.green("*"), archivePath)
}

// shortChecksum returns the first 12 characters of a hex digest.
func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

// formatSize formats bytes as human-readable
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
