// Package cli is the llmfit command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jguan/llmfit/pkg/config"
	"github.com/jguan/llmfit/pkg/infra/hal"
	"github.com/jguan/llmfit/pkg/infra/hal/apple"
	"github.com/jguan/llmfit/pkg/infra/hal/generic"
	"github.com/jguan/llmfit/pkg/infra/hal/nvidia"
	"github.com/jguan/llmfit/pkg/infra/hal/rocm"
	"github.com/jguan/llmfit/pkg/infra/logger"
	"github.com/jguan/llmfit/pkg/infra/store"
	"github.com/jguan/llmfit/pkg/unit"
	"github.com/jguan/llmfit/pkg/unit/device"
	"github.com/jguan/llmfit/pkg/unit/model"
)

var (
	cliVersion   = "dev"
	cliBuildDate = "unknown"
	cliGitCommit = "unknown"
)

const dbFile = "llmfit.db"

type RootCommand struct {
	cmd  *cobra.Command
	v    *viper.Viper
	cfg  *config.Config
	opts *OutputOptions

	prober  device.Prober
	store   model.ProfileStore
	db      *model.Database
	closers []io.Closer
}

type Option func(*RootCommand)

// WithProber replaces hardware detection, e.g. with a device.StaticProber.
func WithProber(p device.Prober) Option {
	return func(r *RootCommand) {
		r.prober = p
	}
}

// WithProfileStore replaces the configured custom profile store.
func WithProfileStore(s model.ProfileStore) Option {
	return func(r *RootCommand) {
		r.store = s
	}
}

func NewRootCommand(opts ...Option) *RootCommand {
	root := &RootCommand{
		v:    newViper(),
		opts: NewOutputOptions(),
	}
	for _, opt := range opts {
		opt(root)
	}

	cmd := &cobra.Command{
		Use:   "llmfit",
		Short: "llmfit - which language models fit this machine",
		Long: `llmfit compares a catalog of language models against the memory, GPU
and CPU of the current machine. Every model is given a run mode (GPU,
MoE expert offload, CPU+GPU or CPU) and a fit grade, and the results are
ranked best first.

Running llmfit without a command is the same as "llmfit fit".`,
		PersistentPreRunE:  root.persistentPreRunE,
		PersistentPostRunE: root.persistentPostRunE,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.Context(), root, fitOptions{})
		},
	}

	pflags := cmd.PersistentFlags()

	pflags.StringP("output", "o", "table", "Output format (table, json, yaml)")
	pflags.BoolP("quiet", "q", false, "Suppress output")
	pflags.String("config", "", "Config file path (default: ~/.llmfit/config.toml)")
	pflags.String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInput("%v", err)
	})

	root.cmd = cmd

	root.addSubCommands()

	return root
}

func (r *RootCommand) persistentPreRunE(cmd *cobra.Command, args []string) error {
	bindCommandToViper(r.v, cmd)

	format, err := ParseOutputFormat(r.v.GetString("output"))
	if err != nil {
		return invalidInput("%v", err)
	}
	r.opts.Format = format
	r.opts.Quiet = r.v.GetBool("quiet")

	r.cfg, err = config.Load(r.v.GetString("config"))
	if err != nil {
		return err
	}
	if level := r.v.GetString("log-level"); level != "" {
		r.cfg.Logging.Level = level
	}

	if err := r.initLogging(); err != nil {
		return err
	}

	cmd.SetContext(logger.WithCommand(commandContext(cmd), cmd.Name()))
	return nil
}

func (r *RootCommand) persistentPostRunE(cmd *cobra.Command, args []string) error {
	return r.Close()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (r *RootCommand) initLogging() error {
	var out io.Writer = r.opts.ErrWriter
	if r.cfg.Logging.File != "" {
		f, err := logger.OpenFile(r.cfg.Logging.File)
		if err != nil {
			return err
		}
		r.closers = append(r.closers, f)
		out = f
	}

	logger.Reset()
	logger.Init(logger.Config{
		Level:  r.cfg.Logging.Level,
		Format: r.cfg.Logging.Format,
		Output: out,
	})
	return nil
}

// ProfileStore opens the configured custom profile store on first use,
// falling back from SQLite to the JSON file store to memory.
func (r *RootCommand) ProfileStore() model.ProfileStore {
	if r.store != nil {
		return r.store
	}

	dataDir := r.cfg.General.DataDir
	kind := strings.ToLower(r.cfg.Catalog.Store)

	if kind == "sqlite" {
		sqliteStore, err := store.NewSQLiteStore(filepath.Join(dataDir, dbFile))
		if err == nil {
			slog.Debug("using SQLite database for custom profiles", "path", filepath.Join(dataDir, dbFile))
			r.closers = append(r.closers, sqliteStore)
			r.store = sqliteStore
			return r.store
		}
		slog.Warn("failed to open SQLite store, trying file store", "error", err)
		kind = "file"
	}

	if kind == "file" {
		fileStore, err := store.NewFileStore(dataDir)
		if err == nil {
			r.store = fileStore
			return r.store
		}
		slog.Warn("failed to open file store, using memory store", "error", err)
	}

	r.store = model.NewMemoryStore()
	return r.store
}

// Database is the built-in catalog merged with the extra profile directory
// and the custom profile store, later sources winning by name.
func (r *RootCommand) Database(ctx context.Context) (*model.Database, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := model.EmbeddedDatabase()
	if err != nil {
		return nil, err
	}

	if dir := r.cfg.Catalog.ExtraDir; dir != "" {
		extra, err := model.LoadProfilesFromFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, err
		}
		db = db.Merge(extra...)
	}

	custom, _, err := r.ProfileStore().List(ctx, model.ProfileFilter{})
	if err != nil {
		return nil, fmt.Errorf("list custom profiles: %w", err)
	}
	r.db = db.Merge(custom...)
	logger.WithContext(ctx).Debug("loaded catalog", "models", r.db.Len(), "custom", len(custom))
	return r.db, nil
}

// Detect probes the machine and applies configured and per-command
// overrides.
func (r *RootCommand) Detect(ctx context.Context, hw hardwareFlags) (*device.SystemSpecs, error) {
	o, err := hw.overrides(r.cfg.Hardware)
	if err != nil {
		return nil, err
	}

	prober := r.prober
	if prober == nil {
		prober = newDetector(r.cfg.Hardware, o)
	}

	specs, err := prober.Detect(ctx)
	if err != nil {
		return nil, err
	}
	o.Apply(specs)
	specs.Normalize()
	return specs, nil
}

func newDetector(cfg config.HardwareConfig, o hal.Overrides) *hal.Detector {
	run := hal.ExecRunner(cfg.ProbeTimeoutD)
	return hal.NewDetector(
		hal.WithGPUProviders(
			nvidia.NewProvider(nvidia.WithSMIPath(cfg.NvidiaSMIPath), nvidia.WithRunner(run)),
			rocm.NewProvider(rocm.WithSMIPath(cfg.RocmSMIPath), rocm.WithRunner(run)),
			apple.NewProvider(apple.WithRunner(run)),
		),
		hal.WithCPUProvider(generic.NewProvider()),
		hal.WithOverrides(o),
		hal.WithCacheTTL(cfg.CacheTTLD),
	)
}

func (r *RootCommand) addSubCommands() {
	r.cmd.AddCommand(NewVersionCommand(r))
	r.cmd.AddCommand(NewSystemCommand(r))
	r.cmd.AddCommand(NewListCommand(r))
	r.cmd.AddCommand(NewSearchCommand(r))
	r.cmd.AddCommand(NewFitCommand(r))
	r.cmd.AddCommand(NewInfoCommand(r))
	r.cmd.AddCommand(NewCatalogCommand(r))
}

func (r *RootCommand) Command() *cobra.Command {
	return r.cmd
}

func (r *RootCommand) Config() *config.Config {
	return r.cfg
}

func (r *RootCommand) OutputOptions() *OutputOptions {
	return r.opts
}

func (r *RootCommand) SetOutputWriter(w io.Writer) {
	r.opts.Writer = w
}

// Close releases the store and log file opened during the run.
func (r *RootCommand) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *RootCommand) Execute() error {
	return r.cmd.Execute()
}

func (r *RootCommand) ExecuteContext(ctx context.Context) error {
	return r.cmd.ExecuteContext(ctx)
}

// Execute runs the CLI and exits with a status derived from the error
// code: 2 for bad input or config, 3 for unknown models, 4 for probe
// failures, 1 otherwise.
func Execute() {
	root := NewRootCommand()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	root.Close()
	if err != nil {
		PrintError(err, root.OutputOptions())
		stop()
		os.Exit(unit.ExitCode(err))
	}
}

func SetVersion(version, buildDate, gitCommit string) {
	cliVersion = version
	cliBuildDate = buildDate
	cliGitCommit = gitCommit
}

func GetVersion() string {
	return cliVersion
}

func GetBuildDate() string {
	return cliBuildDate
}

func GetGitCommit() string {
	return cliGitCommit
}
