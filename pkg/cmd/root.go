package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/nodevenv/nodevenv/pkg/config"
	"github.com/nodevenv/nodevenv/pkg/env"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	flagVerbose bool
	flagQuiet   bool

	// logger is configured in PersistentPreRunE and shared by all
	// subcommands.
	logger *log.Logger
)

func NewRootCmd() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:   "nodevenv [flags] ENV_DIR",
		Short: "Isolated Node.js environments",
		Long: `nodevenv installs a self-contained Node.js runtime and npm into a
directory and generates shell activation scripts for it, optionally
layered onto an existing Python virtualenv.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
			switch {
			case flagQuiet:
				logger.SetLevel(log.ErrorLevel)
			case flagVerbose:
				logger.SetLevel(log.DebugLevel)
			default:
				logger.SetLevel(log.InfoLevel)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, v, args)
		},
	}

	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose mode")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "quiet mode")

	flags := root.Flags()
	flags.StringP("node", "n", "", `node.js version to install: an exact version, a prefix ("18"),
"latest", "lts", or "system" to reuse the system-wide node`)
	flags.String("npm", "", "npm version to install instead of the bundled one")
	flags.StringSlice("mirror", nil, "distribution mirror base URLs, tried in order")
	flags.String("cache-dir", "", "local artifact cache directory")
	flags.Int("retries", 2, "download retries per mirror")
	flags.Bool("source", false, "build node.js from source even when a prebuilt binary exists")
	flags.IntP("jobs", "j", 2, "parallel jobs for source compilation")
	flags.Float64("load-average", 0, "maximum load average for source compilation")
	flags.Bool("without-ssl", false, "build node.js without SSL support")
	flags.Bool("debug", false, "build a debug variant of node.js")
	flags.Bool("profile", false, "enable profiling for node.js")
	flags.BoolP("clean-src", "c", false, "remove the src directory after installation")
	flags.StringP("requirements", "r", "", "install all packages listed in the given requirements file")
	flags.Int("install-concurrency", 1, "how many packages to install in parallel")
	flags.String("prompt", "", "alternative prompt prefix for this environment")
	flags.StringSlice("dialect", nil, "shell dialects to generate activation scripts for (bash, fish, csh, cmd)")
	flags.BoolP("python-virtualenv", "p", false, "splice activation into the active python virtualenv ($VIRTUAL_ENV)")
	flags.String("python-venv-path", "", "splice activation into the python virtualenv at this path")
	flags.Bool("force", false, "install into a pre-existing environment directory")

	for key, flag := range map[string]string{
		"node":                "node",
		"npm":                 "npm",
		"mirrors":             "mirror",
		"cache_dir":           "cache-dir",
		"retries":             "retries",
		"source":              "source",
		"jobs":                "jobs",
		"load_average":        "load-average",
		"without_ssl":         "without-ssl",
		"debug":               "debug",
		"profile":             "profile",
		"clean_src":           "clean-src",
		"requirements":        "requirements",
		"install_concurrency": "install-concurrency",
		"prompt":              "prompt",
		"dialects":            "dialect",
		"python_venv":         "python-venv-path",
		"force":               "force",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(newListCmd(v))
	root.AddCommand(newVersionCmd())

	return root
}

func runCreate(cmd *cobra.Command, v *viper.Viper, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	opts, err := config.Resolve(v, wd)
	if err != nil {
		return err
	}

	useVenv, _ := cmd.Flags().GetBool("python-virtualenv")
	if useVenv && opts.PythonVenv == "" {
		venv := os.Getenv("VIRTUAL_ENV")
		if venv == "" {
			return usageError{errors.New("no python virtualenv is active")}
		}
		opts.PythonVenv = venv
	}

	switch {
	case len(args) == 1:
		opts.EnvDir = args[0]
	case opts.PythonVenv != "":
		// The venv itself becomes the prefix, sharing one activation
		// boundary.
		opts.EnvDir = opts.PythonVenv
		opts.Force = true
	case len(args) == 0:
		return usageError{errors.New("an ENV_DIR argument is required (or --python-virtualenv)")}
	default:
		return usageError{fmt.Errorf("expected one ENV_DIR argument, got %d", len(args))}
	}

	creator := env.NewCreator(opts, logger)
	err = creator.Create(cmd.Context())
	if errors.Is(err, env.ErrPrefixExists) && stdinIsTerminal() {
		if confirmOverwrite(opts.EnvDir) {
			opts.Force = true
			err = creator.Create(cmd.Context())
		}
	}
	return err
}

// confirmOverwrite asks before reusing a non-empty prefix when the
// user did not pass --force.
func confirmOverwrite(envDir string) bool {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Environment %s already exists. Install into it anyway?", envDir)).
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return confirmed
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
