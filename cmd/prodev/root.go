package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nerrad567/prodev-core/internal/infrastructure/config"
	"github.com/nerrad567/prodev-core/internal/infrastructure/logging"
)

// envPrefix namespaces the environment variables viper reads for flags.
// Flag "database-path" is read from PRODEV_DATABASE_PATH, the same name
// config.Load honours.
const envPrefix = "prodev"

// cli carries state shared by every subcommand of one root command.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	v      *viper.Viper

	cfg *config.Config
	log *logging.Logger
}

// newRootCommand builds the prodev command tree. Output goes to stdout and
// logs to stderr so results can be piped.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		v:      viper.New(),
	}

	root := &cobra.Command{
		Use:   "prodev",
		Short: "Resilient, memory-bounded access to the user_data store",
		Long: `prodev reads and writes the user_data table through an access layer
that gives every operation its own connection, retries transient failures,
caches repeated reads and streams large results in rows, batches or pages.

Configuration is read from --config (YAML), .env files and PRODEV_*
environment variables, in that order of increasing precedence. Flags
override all of them.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "YAML configuration file (defaults only when empty)")
	flags.String("database-driver", "", "store driver: sqlite3 or mysql")
	flags.String("database-path", "", "SQLite database file")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: json or text")

	root.AddCommand(
		c.newMigrateCommand(),
		c.newSeedCommand(),
		c.newStreamCommand(),
		c.newBatchesCommand(),
		c.newPagesCommand(),
		c.newOlderCommand(),
		c.newAverageAgeCommand(),
		c.newConcurrentCommand(),
		c.newCachedCommand(),
		c.newServeCommand(),
		c.newVersionCommand(),
	)

	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

// setup binds flags and environment through viper, loads the configuration
// and builds the logger.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Only the global flags read PRODEV_* variables; command flags such
	// as --size or --down are set on the command line or not at all.
	var bindErr error
	cmd.Root().PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if err := c.v.BindEnv(f.Name); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return fmt.Errorf("binding environment: %w", bindErr)
	}

	cfg, err := config.Load(c.v.GetString("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	overrides := []struct {
		key string
		dst *string
	}{
		{"database-driver", &cfg.Database.Driver},
		{"database-path", &cfg.Database.Path},
		{"log-level", &cfg.Logging.Level},
		{"log-format", &cfg.Logging.Format},
	}
	for _, o := range overrides {
		if v := c.v.GetString(o.key); v != "" {
			*o.dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	c.cfg = cfg
	c.log = logging.NewWithWriter(cfg.Logging, version, c.stderr)
	return nil
}

// intFlag returns the named int flag as bound through viper, or def when
// neither the flag nor its environment variable is set.
func (c *cli) intFlag(name string, def int) int {
	if c.v.IsSet(name) {
		return c.v.GetInt(name)
	}
	return def
}
