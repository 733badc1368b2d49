package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
	"github.com/nerrad567/prodev-core/internal/user"
	"github.com/nerrad567/prodev-core/migrations"
)

// defaultOlderAge is the age threshold used by older and concurrent.
const defaultOlderAge = 25

// withApp opens the app for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(a *app) error) (err error) {
	a, err := openApp(cmd.Context(), c.cfg, c.log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(a)
}

// printJSON writes v to w as one line of JSON.
func printJSON(w io.Writer, v any) error {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (c *cli) newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and report their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDatabase(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only status after this point

			if c.v.GetBool("down") {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return fmt.Errorf("rolling back migration: %w", err)
				}
			} else if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
			if err != nil {
				return fmt.Errorf("reading migration status: %w", err)
			}
			for _, m := range applied {
				fmt.Fprintf(c.stdout, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			for _, m := range pending {
				fmt.Fprintf(c.stdout, "pending  %s  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}
	cmd.Flags().Bool("down", false, "roll back the most recent migration instead")
	return cmd
}

func (c *cli) newSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert users from a CSV file, skipping ids that already exist",
		Long: `seed reads a CSV file with the header name,email,age and an optional
user_id column, in any order. Rows whose user_id already exists are skipped;
rows that cannot be parsed or fail validation are counted as malformed.
Use --csv - to read standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := c.v.GetString("csv")
			if path == "" {
				return errors.New("--csv is required")
			}

			var src io.Reader
			if path == "-" {
				src = cmd.InOrStdin()
			} else {
				f, err := os.Open(path)
				if err != nil {
					return fmt.Errorf("opening seed file: %w", err)
				}
				defer f.Close() //nolint:errcheck // Read-only file
				src = f
			}

			return c.withApp(cmd, func(a *app) error {
				res, err := a.users.Seed(cmd.Context(), src)
				if err != nil {
					return err
				}
				return printJSON(c.stdout, res)
			})
		},
	}
	cmd.Flags().String("csv", "", "CSV file to seed from, or - for stdin")
	return cmd
}

func (c *cli) newStreamCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stream",
		Short: "Print every user, one row at a time from a single cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				users, err := a.users.Stream(cmd.Context())
				if err != nil {
					return err
				}
				return printAll(cmd, c.stdout, users)
			})
		},
	}
}

func (c *cli) newBatchesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Print every user in batches, one JSON array per batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				batches, err := a.users.Batches(cmd.Context(), c.intFlag("size", a.layer.BatchSize()))
				if err != nil {
					return err
				}
				return printAll(cmd, c.stdout, batches)
			})
		},
	}
	cmd.Flags().Int("size", 0, "rows per batch (default access.batch_size)")
	return cmd
}

func (c *cli) newPagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Print every user a page at a time, each page on its own connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				pages, err := a.users.Pages(c.intFlag("size", a.layer.PageSize()))
				if err != nil {
					return err
				}
				return printAll(cmd, c.stdout, pages)
			})
		},
	}
	cmd.Flags().Int("size", 0, "rows per page (default access.page_size)")
	return cmd
}

func (c *cli) newOlderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "older",
		Short: "Print users older than --age, filtering the table batch by batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				age := int64(c.intFlag("age", defaultOlderAge))
				users, err := a.users.OlderThan(cmd.Context(), c.intFlag("size", a.layer.BatchSize()), age)
				if err != nil {
					return err
				}
				return printAll(cmd, c.stdout, users)
			})
		},
	}
	cmd.Flags().Int("age", defaultOlderAge, "print users strictly older than this")
	cmd.Flags().Int("size", 0, "rows per batch (default access.batch_size)")
	return cmd
}

func (c *cli) newAverageAgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "average-age",
		Short: "Print the mean age, streaming each age once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				avg, err := a.users.AverageAge(cmd.Context())
				if errors.Is(err, dbaccess.ErrNoData) {
					fmt.Fprintln(c.stdout, "Average age of users: n/a (no users)")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "Average age of users: %.2f\n", avg)
				return nil
			})
		},
	}
}

func (c *cli) newConcurrentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concurrent",
		Short: "Fetch all users and users older than --age concurrently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				all, older, err := a.users.AllAndOlder(cmd.Context(), int64(c.intFlag("age", defaultOlderAge)))
				if err != nil {
					return err
				}
				return printJSON(c.stdout, map[string][]user.User{
					"all":   nonNil(all),
					"older": nonNil(older),
				})
			})
		},
	}
	cmd.Flags().Int("age", defaultOlderAge, "threshold for the second query")
	return cmd
}

func (c *cli) newCachedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cached",
		Short: "List users twice, the second time from the query cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(a *app) error {
				cache := a.layer.Cache()
				for _, call := range []string{"first", "second"} {
					users, err := a.users.List(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(c.stdout, "%s call: %d users (cache hits %d, misses %d)\n",
						call, len(users), cache.Hits(), cache.Misses())
				}
				return nil
			})
		},
	}
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// No configuration is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintf(c.stdout, "prodev %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}

// printAll writes each value p yields as one line of JSON.
func printAll[T any](cmd *cobra.Command, w io.Writer, p dbaccess.Producer[T]) error {
	enc := json.NewEncoder(w)
	for v, err := range dbaccess.All(cmd.Context(), p) {
		if err != nil {
			return err
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func nonNil(users []user.User) []user.User {
	if users == nil {
		return []user.User{}
	}
	return users
}
