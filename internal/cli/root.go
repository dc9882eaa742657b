// Package cli implements the loom sample embedder: a small todo and
// preferences tool that exercises the engine's public API end to end.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/backend/badgerdb"
	"github.com/loomdb/loom/backend/memory"
	"github.com/loomdb/loom/backend/sqlite"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/errs"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigPath string
	Database   string // scheme:location, overrides config file
	Tree       string // tree name, overrides config file
}

// NewRootCommand creates the root command for the loom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "loom",
		Short: "loom - a content-addressed CRDT database",
		Long:  "A sample embedder for the loom database engine: todos and nested preferences over a Merkle-DAG.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("loading config %q: %w", opts.ConfigPath, err)
			}
			if opts.Database == "" {
				opts.Database = cfg.Database
			}
			if opts.Tree == "" {
				opts.Tree = cfg.Tree
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "loom.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&opts.Database, "database", "", "backend as scheme:location (memory|sqlite|badger)")
	cmd.PersistentFlags().StringVar(&opts.Tree, "tree", "", "tree name to operate on")

	// Add subcommands
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSetUserCommand(opts))
	cmd.AddCommand(NewShowUserCommand(opts))
	cmd.AddCommand(NewSetPrefCommand(opts))
	cmd.AddCommand(NewShowPrefsCommand(opts))
	cmd.AddCommand(NewTreesCommand(opts))

	return cmd
}

// Execute runs the CLI, exiting nonzero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (opts *RootOptions) logger() *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// session bundles an open database with its teardown.
type session struct {
	db    *loom.Database
	flush func() error
}

// openSession opens the configured backend. The returned flush persists and
// releases whatever the backend needs: a file save for the memory backend,
// a close for the durable ones.
func (opts *RootOptions) openSession() (*session, error) {
	scheme, location, ok := strings.Cut(opts.Database, ":")
	if !ok {
		return nil, fmt.Errorf("invalid database %q: want scheme:location", opts.Database)
	}

	log := opts.logger()
	log.Debug("opening backend", "scheme", scheme, "location", location)

	switch scheme {
	case "memory":
		be, err := memory.Load(location)
		if err != nil {
			return nil, err
		}
		return &session{
			db:    loom.New(be),
			flush: func() error { return be.SaveFile(location) },
		}, nil
	case "sqlite":
		be, err := sqlite.Open(location)
		if err != nil {
			return nil, err
		}
		return &session{db: loom.New(be), flush: be.Close}, nil
	case "badger":
		cfg := badgerdb.DefaultConfig(location)
		if opts.Verbose {
			cfg.Logger = log
		}
		be, err := badgerdb.Open(cfg)
		if err != nil {
			return nil, err
		}
		return &session{db: loom.New(be), flush: be.Close}, nil
	}
	return nil, fmt.Errorf("unknown database scheme %q", scheme)
}

// tree finds the configured tree, creating it on first use.
func (s *session) tree(name string) (*loom.Tree, error) {
	trees, err := s.db.FindTree(name)
	if err == nil {
		return trees[0], nil
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}

	settings := crdt.NewKVNested()
	settings.SetString(loom.NameKey, name)
	return s.db.NewTree(settings)
}

// withTree opens the session, resolves the tree, runs fn, and flushes.
func (opts *RootOptions) withTree(fn func(*loom.Tree) error) error {
	s, err := opts.openSession()
	if err != nil {
		return err
	}
	t, err := s.tree(opts.Tree)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.flush()
}
