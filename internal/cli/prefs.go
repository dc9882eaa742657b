package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/crdt"
	"github.com/loomdb/loom/subtree"
)

// ConfigSubtree is the nested key-value subtree the preference commands use.
const ConfigSubtree = "config"

// NewSetUserCommand creates "set-user": store name and email under user/.
func NewSetUserCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-user <name> <email>",
		Short: "Set the current user's name and email",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				op, err := t.NewOperation()
				if err != nil {
					return err
				}
				config, err := subtree.NewKVStore(op, ConfigSubtree)
				if err != nil {
					return err
				}
				if err := config.SetPath([]string{"user", "name"}, args[0]); err != nil {
					return err
				}
				if err := config.SetPath([]string{"user", "email"}, args[1]); err != nil {
					return err
				}
				if _, err := op.Commit(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user set to %s <%s>\n", args[0], args[1])
				return nil
			})
		},
	}
}

// NewShowUserCommand creates "show-user": print the stored user.
func NewShowUserCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show-user",
		Short: "Show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				config, err := subtree.NewKVViewer(t, ConfigSubtree)
				if err != nil {
					return err
				}
				name, err := config.GetStringPath([]string{"user", "name"})
				if err != nil {
					return err
				}
				email, err := config.GetStringPath([]string{"user", "email"})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", name, email)
				return nil
			})
		},
	}
}

// NewSetPrefCommand creates "set-pref": store a value at a slash path.
func NewSetPrefCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-pref <path> <value>",
		Short: "Set a preference at a slash-separated path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				op, err := t.NewOperation()
				if err != nil {
					return err
				}
				config, err := subtree.NewKVStore(op, ConfigSubtree)
				if err != nil {
					return err
				}
				if err := config.SetPath(crdt.SplitPath(args[0]), args[1]); err != nil {
					return err
				}
				if _, err := op.Commit(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

// NewShowPrefsCommand creates "show-prefs": print the config subtree.
func NewShowPrefsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show-prefs",
		Short: "Show all preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				config, err := subtree.NewKVViewer(t, ConfigSubtree)
				if err != nil {
					return err
				}
				all, err := config.GetAll()
				if err != nil {
					return err
				}
				printNested(cmd, all, "")
				return nil
			})
		},
	}
}

// printNested walks live keys depth-first, printing slash paths.
func printNested(cmd *cobra.Command, kv *crdt.KVNested, prefix string) {
	keys := kv.Keys()
	sort.Strings(keys)
	for _, key := range keys {
		v, _ := kv.Get(key)
		path := key
		if prefix != "" {
			path = prefix + "/" + key
		}
		switch val := v.(type) {
		case crdt.String:
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", path, string(val))
		case *crdt.KVNested:
			printNested(cmd, val, path)
		}
	}
}

// NewTreesCommand creates "trees": list every tree in the database.
func NewTreesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trees",
		Short: "List all trees in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession()
			if err != nil {
				return err
			}
			trees, err := s.db.AllTrees()
			if err != nil {
				return err
			}
			for _, t := range trees {
				name, err := t.Name()
				if err != nil {
					name = "(unnamed)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", t.RootID(), name)
			}
			return s.flush()
		},
	}
}
