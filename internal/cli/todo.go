package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomdb/loom"
	"github.com/loomdb/loom/subtree"
)

// TodosSubtree is the record-collection subtree the todo commands use.
const TodosSubtree = "todos"

// Todo is the record type stored in the todos subtree.
type Todo struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// NewAddCommand creates the "add" command: insert a new task.
func NewAddCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>",
		Short: "Add a new task to the todo list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				op, err := t.NewOperation()
				if err != nil {
					return err
				}
				todos, err := subtree.NewRowStore[Todo](op, TodosSubtree)
				if err != nil {
					return err
				}
				id, err := todos.Insert(Todo{Title: args[0]})
				if err != nil {
					return err
				}
				if _, err := op.Commit(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s: %s\n", id, args[0])
				return nil
			})
		},
	}
}

// NewCompleteCommand creates the "complete" command: mark a task done.
func NewCompleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task as complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				op, err := t.NewOperation()
				if err != nil {
					return err
				}
				todos, err := subtree.NewRowStore[Todo](op, TodosSubtree)
				if err != nil {
					return err
				}
				todo, err := todos.Get(args[0])
				if err != nil {
					return err
				}
				todo.Completed = true
				if err := todos.Set(args[0], todo); err != nil {
					return err
				}
				if _, err := op.Commit(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "completed %s\n", args[0])
				return nil
			})
		},
	}
}

// NewListCommand creates the "list" command: print all tasks.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withTree(func(t *loom.Tree) error {
				todos, err := subtree.NewRowViewer[Todo](t, TodosSubtree)
				if err != nil {
					return err
				}
				rows, err := todos.Search(func(Todo) bool { return true })
				if err != nil {
					return err
				}
				sort.Slice(rows, func(i, j int) bool { return rows[i].Value.Title < rows[j].Value.Title })
				for _, row := range rows {
					mark := " "
					if row.Value.Completed {
						mark = "x"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s  %s\n", mark, row.ID, row.Value.Title)
				}
				return nil
			})
		},
	}
}
