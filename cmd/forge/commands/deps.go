package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/starforge/starforge/pkg/label"
	"github.com/starforge/starforge/pkg/loader"
)

// labels interns the target labels given on the command line, so repeated
// invocations within one process (watch mode) parse each spelling once.
var labels label.Interner

func newDepsCommand() *cobra.Command {
	var (
		pkg      string
		graphDOT bool
	)

	cmd := &cobra.Command{
		Use:   "deps <build-file> [target...]",
		Short: "Print the labels each rule depends on",
		Long: `Evaluate a build file and print, for each rule, every label it
references: labels in attribute values under every select() branch, plus
the select() condition labels themselves. The reserved default condition
is not a dependency and is never listed.

Optional target arguments (absolute labels) restrict output to those rules.
With --graph, the intra-package dependency graph is checked for cycles and
printed in Graphviz DOT format instead.`,
		Example: `  # All rules
  forge deps --package apps/hello apps/hello/BUILD

  # One rule only
  forge deps --package apps/hello apps/hello/BUILD //apps/hello:srcs

  # Graphviz output
  forge deps --package apps/hello --graph apps/hello/BUILD | dot -Tsvg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLoader()
			if err != nil {
				return err
			}

			wanted := make(map[label.Label]bool)
			for _, arg := range args[1:] {
				target, err := labels.Parse(arg)
				if err != nil {
					return err
				}
				wanted[target] = true
			}

			file, err := l.EvalFile(cmd.Context(), pkg, args[0])
			if err != nil {
				return err
			}

			if graphDOT {
				graph, err := loader.BuildRuleGraph(file)
				if err != nil {
					return err
				}
				fmt.Print(graph.ToDOT())
				return nil
			}

			selected := file.Rules
			if len(wanted) > 0 {
				selected = nil
				for _, r := range file.Rules {
					if wanted[r.Label] {
						selected = append(selected, r)
					}
				}
				if len(selected) == 0 {
					return fmt.Errorf("no rules in %s match the given targets", args[0])
				}
			}

			if jsonOutput {
				return printDepsJSON(selected)
			}
			printDeps(selected)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package path the build file belongs to")
	cmd.Flags().BoolVar(&graphDOT, "graph", false, "print the dependency graph in DOT format")

	return cmd
}

func printDeps(rules []*loader.Rule) {
	for _, r := range rules {
		fmt.Printf("%s\n", r.Label)
		for _, dep := range r.Deps() {
			fmt.Printf("  %s\n", dep)
		}
	}
}

func printDepsJSON(rules []*loader.Rule) error {
	out := make(map[string][]string, len(rules))
	for _, r := range rules {
		deps := make([]string, 0, len(r.Deps()))
		for _, dep := range r.Deps() {
			deps = append(deps, dep.String())
		}
		out[r.Label.String()] = deps
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
