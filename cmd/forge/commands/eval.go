package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starforge/starforge/pkg/buildtype"
	"github.com/starforge/starforge/pkg/loader"
)

func newEvalCommand() *cobra.Command {
	var pkg string

	cmd := &cobra.Command{
		Use:   "eval <build-file>",
		Short: "Evaluate a build file and print its typed rules",
		Long: `Evaluate a Starlark build file and print every rule it declares,
with all attributes converted to their declared types. Values are printed
in canonical form, so the output is stable across runs.`,
		Example: `  # Evaluate a build file as package "apps/hello"
  forge eval --package apps/hello apps/hello/BUILD

  # Machine-readable output
  forge eval --package apps/hello --json apps/hello/BUILD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLoader()
			if err != nil {
				return err
			}

			file, err := l.EvalFile(cmd.Context(), pkg, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printRulesJSON(file)
			}
			printRules(file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package path the build file belongs to")

	return cmd
}

func printRules(file *loader.File) {
	for i, r := range file.Rules {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%s(\n", r.Kind)
		for _, attr := range r.AttrNames() {
			fmt.Printf("    %s = %s,\n", attr, buildtype.Repr(r.Attr(attr)))
		}
		fmt.Println(")")
	}
	log.Debug().Int("rules", len(file.Rules)).Str("package", file.Package).Msg("Evaluation finished")
}

type ruleJSON struct {
	Label string            `json:"label"`
	Kind  string            `json:"kind"`
	Attrs map[string]string `json:"attrs"`
}

func printRulesJSON(file *loader.File) error {
	out := make([]ruleJSON, 0, len(file.Rules))
	for _, r := range file.Rules {
		attrs := make(map[string]string, len(r.Attrs))
		for _, attr := range r.AttrNames() {
			attrs[attr] = buildtype.Repr(r.Attr(attr))
		}
		out = append(out, ruleJSON{
			Label: r.Label.String(),
			Kind:  r.Kind,
			Attrs: attrs,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
