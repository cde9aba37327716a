package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	var pkg string

	cmd := &cobra.Command{
		Use:   "validate <build-file>...",
		Short: "Type-check build files",
		Long: `Evaluate build files and report the first type error in each.

This command checks:
  - Starlark syntax validity
  - Label well-formedness
  - Attribute values against their declared types
  - select() structure: condition labels, duplicates, concatenation`,
		Example: `  # Validate a single file
  forge validate --package apps/hello apps/hello/BUILD

  # Validate several files in one package
  forge validate --package apps/hello apps/hello/BUILD apps/hello/BUILD.test`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := newLoader()
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				file, err := l.EvalFile(cmd.Context(), pkg, path)
				if err != nil {
					failed++
					fmt.Printf("FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Printf("OK   %s (%d rules)\n", path, len(file.Rules))
			}

			log.Info().
				Int("files", len(args)).
				Int("failed", failed).
				Msg("Validation finished")

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed validation", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&pkg, "package", "p", "", "package path the build files belong to")

	return cmd
}
