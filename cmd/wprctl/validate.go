package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/wprkit/internal/mmfile"
	"github.com/joshuapare/wprkit/wpr/verify"
)

func init() {
	rootCmd.AddCommand(newValidateCmd())
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate WPR manifest structure",
		Long: `The validate command checks a WPR manifest for the invariants the
root-of-trust relies on: a terminated header array, aligned offsets, regions
inside the manifest, consistent boot flags and unique falcon ids.

Example:
  wprctl validate wpr.bin
  wprctl validate wpr.bin --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
	return cmd
}

func runValidate(args []string) (err error) {
	path := args[0]

	printVerbose("Validating manifest: %s\n", path)

	blob, unmap, err := mmfile.Map(path)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { err = errors.Join(err, unmap()) }()

	verr := verify.All(blob)

	result := map[string]interface{}{
		"file":  path,
		"valid": verr == nil,
	}
	var ve *verify.ValidationError
	if errors.As(verr, &ve) {
		result["check"] = ve.Type
	}
	if verr != nil {
		result["error"] = verr.Error()
	}

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
		return verr
	}

	printInfo("\nValidating %s...\n\n", path)
	if verr != nil {
		printInfo("  ✗ Validation failed: %v\n", verr)
		printInfo("\nResult: ✗ INVALID\n")
		return verr
	}
	printInfo("  ✓ Header array terminated\n")
	printInfo("  ✓ Offsets aligned\n")
	printInfo("  ✓ Regions in bounds\n")
	printInfo("  ✓ Boot flags consistent\n")
	printInfo("  ✓ Falcon ids unique\n")
	printInfo("\nResult: ✓ VALID\n")
	return nil
}
