package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/wprkit/internal/config"
	"github.com/joshuapare/wprkit/internal/format"
)

var initForce bool

func init() {
	cmd := newInitCmd()
	cmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing file")
	rootCmd.AddCommand(cmd)
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [config]",
		Short: "Write an example build configuration",
		Long: `The init command writes a build configuration with a PMU, FECS and
GPCCS slot and a header-described SEC2 slot. Edit the paths and segments to
match your firmware before running build.

Example:
  wprctl init
  wprctl init gv100.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) == 1 {
				path = args[0]
			}
			return runInit(path)
		},
	}
	return cmd
}

// exampleConfig mirrors a gm20b-class board.
func exampleConfig() *config.Config {
	ctxsw := &config.Segments{
		Boot: config.Segment{Offset: 0x0, Size: 0x400},
		Code: config.Segment{Offset: 0x400, Size: 0x4000},
		Data: config.Segment{Offset: 0x4400, Size: 0x1000},
	}
	gpccs := *ctxsw
	gpccs.Boot.Offset, gpccs.Code.Offset, gpccs.Data.Offset = 0x5400, 0x5800, 0x9800
	return &config.Config{
		WPRBase:        0x80000000,
		Primary:        format.FalconIDPMU,
		BootstrapOwner: format.FalconIDPMU,
		ArgsOffset:     0xF000,
		BlobLimit:      config.DefaultBlobLimit,
		Slots: []config.Slot{
			{ID: format.FalconIDPMU, Kind: config.KindPMU, Image: "pmu/image.bin", Desc: "pmu/desc.bin", Sig: "pmu/sig.bin"},
			{ID: format.FalconIDFECS, Kind: config.KindFECS, Image: "gr/ctxsw.bin", Sig: "gr/fecs_sig.bin", Segments: ctxsw},
			{ID: format.FalconIDGPCCS, Kind: config.KindGPCCS, Image: "gr/ctxsw.bin", Sig: "gr/gpccs_sig.bin", Segments: &gpccs},
			{ID: format.FalconIDSEC2, Kind: config.KindNoLoader, Image: "sec2/image.bin", Header: "sec2/header.bin", Sig: "sec2/sig.bin", Lazy: true},
		},
	}
}

func runInit(path string) error {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := config.Save(path, exampleConfig()); err != nil {
		return err
	}
	printInfo("Wrote %s\n", path)
	return nil
}
