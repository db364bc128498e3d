package main

import (
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/joshuapare/wprkit/internal/format"
	"github.com/joshuapare/wprkit/internal/mmfile"
	"github.com/joshuapare/wprkit/wpr/verify"
)

var dumpDesc bool

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpDesc, "desc", false, "Include bootloader descriptors")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <manifest>",
		Short: "Print the headers of a WPR manifest",
		Long: `The dump command prints one row per managed falcon: its WPR header,
the placement recorded in its LSB header and its boot flags.

Example:
  wprctl dump wpr.bin
  wprctl dump wpr.bin --desc --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
	return cmd
}

// dumpRow is one falcon of a dumped manifest.
type dumpRow struct {
	FalconID   uint32 `json:"falcon_id"`
	Name       string `json:"name"`
	Strategy   string `json:"strategy"`
	LSBOffset  uint32 `json:"lsb_offset"`
	UcodeOff   uint32 `json:"ucode_off"`
	UcodeSize  uint32 `json:"ucode_size"`
	DataSize   uint32 `json:"data_size"`
	BLCodeSize uint32 `json:"bl_code_size"`
	BLDataOff  uint32 `json:"bl_data_off"`
	BLDataSize uint32 `json:"bl_data_size"`
	Flags      uint32 `json:"flags"`
	Lazy       bool   `json:"lazy_bootstrap"`
	Owner      uint32 `json:"bootstrap_owner"`
	Status     string `json:"status"`
	Descriptor any    `json:"descriptor,omitempty"`
}

func toRow(e verify.Entry, _ int) dumpRow {
	strategy := "no-loader"
	if e.Loader() {
		strategy = "loader"
	}
	return dumpRow{
		FalconID:   e.WPR.FalconID,
		Name:       format.FalconName(e.LSB.Signature.FalconID),
		Strategy:   strategy,
		LSBOffset:  e.WPR.LSBOffset,
		UcodeOff:   e.LSB.UcodeOff,
		UcodeSize:  e.LSB.UcodeSize,
		DataSize:   e.LSB.DataSize,
		BLCodeSize: e.LSB.BLCodeSize,
		BLDataOff:  e.LSB.BLDataOff,
		BLDataSize: e.LSB.BLDataSize,
		Flags:      e.LSB.Flags,
		Lazy:       e.WPR.LazyBootstrap != 0,
		Owner:      e.WPR.BootstrapOwner,
		Status:     e.WPR.Status.String(),
	}
}

func runDump(args []string) (err error) {
	path := args[0]
	printVerbose("Mapping manifest: %s\n", path)

	blob, unmap, err := mmfile.Map(path)
	if err != nil {
		return fmt.Errorf("failed to open manifest: %w", err)
	}
	defer func() { err = errors.Join(err, unmap()) }()

	m, err := verify.Parse(blob)
	if err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	rows := lo.Map(m.Entries, toRow)
	if dumpDesc {
		for i := range m.Entries {
			d, err := verify.Descriptor(blob, &m.Entries[i])
			if err != nil {
				return err
			}
			if d != nil {
				rows[i].Descriptor = d
			}
		}
	}

	if jsonOut {
		return printJSON(map[string]interface{}{
			"file":    path,
			"size":    m.Size,
			"falcons": rows,
		})
	}

	printInfo("\nWPR manifest %s (%s, %d falcons)\n\n", path, datasize.ByteSize(m.Size).HumanReadable(), len(rows))
	printInfo("%-4s %-8s %-10s %10s %10s %10s %10s %10s %6s\n",
		"ID", "NAME", "STRATEGY", "LSB", "UCODE", "UCODE_SZ", "DATA_SZ", "BL_DATA", "FLAGS")
	for _, r := range rows {
		printInfo("%-4d %-8s %-10s %#10x %#10x %#10x %#10x %#10x %#6x\n",
			r.FalconID, r.Name, r.Strategy, r.LSBOffset, r.UcodeOff, r.UcodeSize, r.DataSize, r.BLDataOff, r.Flags)
		if r.Descriptor != nil {
			printInfo("     %+v\n", r.Descriptor)
		}
	}
	return nil
}
