package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/wprkit/internal/config"
	"github.com/joshuapare/wprkit/internal/firmware"
	"github.com/joshuapare/wprkit/internal/logger"
	"github.com/joshuapare/wprkit/internal/writer"
	"github.com/joshuapare/wprkit/wpr"
	"github.com/joshuapare/wprkit/wpr/alloc"
	"github.com/joshuapare/wprkit/wpr/verify"
)

var (
	buildConfig   string
	buildOutput   string
	buildMapped   bool
	buildNoVerify bool
)

func init() {
	cmd := newBuildCmd()
	cmd.Flags().StringVarP(&buildConfig, "config", "c", config.DefaultConfigFilename, "Build configuration file")
	cmd.Flags().StringVarP(&buildOutput, "output", "o", "wpr.bin", "Manifest output path")
	cmd.Flags().
		BoolVar(&buildMapped, "mmap", false, "Build directly into a shared mapping of the output file")
	cmd.Flags().BoolVar(&buildNoVerify, "no-verify", false, "Skip validating the built manifest")
	rootCmd.AddCommand(cmd)
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a WPR manifest from firmware files",
		Long: `The build command loads the firmware of every configured falcon slot,
lays the signed images out in a WPR manifest and writes it to disk.

Without --mmap the manifest is built in memory and written atomically.
With --mmap it is built in place, and a failed build leaves a partial file.

Example:
  wprctl build -c wprkit.yaml -o wpr.bin
  wprctl build -c wprkit.yaml --mmap --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context())
		},
	}
	return cmd
}

// buildResult is the JSON form of a finished build.
type buildResult struct {
	Output   string `json:"output"`
	Size     uint32 `json:"size"`
	Managed  int    `json:"managed"`
	WPRBase  string `json:"wpr_base"`
	HeapPeak int    `json:"heap_peak"`
	Verified bool   `json:"verified"`
}

func runBuild(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithName(ctx, "wprctl")

	printVerbose("Loading config: %s\n", buildConfig)
	cfg, err := config.Load(buildConfig)
	if err != nil {
		return err
	}

	set, err := firmware.Load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to load firmware: %w", err)
	}
	defer func() { err = errors.Join(err, set.Close()) }()

	heap := &alloc.Accounting{}
	limit := uint32(cfg.BlobLimit.Bytes())
	var allocator alloc.BlobAllocator = &alloc.Mem{Limit: limit}
	if buildMapped {
		allocator = &alloc.Mapped{Path: buildOutput, Limit: limit}
	}

	b, err := wpr.New(set.BuildConfig(cfg), &wpr.Options{Heap: heap, Allocator: allocator})
	if err != nil {
		return err
	}
	m, err := b.Prepare(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to build manifest: %w", err)
	}
	defer func() { err = errors.Join(err, m.Close()) }()

	if !m.Built() {
		return errors.New("no signed falcon images configured")
	}
	if !buildNoVerify {
		if err := verify.All(m.Bytes()); err != nil {
			return fmt.Errorf("built manifest is invalid: %w", err)
		}
	}
	if !buildMapped {
		w := &writer.FileWriter{Path: buildOutput}
		if err := w.WriteManifest(m.Bytes()); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
	}

	result := buildResult{
		Output:   buildOutput,
		Size:     m.Size(),
		Managed:  m.Count(),
		WPRBase:  fmt.Sprintf("%#x", m.Base()),
		HeapPeak: heap.Peak(),
		Verified: !buildNoVerify,
	}
	if jsonOut {
		return printJSON(result)
	}

	printInfo("\nBuilt %s\n", buildOutput)
	printInfo("  Size: %s (%d bytes)\n", datasize.ByteSize(m.Size()).HumanReadable(), m.Size())
	printInfo("  Managed falcons: %d\n", m.Count())
	printInfo("  WPR base: %s\n", result.WPRBase)
	printVerbose("  Peak heap reserved: %s\n", datasize.ByteSize(heap.Peak()).HumanReadable())
	return nil
}
