package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	compression "github.com/deploymenttheory/go-flash-workflow/internal/common/compressionutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
)

var packFormat string

// packCmd builds a bundle from a directory
var packCmd = &cobra.Command{
	Use:   "pack <dir> <archive>",
	Short: "Create a workflow bundle from a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := PackBundle(args[0], args[1], packFormat, appConfig.Workflow.FileName); err != nil {
			return err
		}
		appLog.LogSuccess("Bundle created", map[string]interface{}{
			"source":  args[0],
			"archive": args[1],
		})
		return nil
	},
}

func init() {
	packCmd.Flags().StringVar(&packFormat, "format", "auto", "archive format: auto, zip, tar, tar.gz, tar.bz2 or tar.xz")
}

// PackBundle archives dir into archivePath. dir must hold the manifest.
func PackBundle(dir, archivePath, format, manifestName string) error {
	if !fsutil.FileExists(filepath.Join(dir, manifestName)) {
		return fmt.Errorf("%w: %s has no %s", errors.ErrNotFound, dir, manifestName)
	}

	f, err := compression.ParseFormat(format)
	if err != nil {
		return err
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	absArchive, err := filepath.Abs(archivePath)
	if err != nil {
		return err
	}
	if fsutil.IsWithin(absDir, absArchive) {
		return fmt.Errorf("%w: archive %s must not be written inside %s", errors.ErrInvalidParameter, archivePath, dir)
	}

	return compression.CompressArchive(dir, archivePath, f)
}
