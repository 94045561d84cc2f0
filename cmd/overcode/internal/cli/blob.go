package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ErrBlobMissing is returned by blob exists when no blob has the hash.
var ErrBlobMissing = errors.New("blob not found")

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Inspect stored file contents",
}

var blobCatCmd = &cobra.Command{
	Use:   "cat <hash>",
	Short: "Write the content stored for a hash to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlobCat,
}

var blobExistsCmd = &cobra.Command{
	Use:   "exists <hash>",
	Short: "Report whether a blob is stored (exit status 1 if not)",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlobExists,
}

func init() {
	blobCmd.AddCommand(blobCatCmd, blobExistsCmd)
	rootCmd.AddCommand(blobCmd)
}

func runBlobCat(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	_, blobs := p.stores()

	data, err := blobs.Read(args[0])
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runBlobExists(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	_, blobs := p.stores()

	if !blobs.Exists(args[0]) {
		printf(cmd.OutOrStdout(), "false\n")
		return fmt.Errorf("%w: %s", ErrBlobMissing, args[0])
	}
	printf(cmd.OutOrStdout(), "true\n")
	return nil
}
