package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apicentric/pulsed/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file or directory]",
	Short: "Validate service definitions without starting them",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := args[0]

	result, err := config.LoadDirectory(path)
	if err != nil {
		// Not a directory: try as a single file.
		def, fileErr := config.LoadFromFile(path)
		if fileErr != nil {
			return fileErr
		}
		cmd.Printf("%s: ok (%d endpoints)\n", def.Name, len(def.Endpoints))
		return nil
	}

	for _, def := range result.Definitions {
		cmd.Printf("%s: ok (%d endpoints)\n", def.Name, len(def.Endpoints))
	}
	for _, loadErr := range result.Errors {
		cmd.Printf("%s: %v\n", loadErr.Path, loadErr.Err)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d definition(s) failed validation", len(result.Errors))
	}
	return nil
}
