package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// DisviewConfig represents configuration for the disview tool
type DisviewConfig struct {
	PC              string `json:"pc" jsonschema:"title=Program Counter,description=Address to resolve (hex)"`
	Syntax          string `json:"syntax" jsonschema:"title=Syntax,description=Disassembly syntax: gnu intel or go"`
	KernelImage     string `json:"kernelImage" jsonschema:"title=Kernel Image,description=Path to the kernel debug image"`
	KernelThreshold string `json:"kernelThreshold" jsonschema:"title=Kernel Threshold,description=Lowest kernel-space address (hex)"`
	Debug           bool   `json:"debug" jsonschema:"title=Debug,description=Enable debug logging"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for configuration",
	Long:   "Generate JSON schema for the disview configuration",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&DisviewConfig{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(bts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
