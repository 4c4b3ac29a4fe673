package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oriys/gatewayctl/internal/observability"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the document and print the normalized descriptors",
		Long:  "Loads and validates the document for the selected stage without calling any remote API, then prints the normalized stage, roles, functions and gateways",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resolve()
			if err != nil {
				return err
			}
			switch outputFmt {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			case "yaml", "table", "":
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(res)
			}
			return fmt.Errorf("unknown output format %q", outputFmt)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gatewayctl", observability.Version)
		},
	}
}
