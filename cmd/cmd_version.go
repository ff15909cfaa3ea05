package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const Version = "v0.2.0"

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show otc-desk version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(Version)
			return nil
		},
	}
}
