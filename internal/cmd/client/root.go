package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs the `client` command group. It registers the stream
// consumer and the bench harness.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "client",
		Short: "Client commands",
	}
	root.AddCommand(NewStreamCommand(baseURL))
	root.AddCommand(NewBenchCommand(baseURL))
	return root
}
