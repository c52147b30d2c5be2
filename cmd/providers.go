package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers in priority order",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	st, err := buildStack(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	for _, desc := range st.client.Registry().Descriptors() {
		state := "ready"
		if !desc.Configured {
			state = "unconfigured"
		}
		caps := make([]string, len(desc.Capabilities))
		for i, c := range desc.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(ioOut, "%-16s priority=%d %-12s [%s]\n",
			desc.Name, desc.Priority, state, strings.Join(caps, ", "))
	}
	return nil
}
