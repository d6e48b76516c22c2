// Command scenectl inspects scene catalogs and bundles offline.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("[scenectl]"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scenectl",
		Short:         "Inspect scene catalogs, bundles and the transition journal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config/scenehost.toml", "scenehost config file")

	root.AddCommand(newDigestCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newHistoryCmd())
	return root
}
