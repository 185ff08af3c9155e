package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "deschemaer",
	Short:         "Turn Avro CDC messages into plain JSON",
	Long:          `deschemaer decodes the Avro key and value of each CDC message with fixed schemas and emits one flat JSON document per message.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decodeCmd)
}
