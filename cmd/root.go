// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "strix",
	Short: "Strix - packet crafting and dissection toolkit",
	Long: `Strix is a layered packet crafting and dissection library with a small
CLI on top. It decodes captured frames into typed protocol layers
(Ethernet, IP, TCP, UDP, ARP, DNS, 802.11, RadioTap, BFD, RTP, VXLAN
and more), reserializes them byte-exactly, reassembles fragmented
IPv4 and TCP streams, and reads or writes pcap files.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path")

	rootCmd.AddCommand(sniffCmd)
	rootCmd.AddCommand(readCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
