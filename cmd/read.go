package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/strix/pkg/pdu"
	"firestige.xyz/strix/pkg/sniffer"
)

var readCount int

var readCmd = &cobra.Command{
	Use:   "read <file.pcap>",
	Short: "Dissect and print packets from a pcap file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := sniffer.NewFileSource(args[0])
		if err != nil {
			return err
		}
		s := sniffer.New(source, args[0])
		seen := 0
		return s.Sniff(context.Background(), func(p *pdu.Packet) bool {
			fmt.Println(summaryLine(p))
			seen++
			return readCount == 0 || seen < readCount
		})
	},
}

func init() {
	readCmd.Flags().IntVarP(&readCount, "count", "n", 0, "stop after this many packets (0 = all)")
}
