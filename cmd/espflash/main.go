package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/espflash/espflash/internal/protocol"
	"github.com/espflash/espflash/internal/port"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag     string
	baudFlag     int
	verifyFlag   bool
	rebootFlag   bool
	compressFlag bool
	debugFlag    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "espflash",
		Short: "Flash firmware to ESP8266/ESP32-family devices over the ROM bootloader",
		Long: `espflash talks directly to the ROM bootloader baked into ESP8266 and
ESP32-family chips to write images to flash, compute the MD5 of a flash
region, and report the chip type.`,
	}

	flashCmd := &cobra.Command{
		Use:   "flash <address:file> [address:file...]",
		Short: "Write one or more images to flash at the given addresses",
		Long: `Write one or more images to flash.

Each argument is ADDRESS:FILE, e.g. 0x1000:bootloader.bin 0x10000:app.bin.
Addresses may be given in hex (0x...) or decimal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFlash,
	}
	flashCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (required)")
	flashCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	flashCmd.Flags().BoolVar(&verifyFlag, "verify", true, "Verify flash contents via MD5 after writing")
	flashCmd.Flags().BoolVar(&rebootFlag, "reboot", true, "Reboot the target after flashing")
	flashCmd.Flags().BoolVar(&compressFlag, "compress", true, "Compress images before sending (FLASH_DEFL_*)")
	flashCmd.Flags().BoolVar(&debugFlag, "debug", false, "Print protocol-level trace output")
	flashCmd.MarkFlagRequired("port")

	verifyCmd := &cobra.Command{
		Use:   "md5 <address> <length>",
		Short: "Compute the MD5 of a flash region on the target",
		Args:  cobra.ExactArgs(2),
		RunE:  runMD5,
	}
	verifyCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (required)")
	verifyCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	verifyCmd.MarkFlagRequired("port")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Connect to a device and print its chip type",
		RunE:  runInfo,
	}
	infoCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (required)")
	infoCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	infoCmd.MarkFlagRequired("port")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("espflash %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(flashCmd, verifyCmd, infoCmd, listCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := port.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
