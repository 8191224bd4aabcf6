package main

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/espflash/espflash/internal/loader"
	"github.com/espflash/espflash/internal/port"
	"github.com/espflash/espflash/internal/protocol"
)

// image is one ADDRESS:FILE argument, resolved to its bytes.
type image struct {
	Address uint32
	Name    string
	Data    []byte
}

func parseImages(args []string) ([]image, error) {
	images := make([]image, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid image argument %q: expected address:file", arg)
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "0x"), hexOrDec(parts[0]), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", parts[0], err)
		}
		data, err := os.ReadFile(parts[1])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", parts[1], err)
		}
		images = append(images, image{Address: uint32(addr), Name: parts[1], Data: data})
	}
	return images, nil
}

func hexOrDec(s string) int {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return 16
	}
	return 10
}

func openSession(portName string, baud int, debug bool) (*loader.Session, *port.SerialPort, error) {
	p, err := port.Open(portName, port.Options{BaudRate: baud, Debug: debug})
	if err != nil {
		return nil, nil, fmt.Errorf("opening port: %w", err)
	}
	sess := loader.New(p)
	if err := sess.Connect(loader.ConnectArgs{}); err != nil {
		p.Close()
		return nil, nil, fmt.Errorf("connecting to bootloader: %w", err)
	}
	return sess, p, nil
}

func runFlash(cmd *cobra.Command, args []string) error {
	images, err := parseImages(args)
	if err != nil {
		return err
	}

	fmt.Printf("Connecting on %s @ %d baud...\n", portFlag, baudFlag)
	sess, p, err := openSession(portFlag, baudFlag, debugFlag)
	if err != nil {
		return err
	}
	defer p.Close()
	fmt.Printf("Connected: %s\n", sess.Target())

	for _, img := range images {
		fmt.Printf("\nFlashing %s at 0x%X (%d bytes)%s...\n", img.Name, img.Address, len(img.Data), compressSuffix())
		if err := flashOne(sess, img); err != nil {
			return fmt.Errorf("flashing %s: %w", img.Name, err)
		}
		if verifyFlag {
			if err := sess.Verify(); err != nil {
				return fmt.Errorf("verifying %s: %w", img.Name, err)
			}
			fmt.Println("  MD5 verified")
		}
	}

	if rebootFlag {
		fmt.Println("\nRebooting device...")
		if err := sess.ResetTarget(); err != nil {
			fmt.Printf("warning: reboot failed: %v\n", err)
		}
	}

	fmt.Println("Done!")
	return nil
}

func compressSuffix() string {
	if compressFlag {
		return " (compressed)"
	}
	return ""
}

const blockSize = protocol.FlashPageSize * 4 // 1KiB blocks, matching the reference loader's default negotiated size

func flashOne(sess *loader.Session, img image) error {
	bar := progressbar.NewOptions(len(img.Data),
		progressbar.OptionSetDescription("  writing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	if compressFlag {
		compressed, err := deflate(img.Data)
		if err != nil {
			return err
		}
		if err := sess.FlashDeflStart(img.Address, uint32(len(img.Data)), uint32(len(compressed)), blockSize); err != nil {
			return err
		}
		for off := 0; off < len(compressed); off += blockSize {
			end := off + blockSize
			if end > len(compressed) {
				end = len(compressed)
			}
			if err := sess.FlashDeflWrite(compressed[off:end]); err != nil {
				return err
			}
			bar.Set(off)
		}
		bar.Finish()
		return sess.FlashDeflFinish(false)
	}

	if err := sess.FlashStart(img.Address, uint32(len(img.Data)), blockSize); err != nil {
		return err
	}
	for off := 0; off < len(img.Data); off += blockSize {
		end := off + blockSize
		if end > len(img.Data) {
			end = len(img.Data)
		}
		if err := sess.FlashWrite(img.Data[off:end]); err != nil {
			return err
		}
		bar.Set(off)
	}
	bar.Finish()
	return sess.FlashFinish(false)
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func runMD5(cmd *cobra.Command, args []string) error {
	addr, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), hexOrDec(args[0]), 32)
	if err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	length, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid length: %w", err)
	}

	sess, p, err := openSession(portFlag, baudFlag, debugFlag)
	if err != nil {
		return err
	}
	defer p.Close()

	digest, err := sess.GetMD5Hex(uint32(addr), uint32(length))
	if err != nil {
		return err
	}
	fmt.Println(digest)
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	sess, p, err := openSession(portFlag, baudFlag, debugFlag)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Printf("Port:  %s\n", portFlag)
	fmt.Printf("Chip:  %s\n", sess.Target())
	return nil
}
