package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinylisp/tlc/disasm"
	"github.com/tinylisp/tlc/image"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tldisasm <image>",
	Short: "Disassemble a compiled hardware image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log the image's word count before disassembling")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	imgFile, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer imgFile.Close()

	var img image.Image
	if _, err := img.ReadFrom(imgFile); err != nil {
		return err
	}

	if verbose {
		log.Printf("tldisasm: %d words, data break at %d", len(img.Words), img.DataBreak)
	}

	fmt.Print(disasm.Disassemble(img.Words, uint32(img.DataBreak)))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
