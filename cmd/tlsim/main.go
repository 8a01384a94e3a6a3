package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinylisp/tlc/image"
	"github.com/tinylisp/tlc/sim"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tlsim",
	Short: "tinylisp hardware simulator",
}

var runCmd = &cobra.Command{
	Use:   "run <image>",
	Short: "Run a compiled hardware image to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runImage,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log each tick's halt state")
	runCmd.Flags().String("in", "-", "file to read memory-mapped input from (- for stdin)")
	runCmd.Flags().String("out", "-", "file to write memory-mapped output to (- for stdout)")
	rootCmd.AddCommand(runCmd)
}

func runImage(cmd *cobra.Command, args []string) error {
	inPath, err := cmd.Flags().GetString("in")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}

	imgFile, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer imgFile.Close()

	var img image.Image
	if _, err := img.ReadFrom(imgFile); err != nil {
		return err
	}

	in := os.Stdin
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	out := os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	proc := sim.NewProcessor(img.Words, in, out)
	for {
		halted, err := proc.Tick()
		if err != nil {
			return err
		}
		if verbose {
			log.Printf("tlsim: tick, halted=%v", halted)
		}
		if halted {
			return nil
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
