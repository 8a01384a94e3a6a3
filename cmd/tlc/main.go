package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinylisp/tlc/disasm"
	"github.com/tinylisp/tlc/pipeline"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tlc",
	Short: "tinylisp-to-hardware compiler",
}

var buildCmd = &cobra.Command{
	Use:   "build <in.tl> <out.img>",
	Short: "Compile a tinylisp source file to a hardware image",
	Args:  cobra.ExactArgs(2),
	RunE:  runBuild,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log each pipeline stage as it runs")
	buildCmd.Flags().Bool("disasm", false, "print a disassembly of the generated image to stderr")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]
	withDisasm, err := cmd.Flags().GetBool("disasm")
	if err != nil {
		return err
	}

	if verbose {
		log.Printf("tlc: reading %s", inPath)
	}
	src, err := os.Open(inPath)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := pipeline.Compile(src)
	if err != nil {
		return err
	}

	if withDisasm {
		log.Print(disasm.Disassemble(img.Words, uint32(img.DataBreak)))
	}

	if verbose {
		log.Printf("tlc: writing %d words to %s", len(img.Words), outPath)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = img.WriteTo(out)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
