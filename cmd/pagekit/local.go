package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagekit/kit"
	"github.com/hazyhaar/pagekit/pdfsvc"
)

var (
	outputPath string
	splitRange string
)

var validateCmd = &cobra.Command{
	Use:   "validate <file.pdf>",
	Short: "Check that a file is a readable, unencrypted PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.svc.CheckLocal(pdfsvc.RequestContext(cmd.Context(), kit.TransportCLI, pdfsvc.OpUpload), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <a.pdf> <b.pdf> [more.pdf...]",
	Short: "Merge PDFs in the given order into merged.pdf",
	Args:  cobra.MinimumNArgs(2),
	RunE:  localRunner(pdfsvc.OpMerge),
}

var splitCmd = &cobra.Command{
	Use:   "split <file.pdf> --range 3-7",
	Short: "Copy an inclusive page range into a new PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  localRunner(pdfsvc.OpSplitRange),
}

var explodeCmd = &cobra.Command{
	Use:   "explode <file.pdf>",
	Short: "Write one single-page PDF per page into {name}_pages.zip",
	Args:  cobra.ExactArgs(1),
	RunE:  localRunner(pdfsvc.OpExplode),
}

var imagesCmd = &cobra.Command{
	Use:   "images <file.pdf> [more.pdf...]",
	Short: "Extract embedded images into imagens_por_pdf.zip, one inner zip per document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  localRunner(pdfsvc.OpImages),
}

func init() {
	for _, c := range []*cobra.Command{mergeCmd, splitCmd, explodeCmd, imagesCmd} {
		c.Flags().StringVarP(&outputPath, "output", "o", "", "output file or directory (default: working directory)")
	}
	splitCmd.Flags().StringVarP(&splitRange, "range", "r", "", "page range start-end, 1-based inclusive (required)")
	splitCmd.MarkFlagRequired("range")
	rootCmd.AddCommand(validateCmd, mergeCmd, splitCmd, explodeCmd, imagesCmd)
}

func localRunner(op string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.svc.RunLocal(pdfsvc.RequestContext(cmd.Context(), kit.TransportCLI, op), pdfsvc.LocalJob{
			Operation: op,
			Inputs:    args,
			Range:     splitRange,
			Output:    outputPath,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
