package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/spf13/cobra"
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Compute and compare signatures of local images",
}

var signatureComputeCmd = &cobra.Command{
	Use:   "compute <file>...",
	Short: "Print the signature and words of images",
	Long: `Compute the perceptual signature of one or more image files and print the
compressed signature, the index words and the SHA-256 checksum.

Examples:
  sigboard signature compute cat.jpg
  sigboard signature compute *.png --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSignatureCompute,
}

var signatureCompareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Print the distance between two images",
	Long: `Compare the signatures of two image files. Distances range from 0 for
identical signatures to 1, images with a distance up to the similarity
threshold are reported as similar by reverse searches.`,
	Args: cobra.ExactArgs(2),
	RunE: runSignatureCompare,
}

func init() {
	rootCmd.AddCommand(signatureCmd)
	signatureCmd.AddCommand(signatureComputeCmd)
	signatureCmd.AddCommand(signatureCompareCmd)

	signatureComputeCmd.Flags().Bool("json", false, "Output as JSON")
	signatureCompareCmd.Flags().Bool("json", false, "Output as JSON")
	signatureCompareCmd.Flags().Float64("threshold", constants.DefaultSimilarityThreshold, "Largest distance reported as similar")
}

// ComputeOutput is the signature of a single file
type ComputeOutput struct {
	File      string               `json:"file"`
	Checksum  string               `json:"checksum"`
	MimeType  string               `json:"mime_type"`
	Width     int                  `json:"width"`
	Height    int                  `json:"height"`
	Version   int                  `json:"version"`
	Signature signature.Compressed `json:"signature"`
	Words     signature.Words      `json:"words"`
}

// CompareOutput is the comparison of two files
type CompareOutput struct {
	A            string  `json:"a"`
	B            string  `json:"b"`
	Distance     float64 `json:"distance"`
	SharedWords  int     `json:"shared_words"`
	SameChecksum bool    `json:"same_checksum"`
	Similar      bool    `json:"similar"`
}

func computeFile(path string) (*fingerprint.Properties, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	props, err := fingerprint.ComputeProperties(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return props, nil
}

func runSignatureCompute(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	outputs := make([]ComputeOutput, 0, len(args))
	for _, path := range args {
		props, err := computeFile(path)
		if err != nil {
			return err
		}
		outputs = append(outputs, ComputeOutput{
			File:      path,
			Checksum:  props.Checksum,
			MimeType:  props.MimeType,
			Width:     props.Width,
			Height:    props.Height,
			Version:   signature.Version,
			Signature: props.Signature,
			Words:     props.Words,
		})
	}

	if jsonOutput {
		return outputJSON(outputs)
	}

	for _, out := range outputs {
		fmt.Printf("%s\n", out.File)
		fmt.Printf("  Checksum:  %s\n", out.Checksum)
		fmt.Printf("  Image:     %s %dx%d\n", out.MimeType, out.Width, out.Height)
		fmt.Printf("  Signature: %v\n", out.Signature)
		fmt.Printf("  Words:     %v\n", out.Words)
	}
	return nil
}

func runSignatureCompare(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	threshold := mustGetFloat64(cmd, "threshold")

	a, err := computeFile(args[0])
	if err != nil {
		return err
	}
	b, err := computeFile(args[1])
	if err != nil {
		return err
	}

	distance := signature.Distance(a.Signature, b.Signature)
	out := CompareOutput{
		A:            args[0],
		B:            args[1],
		Distance:     distance,
		SharedWords:  a.Words.Matches(b.Words),
		SameChecksum: a.Checksum == b.Checksum,
		Similar:      distance <= threshold,
	}

	if jsonOutput {
		return outputJSON(out)
	}

	fmt.Printf("Distance:     %.4f\n", out.Distance)
	fmt.Printf("Shared words: %d/%d\n", out.SharedWords, signature.NumWords)
	switch {
	case out.SameChecksum:
		fmt.Println("Result:       identical content")
	case out.Similar:
		fmt.Printf("Result:       similar (threshold %.2f)\n", threshold)
	default:
		fmt.Printf("Result:       different (threshold %.2f)\n", threshold)
	}
	return nil
}
