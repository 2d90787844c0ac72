package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"streamform/pkg/multipart"
)

func newExtractCmd() *cobra.Command {
	var (
		boundary  string
		outDir    string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "extract <body-file>",
		Short: "Extract the parts of a saved multipart/form-data body",
		Long: `Extract reads a raw multipart/form-data body from a file and writes
every part into the output directory, feeding the parser in small chunks
exactly as a network transport would.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(args[0], boundary, outDir, chunkSize)
		},
	}

	cmd.Flags().StringVarP(&boundary, "boundary", "b", "", "multipart boundary token (required)")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory for extracted parts")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 64*1024, "read size per parser feed")
	_ = cmd.MarkFlagRequired("boundary")

	return cmd
}

func runExtract(bodyPath, boundary, outDir string, chunkSize int) error {
	f, err := os.Open(bodyPath)
	if err != nil {
		return fmt.Errorf("failed to open body file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat body file: %w", err)
	}

	streamer, err := multipart.New(st.Size(), boundary)
	if err != nil {
		return err
	}
	defer streamer.ReleaseParts()

	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if err := streamer.DataReceived(buf[:n]); err != nil {
				return err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read body file: %w", readErr)
		}
	}
	if err := streamer.DataComplete(); err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for i, part := range streamer.Parts() {
		name := part.Filename()
		if name == "" {
			name = part.Name()
		}
		if name == "" {
			name = fmt.Sprintf("part-%d", i)
		}
		dst := filepath.Join(outDir, filepath.Base(name))

		if err := writePart(part, dst); err != nil {
			return err
		}
		fmt.Printf("%s\t%d bytes\t(field %q)\n", dst, part.Size(), part.Name())
	}
	return nil
}

func writePart(part multipart.Part, dst string) error {
	src, err := part.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
