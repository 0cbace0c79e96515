package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/framereactor/internal/transform"
)

// CreateConvertCmd creates the convert command.
func CreateConvertCmd() *cobra.Command {
	var from, to string
	var width, height int

	cmd := &cobra.Command{
		Use:   "convert --from FMT --to FMT -W width -H height <in> <out>",
		Short: "Convert a raw frame file between pixel formats",
		Long: `Reads one or more back-to-back raw frames from <in>, converts each from --from to --to ` +
			`and writes them to <out>. A trailing partial frame is an error.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := transform.ParsePixelFormat(from)
			if err != nil {
				return err
			}
			dst, err := transform.ParsePixelFormat(to)
			if err != nil {
				return err
			}

			in, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			out, frames, err := ConvertFrames(in, width, height, src, dst)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], out, 0o644); err != nil {
				return err
			}
			fmt.Printf("Converted %d frame(s) %s -> %s (%dx%d)\n", frames, src, dst, width, height)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "yuyv", "Source pixel format")
	cmd.Flags().StringVar(&to, "to", "rgb24", "Destination pixel format")
	cmd.Flags().IntVarP(&width, "width", "W", 640, "Frame width")
	cmd.Flags().IntVarP(&height, "height", "H", 480, "Frame height")
	return cmd
}

// ConvertFrames converts every whole frame in in and returns the output and frame count.
func ConvertFrames(in []byte, width, height int, src, dst transform.PixelFormat) ([]byte, int, error) {
	srcSize, err := transform.FrameSize(src, width, height)
	if err != nil {
		return nil, 0, err
	}
	dstSize, err := transform.FrameSize(dst, width, height)
	if err != nil {
		return nil, 0, err
	}
	if len(in) == 0 || len(in)%srcSize != 0 {
		return nil, 0, fmt.Errorf("input is %d bytes, not a multiple of the %d byte %s frame", len(in), srcSize, src)
	}

	frames := len(in) / srcSize
	out := make([]byte, frames*dstSize)
	for i := 0; i < frames; i++ {
		err := transform.Convert(in[i*srcSize:(i+1)*srcSize], out[i*dstSize:(i+1)*dstSize], width, height, src, dst)
		if err != nil {
			return nil, 0, fmt.Errorf("frame %d: %w", i, err)
		}
	}
	return out, frames, nil
}
