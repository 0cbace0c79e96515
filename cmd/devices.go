package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/smazurov/framereactor/internal/devices"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var brief bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 capture devices",
		Long:  `Lists capture devices with their pixel formats, resolutions and frame rates. Formats marked * can be converted by framereactor.`,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			devs, err := devices.Scan(devices.Options{Modes: !brief})
			if err != nil {
				return err
			}
			PrintDevices(os.Stdout, devs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&brief, "brief", false, "Only list devices, not their formats")
	return cmd
}

// PrintDevices writes the human-readable device listing.
func PrintDevices(w io.Writer, devs []devices.Device) {
	if len(devs) == 0 {
		fmt.Fprintln(w, "No capture devices found")
		return
	}

	for _, dev := range devs {
		fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("%s  %s", dev.Path, dev.Name)))
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  id=%s driver=%s bus=%s", dev.ID, dev.Driver, dev.BusInfo)))

		for _, f := range dev.Formats {
			mark := " "
			if f.Convertible {
				mark = "*"
			}
			fmt.Fprintf(w, "  %s %s  %s\n", mark, f.FourCC, f.Description)
			for _, m := range f.Modes {
				fps := make([]string, 0, len(m.FPS))
				for _, rate := range m.FPS {
					fps = append(fps, fmt.Sprintf("%.4g", rate))
				}
				fmt.Fprintf(w, "      %dx%d  %s\n", m.Width, m.Height, strings.Join(fps, " "))
			}
		}
	}
}
