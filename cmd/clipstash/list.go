package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/popup"
	"go.klb.dev/clipstash/internal/thumbnail"
)

func newListCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the clipboard history",
		Long: `Prints the history newest first. --search applies the popup's filter: text
entries containing the term (case-insensitive); any term hides images.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runList(cmd, v) },
	}

	f := cmd.Flags()
	f.StringP("output", "o", "table", "output format: table|json|yaml")
	f.StringP("search", "s", "", "only show entries matching this term")
	addClientFlags(cmd)
	return cmd
}

// listedEntry is the structured form of one history entry.
type listedEntry struct {
	Index     int    `json:"index" yaml:"index"`
	Type      string `json:"type" yaml:"type"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Captured  string `json:"captured" yaml:"captured"`
	Content   string `json:"content" yaml:"content"`
}

func runList(cmd *cobra.Command, v *viper.Viper) error {
	format, err := parseOutputFormat(v.GetString("output"))
	if err != nil {
		return err
	}

	svc, _, err := dialService(cmd, v)
	if err != nil {
		return err
	}
	defer svc.Close()

	items, err := svc.Items(cmd.Context())
	if err != nil {
		return err
	}
	history.SortNewestFirst(items)
	total := len(items)
	items = history.Filter(items, v.GetString("search"))

	if format != formatTable {
		out := make([]listedEntry, len(items))
		for i, e := range items {
			out[i] = listedEntry{
				Index:     i + 1,
				Type:      string(e.Kind),
				Timestamp: e.Timestamp,
				Captured:  e.CapturedAt().UTC().Format(time.RFC3339),
				Content:   e.Content,
			}
		}
		return writeStructured(os.Stdout, format, out)
	}

	printList(os.Stdout, items, total, daemonCapacity(cmd.Context(), svc), time.Now())
	return nil
}

func printList(w io.Writer, items []history.Entry, total, capacity int, now time.Time) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	bold.Fprintf(w, "Clipboard history ")
	dim.Fprintln(w, popup.Counter(total, capacity))
	if len(items) == 0 {
		fmt.Fprintln(w, "No matching clipboard items found.")
		return
	}

	textTag := color.New(color.FgGreen, color.Bold)
	imageTag := color.New(color.FgYellow, color.Bold)
	for i, e := range items {
		tag := textTag
		if e.Kind == history.Image {
			tag = imageTag
		}
		fmt.Fprintf(w, "%3d  %s  %-9s  %s\n",
			i+1,
			tag.Sprintf("%-5s", e.Kind),
			popup.RelativeTime(e.CapturedAt(), now),
			preview(e, 70),
		)
	}
}

// preview is a one-line summary of e at most width runes long.
func preview(e history.Entry, width int) string {
	if e.Kind == history.Image {
		if img, _, err := thumbnail.Decode(e.Content); err == nil {
			b := img.Bounds()
			return fmt.Sprintf("[image %dx%d, %d bytes]", b.Dx(), b.Dy(), len(e.Content))
		}
		return fmt.Sprintf("[image, %d bytes]", len(e.Content))
	}
	s := strings.Join(strings.Fields(e.Content), " ")
	if r := []rune(s); len(r) > width {
		return string(r[:width-3]) + "..."
	}
	return s
}
