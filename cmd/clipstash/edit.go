package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/clipstash/internal/history"
	"go.klb.dev/clipstash/internal/thumbnail"
)

func newAddCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Add an entry to the history",
		Long: `Adds a text entry built from the arguments, or from stdin when there are none.
With --image the file is thumbnailed and added as an image entry instead.
Adding something already in the history does nothing.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runAdd(cmd, v, args) },
	}
	cmd.Flags().String("image", "", "add this image file (PNG, JPEG or GIF) instead of text")
	addClientFlags(cmd)
	return cmd
}

func runAdd(cmd *cobra.Command, v *viper.Viper, args []string) error {
	e, err := entryFromInput(cmd.InOrStdin(), args, v.GetString("image"), time.Now())
	if err != nil {
		return err
	}

	svc, _, err := dialService(cmd, v)
	if err != nil {
		return err
	}
	defer svc.Close()
	return svc.Add(cmd.Context(), e)
}

func entryFromInput(stdin io.Reader, args []string, imagePath string, now time.Time) (history.Entry, error) {
	if imagePath != "" {
		if len(args) > 0 {
			return history.Entry{}, errors.New("--image takes no text arguments")
		}
		raw, err := os.ReadFile(imagePath)
		if err != nil {
			return history.Entry{}, err
		}
		uri, err := thumbnail.Encode(raw)
		if err != nil {
			return history.Entry{}, err
		}
		return history.NewImage(uri, now), nil
	}

	text := strings.Join(args, " ")
	if len(args) == 0 {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return history.Entry{}, fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return history.Entry{}, errors.New("nothing to add")
	}
	return history.NewText(text, now), nil
}

func newDeleteCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "delete [index]",
		Short: "Delete an entry from the history",
		Long: `Deletes one entry. Either give its index as printed by "clipstash list"
(1 = newest), or identify it exactly with --timestamp, --type and --content.
Deleting an entry that is not there does nothing.`,
		Args:    cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, args []string) error { return runDelete(cmd, v, args) },
	}
	f := cmd.Flags()
	f.Int64("timestamp", 0, "entry timestamp in milliseconds")
	f.String("type", string(history.Text), "entry type: text|image")
	f.String("content", "", "exact entry content")
	addClientFlags(cmd)
	return cmd
}

func runDelete(cmd *cobra.Command, v *viper.Viper, args []string) error {
	svc, _, err := dialService(cmd, v)
	if err != nil {
		return err
	}
	defer svc.Close()
	ctx := cmd.Context()

	if len(args) == 0 {
		e := history.Entry{
			Kind:      history.Kind(v.GetString("type")),
			Content:   v.GetString("content"),
			Timestamp: v.GetInt64("timestamp"),
		}
		if e.Timestamp == 0 {
			return errors.New("give an index or --timestamp")
		}
		return svc.Delete(ctx, e)
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("invalid index %q", args[0])
	}
	items, err := svc.Items(ctx)
	if err != nil {
		return err
	}
	history.SortNewestFirst(items)
	if n > len(items) {
		return fmt.Errorf("index %d out of range (%d items)", n, len(items))
	}
	return svc.Delete(ctx, items[n-1])
}

func newReloadCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "reload",
		Short:   "Make the daemon re-read its persisted history",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, err := dialService(cmd, v)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.Reload(cmd.Context())
		},
	}
	addClientFlags(cmd)
	return cmd
}
