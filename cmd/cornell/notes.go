package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cornell-notes/internal/note"
	"github.com/JakeFAU/cornell-notes/internal/resolver"
	"github.com/JakeFAU/cornell-notes/internal/service"
)

func newCaptureCmd() *cobra.Command {
	var width, height int64
	cmd := &cobra.Command{
		Use:   "capture <url>",
		Short: "Capture a page and save it as a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := app.Backend().Capture(cmd.Context(), args[0], note.Viewport{Width: width, Height: height})
			if err != nil {
				return fmt.Errorf("capture %s: %w", args[0], err)
			}
			app.Logger().Info("note captured", zap.String("uid", n.UID))
			return printJSON(cmd.OutOrStdout(), n)
		},
	}
	cmd.Flags().Int64Var(&width, "width", 0, "viewport width in pixels (0 uses the default)")
	cmd.Flags().Int64Var(&height, "height", 0, "viewport height in pixels (0 uses the default)")
	return cmd
}

func newListCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved notes in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			opts := note.ListOptions{}
			if cmd.Flags().Changed("page") || cmd.Flags().Changed("page-size") {
				if pageSize <= 0 || page < 0 {
					return errors.New("--page-size must be positive and --page non-negative")
				}
				opts = note.ListOptions{Page: page, PageSize: pageSize, Limited: true}
			}
			notes, err := app.Backend().List(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list notes: %w", err)
			}
			return printNotes(cmd.OutOrStdout(), notes)
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "notes per page")
	return cmd
}

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Print the tag vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			for _, tag := range store.Vocabulary() {
				fmt.Fprintln(cmd.OutOrStdout(), tag)
			}
			return nil
		},
	}
}

func newTagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tag <uid> <tag>",
		Short: "Add a tag to a note, or remove it if already present",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			n, err := store.ToggleTag(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", n.UID, strings.Join(n.Tags, ","))
			return nil
		},
	}
}

func newUntagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untag <tag>",
		Short: "Remove a tag from every note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			err = store.RemoveTag(cmd.Context(), args[0])
			var partial *service.TagRemovalError
			if errors.As(err, &partial) {
				for _, failed := range partial.Failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "failed\t%s\t%s\t%v\n", failed.UID, failed.Title, failed.Err)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %q\n", args[0])
			return nil
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <uid>",
		Short: "Delete a note and its screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			err = store.Delete(cmd.Context(), args[0])
			var orphan *service.OrphanedAssetError
			switch {
			case errors.As(err, &orphan):
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", orphan)
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newRenditionCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "rendition <uid>",
		Short: "Print the screenshot URL of a note at a display width",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width <= 0 {
				return errors.New("--width must be positive")
			}
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := loadStore(cmd.Context(), app)
			if err != nil {
				return err
			}
			n, ok := store.Get(args[0])
			if !ok {
				return fmt.Errorf("note %s: %w", args[0], note.ErrNotFound)
			}
			if n.Screenshot == "" {
				return fmt.Errorf("note %s has no screenshot", n.UID)
			}

			r := resolver.New(app.Renditions(), n.Screenshot, app.ResolverOptions()...)
			defer r.Close()
			states := make(chan resolver.State, 8)
			r.OnChange(func(s resolver.State) {
				select {
				case states <- s:
				default:
				}
			})
			r.Observe(width)
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case s := <-states:
					switch s.Status {
					case resolver.StatusReady:
						fmt.Fprintln(cmd.OutOrStdout(), s.URL)
						return nil
					case resolver.StatusFailed:
						return fmt.Errorf("rendition for %s: %w", n.UID, s.Err)
					}
				}
			}
		},
	}
	cmd.Flags().IntVar(&width, "width", 320, "display width in pixels")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNotes(w io.Writer, notes []note.Note) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tTITLE\tTAGS\tLINK")
	for _, n := range notes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.UID, n.Title, strings.Join(n.Tags, ","), n.Link)
	}
	return tw.Flush()
}
