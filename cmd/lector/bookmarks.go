package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectorapp/lector/internal/cli"
)

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "Manage bookmarks",
}

var bookmarksListCmd = &cobra.Command{
	Use:   "list <book>",
	Short: "List a book's bookmarks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveBook(args[0])
		if err != nil {
			return err
		}
		bms, err := a.library.Bookmarks(id)
		if err != nil {
			return err
		}
		return cli.Output(bms)
	},
}

var bookmarksAddCmd = &cobra.Command{
	Use:   "add <book> <chapter>:<sentence> [label...]",
	Short: "Add a bookmark at a chapter:sentence location",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveBook(args[0])
		if err != nil {
			return err
		}

		chapter, sentence, err := parseLocation(args[1])
		if err != nil {
			return err
		}

		label := strings.Join(args[2:], " ")
		bm, err := a.library.AddBookmark(id, label, chapter, sentence)
		if err != nil {
			return err
		}
		return cli.Output(bm)
	},
}

var bookmarksRmCmd = &cobra.Command{
	Use:   "rm <book> <bookmark-id>",
	Short: "Remove a bookmark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.resolveBook(args[0])
		if err != nil {
			return err
		}
		return a.library.RemoveBookmark(id, args[1])
	},
}

// parseLocation splits "chapter:sentence" into its two indices.
func parseLocation(s string) (chapter, sentence int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid location %q, want chapter:sentence", s)
	}
	chapter, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid chapter in %q", s)
	}
	sentence, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid sentence in %q", s)
	}
	return chapter, sentence, nil
}

func init() {
	bookmarksCmd.AddCommand(bookmarksListCmd)
	bookmarksCmd.AddCommand(bookmarksAddCmd)
	bookmarksCmd.AddCommand(bookmarksRmCmd)
}
