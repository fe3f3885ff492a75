package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lectorapp/lector/internal/cli"
)

var importCmd = &cobra.Command{
	Use:   "import <file.epub>",
	Short: "Import an EPUB into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		book, err := a.library.Import(args[0])
		if err != nil {
			return err
		}
		return cli.Output(book)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		statuses, err := a.library.List()
		if err != nil {
			return err
		}
		return cli.Output(statuses)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <book>",
	Short: "Show a book's details, chapters, and resume position",
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
		status, err := a.library.Get(id)
		if err != nil {
			return err
		}
		chapters, err := a.library.Chapters(id)
		if err != nil {
			return err
		}

		type chapterInfo struct {
			Index     int    `json:"index" yaml:"index"`
			Title     string `json:"title" yaml:"title"`
			Sentences int    `json:"sentences" yaml:"sentences"`
		}
		info := struct {
			Status   interface{}   `json:"status" yaml:"status"`
			Chapters []chapterInfo `json:"chapters" yaml:"chapters"`
		}{Status: status}
		for _, ch := range chapters {
			info.Chapters = append(info.Chapters, chapterInfo{
				Index:     ch.SpineIndex,
				Title:     ch.Title,
				Sentences: len(ch.Sentences),
			})
		}
		return cli.Output(info)
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search books by title or author",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		books, err := a.search.SearchBooks(args[0])
		if err != nil {
			return err
		}
		return cli.Output(books)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <book>",
	Short: "Remove a book from the library",
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
		if err := a.library.Delete(id); err != nil {
			return err
		}
		fmt.Println("removed", id)
		return nil
	},
}
