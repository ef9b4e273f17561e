package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"
)

var notesAll bool

var notesCmd = &cobra.Command{
	Use:   "notes [DIR]",
	Short: "List the markdown notes readaloud can open",
	Long: paragraph(fmt.Sprintf("\nList markdown files below DIR, %s. Hidden directories, node_modules and GOPATH are skipped unless --all is set.",
		keyword("most recently changed first"))),
	Args: cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		dir, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("unable to get absolute path: %w", err)
		}

		notes, err := findNotes(dir, notesAll)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println(dim("No notes found."))
			return nil
		}
		for _, n := range notes {
			rel, err := filepath.Rel(dir, n.Path)
			if err != nil {
				rel = n.Path
			}
			fmt.Printf("%s %s\n", rel, dim(humanize.Time(n.Info.ModTime())))
		}
		return nil
	},
}

func init() {
	notesCmd.Flags().BoolVarP(&notesAll, "all", "a", false, "include hidden and ignored files")
}

// findNotes walks dir for markdown files, newest first.
func findNotes(dir string, all bool) ([]gitcha.SearchResult, error) {
	exts := []string{"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown"}

	var (
		ch  chan gitcha.SearchResult
		err error
	)
	if all {
		ch, err = gitcha.FindAllFilesExcept(dir, exts, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(dir, exts, []string{os.Getenv("GOPATH"), "node_modules", ".*"})
	}
	if err != nil {
		return nil, fmt.Errorf("unable to search %s: %w", dir, err)
	}

	var notes []gitcha.SearchResult
	for res := range ch {
		notes = append(notes, res)
	}
	slices.SortStableFunc(notes, func(a, b gitcha.SearchResult) int {
		if c := b.Info.ModTime().Compare(a.Info.ModTime()); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return notes, nil
}
