package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jscyril/spotgpt_player/api"
)

var songsCmd = &cobra.Command{
	Use:   "songs",
	Short: "Fetch the song list and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		tracks, err := newSource(cfg, zap.NewNop()).Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch songs: %w", err)
		}

		renderSongs(os.Stdout, tracks)
		return nil
	},
}

// renderSongs prints tracks as a table
func renderSongs(out io.Writer, tracks []api.Track) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "ID", "Name", "Description", "Album", "Duration"})

	for i, tr := range tracks {
		t.AppendRow(table.Row{i + 1, tr.ID, tr.Name, tr.Desc, tr.Album, orDash(tr.Duration)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(tracks)})
	t.Render()
}

// orDash fills empty cells
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
