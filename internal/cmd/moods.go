package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/provider/tmdb"
	"github.com/spf13/cobra"
)

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "List the mood presets usable with --mood",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		for _, name := range tmdb.Presets() {
			preset, _ := tmdb.Preset(name)
			fmt.Fprintf(out, "%-14s %s\n", name, describePreset(preset))
		}
	},
}

// describePreset renders discover options as sorted key=value pairs.
func describePreset(preset map[string]string) string {
	keys := make([]string, 0, len(preset))
	for k := range preset {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + preset[k]
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(moodsCmd)
}
