package commands

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/pointer"
)

var mapCmd = &cobra.Command{
	Use:   "map X Y",
	Short: "Map a color-space point to a screen pixel",
	Long: `Show where a point in the camera's color space lands on screen with the
current zoom and screen size.`,
	Example: `  handcursor map 960 540
  handcursor map --zoom 1 --screen 2560x1440 0 0`,
	Args: cobra.ExactArgs(2),
	RunE: runMap,
}

var mapFormat string

func init() {
	rootCmd.AddCommand(mapCmd)
	mapCmd.Flags().Float64("zoom", 0, "pointer zoom factor")
	mapCmd.Flags().String("screen", "", "screen size as WIDTHxHEIGHT")
	mapCmd.Flags().StringVarP(&mapFormat, "format", "f", "text", "output format (text, json)")
}

func runMap(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd, flagBinding{"zoom", "pointer.zoom"})
	if err != nil {
		return err
	}

	x, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid X %q: %w", args[0], err)
	}
	y, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid Y %q: %w", args[1], err)
	}

	var width, height int
	if s, _ := cmd.Flags().GetString("screen"); s != "" {
		if _, err := fmt.Sscanf(s, "%dx%d", &width, &height); err != nil {
			return fmt.Errorf("invalid --screen %q: want WIDTHxHEIGHT", s)
		}
	} else {
		width, height = screenSize(cfg)
	}

	mapper := cfg.Pointer.Mapper(width, height)
	if err := mapper.Validate(); err != nil {
		return err
	}
	px := pointer.Floor(mapper.Map(pointer.Point{X: x, Y: y}))

	if mapFormat == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(px)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %d\n", px.X, px.Y)
	return nil
}
