package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/handcursor/internal/body"
	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/recording"
	"github.com/ayusman/handcursor/internal/tracking"
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE",
	Short: "Run a recorded session through the gesture classifier",
	Long: `Read frames recorded with "run --record" and print the pointer intents
they produce, one JSON object per line. Nothing is injected.

The screen size comes from pointer.screen_width/screen_height and falls
back to 1920x1080, so output is the same on every machine.`,
	Example: `  handcursor replay session.jsonl.zst
  handcursor replay --snapshots session.jsonl | jq .state`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var replaySnapshots bool

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replaySnapshots, "snapshots", false, "print full frame snapshots instead of intents")
	replayCmd.Flags().Float64("zoom", 0, "pointer zoom factor")
}

type replayLine struct {
	Timestamp int64            `json:"timestamp"`
	Intents   []gesture.Intent `json:"intents"`
}

func runReplay(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig(cmd, flagBinding{"zoom", "pointer.zoom"})
	if err != nil {
		return err
	}

	width, height := cfg.Pointer.ScreenWidth, cfg.Pointer.ScreenHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	mapper := cfg.Pointer.Mapper(width, height)
	if err := mapper.Validate(); err != nil {
		return err
	}
	session := gesture.NewSession(gesture.NewClassifier(mapper, tracking.NewColorProjector()))

	r, err := recording.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	frames := 0
	err = r.Each(func(frame body.Frame) error {
		frames++
		res, snap, _ := session.Process(frame)
		if replaySnapshots {
			return enc.Encode(snap)
		}
		intents := res.Intents()
		if len(intents) == 0 {
			return nil
		}
		return enc.Encode(replayLine{Timestamp: frame.Timestamp, Intents: intents})
	})
	if err != nil {
		return fmt.Errorf("replay %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d frames replayed\n", frames)
	return nil
}
