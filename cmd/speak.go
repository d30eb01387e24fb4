// File: cmd/speak.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/grokdrive/internal/observability"
	"github.com/xkilldash9x/grokdrive/internal/tts"
)

// newSpeakCmd creates the `speak` command: synthesize text and play it on the
// default output device, with no browser involved. Useful for verifying the
// loopback microphone routing before a long run.
func newSpeakCmd() *cobra.Command {
	speakCmd := &cobra.Command{
		Use:   "speak [text...]",
		Short: "Synthesizes text and plays it on the default audio device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			speaker, err := tts.NewSpeaker(cfg, logger)
			if err != nil {
				return fmt.Errorf("speech synthesis unavailable: %w", err)
			}

			text := strings.Join(args, " ")
			if err := speaker.Speak(ctx, text); err != nil {
				return fmt.Errorf("speak: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Playback complete.")
			return nil
		},
	}
	return speakCmd
}
