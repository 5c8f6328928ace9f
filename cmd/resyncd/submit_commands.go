package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"resyncd/internal/ipc"
	"resyncd/internal/pipeline"
)

type submitFlags struct {
	userID   string
	priority bool
}

func (f *submitFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "Identifier of the submitting user")
	cmd.Flags().BoolVar(&f.priority, "priority", false, "Route the job to the priority queue")
}

func newSubmitCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newResyncCommand(ctx),
		newAutoResyncCommand(ctx),
		newRandomResyncCommand(ctx),
		newDownloadCommand(ctx),
	}
}

func newResyncCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	params := pipeline.ResyncParams{Overlay: true}

	cmd := &cobra.Command{
		Use:   "resync VIDEO_URL AUDIO_URL",
		Short: "Remix a video against a track at explicit offsets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.VideoURL = args[0]
			params.AudioURL = args[1]
			return submitJob(ctx, cmd, pipeline.KindResync, params, flags)
		},
	}

	cmd.Flags().StringVar(&params.VideoStart, "start", "", "Timestamp into the video (e.g. 1:23)")
	cmd.Flags().StringVar(&params.AudioOffset, "offset", "", "Timestamp into the audio, or video-audio (e.g. 2:10-1:40)")
	cmd.Flags().StringVar(&params.SFXURL, "sfx", "", "Second audio bed mixed under the track")
	cmd.Flags().BoolVar(&params.HighQuality, "hq", false, "Keep source resolution and use a higher quality encode")
	cmd.Flags().BoolVar(&params.Overlay, "overlay", true, "Stamp the output with the service watermark")
	flags.register(cmd)
	return cmd
}

func newAutoResyncCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	params := pipeline.AutoResyncParams{Overlay: true}

	cmd := &cobra.Command{
		Use:   "autoresync VIDEO_URL AUDIO_URL",
		Short: "Remix a video against a track with detected alignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.VideoURL = args[0]
			params.AudioURL = args[1]
			return submitJob(ctx, cmd, pipeline.KindAutoResync, params, flags)
		},
	}

	cmd.Flags().StringVar(&params.Method, "method", "", "Alignment detector: waveform, beat, or both")
	cmd.Flags().BoolVar(&params.HighQuality, "hq", false, "Keep source resolution and use a higher quality encode")
	cmd.Flags().BoolVar(&params.Overlay, "overlay", true, "Stamp the output with the service watermark")
	flags.register(cmd)
	return cmd
}

func newRandomResyncCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	params := pipeline.RandomResyncParams{Overlay: true}

	cmd := &cobra.Command{
		Use:   "randomresync VIDEO_URL",
		Short: "Remix a video against a random tempo-matched catalog track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.VideoURL = args[0]
			return submitJob(ctx, cmd, pipeline.KindRandomResync, params, flags)
		},
	}

	cmd.Flags().Float64Var(&params.Tolerance, "tolerance", 0, "BPM window for catalog matching (0 uses the default)")
	cmd.Flags().BoolVar(&params.HighQuality, "hq", false, "Keep source resolution and use a higher quality encode")
	cmd.Flags().BoolVar(&params.Overlay, "overlay", true, "Stamp the output with the service watermark")
	flags.register(cmd)
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags submitFlags
	var params pipeline.DownloadParams

	cmd := &cobra.Command{
		Use:   "download URL",
		Short: "Fetch a clip or track without remixing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params.URL = args[0]
			return submitJob(ctx, cmd, pipeline.KindDownload, params, flags)
		},
	}

	cmd.Flags().BoolVar(&params.AudioOnly, "audio", false, "Deliver an MP3 instead of video")
	cmd.Flags().StringVar(&params.Start, "start", "", "Trim start timestamp (e.g. 0:30)")
	cmd.Flags().StringVar(&params.End, "end", "", "Trim end timestamp (e.g. 1:30)")
	cmd.Flags().BoolVar(&params.HighQuality, "hq", false, "Keep source resolution and use a higher quality encode")
	flags.register(cmd)
	return cmd
}

func submitJob(ctx *commandContext, cmd *cobra.Command, kind string, params any, flags submitFlags) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Submit(ipc.SubmitRequest{
			Kind:     kind,
			Params:   string(encoded),
			UserID:   flags.userID,
			Priority: flags.priority,
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Job %s queued (%s, %s queue)\n", resp.Job.ID, resp.Job.Kind, resp.Job.Queue)
		fmt.Fprintf(out, "Track it with `resyncd jobs %s`\n", resp.Job.ID)
		return nil
	})
}
