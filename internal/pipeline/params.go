package pipeline

import (
	"encoding/json"
	"strings"

	"resyncd/internal/services"
)

// Job kinds dispatched by the scheduler.
const (
	KindResync       = "resync"
	KindAutoResync   = "autoresync"
	KindRandomResync = "randomresync"
	KindDownload     = "download"
)

// Kinds lists every job kind the pipeline can run.
func Kinds() []string {
	return []string{KindResync, KindAutoResync, KindRandomResync, KindDownload}
}

// ResyncParams describes a manually synchronized remix: the caller names
// both sources and where each should start.
type ResyncParams struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
	// VideoStart is a timestamp into the video ("1:23"). Empty means the
	// beginning.
	VideoStart string `json:"video_start,omitempty"`
	// AudioOffset is a timestamp into the audio, or the subtractive
	// "video-audio" form.
	AudioOffset string `json:"audio_offset,omitempty"`
	// SFXURL optionally names a second audio bed mixed under the track.
	SFXURL      string `json:"sfx_url,omitempty"`
	HighQuality bool   `json:"high_quality,omitempty"`
	Overlay     bool   `json:"overlay,omitempty"`
}

func (p ResyncParams) validate() error {
	if strings.TrimSpace(p.VideoURL) == "" || strings.TrimSpace(p.AudioURL) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "params",
			"resync needs both a video url and an audio url", nil)
	}
	return nil
}

// AutoResyncParams describes a remix where alignment is detected rather
// than supplied.
type AutoResyncParams struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
	// Method selects the detectors: waveform, beat, or both. Empty means
	// both.
	Method      string `json:"method,omitempty"`
	HighQuality bool   `json:"high_quality,omitempty"`
	Overlay     bool   `json:"overlay,omitempty"`
}

func (p AutoResyncParams) validate() error {
	if strings.TrimSpace(p.VideoURL) == "" || strings.TrimSpace(p.AudioURL) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "params",
			"autoresync needs both a video url and an audio url", nil)
	}
	switch p.Method {
	case "", "waveform", "beat", "both":
		return nil
	}
	return services.Wrap(services.ErrValidation, "pipeline", "params",
		"method must be waveform, beat, or both", nil)
}

// RandomResyncParams describes a remix against a random tempo-matched
// track from the catalog.
type RandomResyncParams struct {
	VideoURL string `json:"video_url"`
	// Tolerance widens the BPM window. Zero uses the default.
	Tolerance   float64 `json:"tolerance,omitempty"`
	HighQuality bool    `json:"high_quality,omitempty"`
	Overlay     bool    `json:"overlay,omitempty"`
}

func (p RandomResyncParams) validate() error {
	if strings.TrimSpace(p.VideoURL) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "params",
			"randomresync needs a video url", nil)
	}
	return nil
}

// DownloadParams describes a plain fetch with optional trim, no remixing.
type DownloadParams struct {
	URL string `json:"url"`
	// AudioOnly extracts an MP3 instead of delivering video.
	AudioOnly bool `json:"audio_only,omitempty"`
	// Start and End optionally trim the delivered clip.
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	HighQuality bool   `json:"high_quality,omitempty"`
}

func (p DownloadParams) validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "params",
			"download needs a url", nil)
	}
	return nil
}

// encodeParams serializes operation parameters for the job record.
func encodeParams(params any) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "pipeline", "params", "cannot encode parameters", err)
	}
	return string(data), nil
}

func decodeParams(raw string, into any) error {
	if err := json.Unmarshal([]byte(raw), into); err != nil {
		return services.Wrap(services.ErrValidation, "pipeline", "params", "cannot decode parameters", err)
	}
	return nil
}

// decodeParamsForKind turns serialized parameters back into the typed
// form for the given kind, for callers that only hold the wire payload.
func decodeParamsForKind(kind, raw string) (any, error) {
	switch kind {
	case KindResync:
		var p ResyncParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindAutoResync:
		var p AutoResyncParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindRandomResync:
		var p RandomResyncParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case KindDownload:
		var p DownloadParams
		if err := decodeParams(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, services.Wrap(services.ErrValidation, "pipeline", "params",
		"unknown job kind "+kind, nil)
}

// validateParams checks kind-specific invariants before a job is queued.
func validateParams(kind string, params any) error {
	switch typed := params.(type) {
	case ResyncParams:
		return typed.validate()
	case AutoResyncParams:
		return typed.validate()
	case RandomResyncParams:
		return typed.validate()
	case DownloadParams:
		return typed.validate()
	}
	return services.Wrap(services.ErrValidation, "pipeline", "params",
		"unknown parameter type for kind "+kind, nil)
}
