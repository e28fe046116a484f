package ffmpeg

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type FFProbeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// GetVideoResolution probes the first video stream of the given source.
func GetVideoResolution(url string) (width int, height int, err error) {
	cmd := exec.Command("ffprobe",
		"-loglevel", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		url,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe error: %v, output: %s", err, string(out))
	}

	var result FFProbeOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return 0, 0, err
	}

	if len(result.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video stream found")
	}

	width = result.Streams[0].Width
	height = result.Streams[0].Height
	return width, height, nil
}

// ProbeDuration returns the container duration of the source in seconds.
func ProbeDuration(url string) (float64, error) {
	cmd := exec.Command("ffprobe",
		"-loglevel", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		url,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %v, output: %s", err, string(out))
	}

	var result FFProbeOutput
	if err := json.Unmarshal(out, &result); err != nil {
		return 0, err
	}

	if result.Format.Duration == "" {
		return 0, fmt.Errorf("no duration found")
	}

	return strconv.ParseFloat(result.Format.Duration, 64)
}

// ExtractThumbnail captures a single frame at the given offset.
func ExtractThumbnail(inputPath, outputPath string, atSeconds float64) error {
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 2, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "3",
		"-y",
		outputPath,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg error: %v, output: %s", err, string(out))
	}
	return nil
}
