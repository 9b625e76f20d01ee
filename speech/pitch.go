package speech

import (
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// AudioToolchain shells out to ffmpeg for the waveform work providers cannot
// do natively: semitone pitch shifts that preserve duration, and transcoding
// provider output to MP3. A missing binary is always a configuration error,
// never a silent no-op.
type AudioToolchain struct {
	binary string
}

// NewAudioToolchainFromEnv locates ffmpeg via SPEECH_FFMPEG_BINARY,
// FFMPEG_BINARY or the search path. The toolchain is still constructed when
// nothing is found; every operation then fails with an actionable error.
func NewAudioToolchainFromEnv() *AudioToolchain {
	binary := firstNonEmpty(
		os.Getenv("SPEECH_FFMPEG_BINARY"),
		os.Getenv("FFMPEG_BINARY"),
	)
	if binary == "" {
		if found, err := exec.LookPath("ffmpeg"); err == nil {
			binary = found
		}
	}
	return &AudioToolchain{binary: binary}
}

// Shift applies a semitone pitch shift to the file at path and returns the
// path of the derivative. A zero delta returns the input path unchanged with
// no file I/O. The original file is never overwritten.
func (t *AudioToolchain) Shift(path string, semitones int) (string, error) {
	if semitones == 0 {
		return path, nil
	}
	if t == nil || t.binary == "" {
		return "", configurationError("ffmpeg binary not found; set SPEECH_FFMPEG_BINARY or install ffmpeg on the search path")
	}
	if _, err := os.Stat(path); err != nil {
		return "", configurationError("audio file not found: %s", path)
	}

	output := ShiftedPath(path, semitones)
	ratio := math.Pow(2, float64(semitones)/12.0)

	cmd := exec.Command(t.binary,
		"-y",
		"-i", path,
		"-af", fmt.Sprintf("rubberband=pitch=%.8f", ratio),
		output,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		snippet := strings.TrimSpace(string(out))
		if len(snippet) > 512 {
			snippet = snippet[len(snippet)-512:]
		}
		return "", upstreamError(err, "pitch shift failed: %s", snippet)
	}

	return output, nil
}

// TranscodeToMP3 converts raw audio bytes in the given source format to MP3.
func (t *AudioToolchain) TranscodeToMP3(data []byte, sourceFormat string) ([]byte, error) {
	if t == nil || t.binary == "" {
		return nil, configurationError("ffmpeg binary not found; MP3 conversion requires ffmpeg on the search path")
	}

	ext := strings.TrimPrefix(strings.TrimSpace(sourceFormat), ".")
	if ext == "" {
		ext = "wav"
	}

	input, err := os.CreateTemp("", "speechroute-*."+ext)
	if err != nil {
		return nil, upstreamError(err, "create transcode input")
	}
	defer os.Remove(input.Name())

	if _, err := input.Write(data); err != nil {
		input.Close()
		return nil, upstreamError(err, "write transcode input")
	}
	input.Close()

	output := strings.TrimSuffix(input.Name(), "."+ext) + ".mp3"
	defer os.Remove(output)

	cmd := exec.Command(t.binary, "-y", "-i", input.Name(), output)
	if out, err := cmd.CombinedOutput(); err != nil {
		snippet := strings.TrimSpace(string(out))
		if len(snippet) > 512 {
			snippet = snippet[len(snippet)-512:]
		}
		return nil, upstreamError(err, "transcode to mp3 failed: %s", snippet)
	}

	converted, err := os.ReadFile(output)
	if err != nil {
		return nil, upstreamError(err, "read transcoded audio")
	}
	return converted, nil
}

// ShiftedPath derives the deterministic derivative path for a pitch-shifted
// copy, keeping the original extension: out_pitch_+2.mp3 for a +2 shift.
func ShiftedPath(path string, semitones int) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == "" {
		ext = ".mp3"
	}
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_pitch_%+d%s", name, semitones, ext))
}
