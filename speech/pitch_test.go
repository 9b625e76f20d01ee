package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftedPath(t *testing.T) {
	assert.Equal(t, "output/speech_te_abcd1234_pitch_+2.mp3", ShiftedPath("output/speech_te_abcd1234.mp3", 2))
	assert.Equal(t, "output/speech_te_abcd1234_pitch_-3.mp3", ShiftedPath("output/speech_te_abcd1234.mp3", -3))
	assert.NotEqual(t,
		ShiftedPath("output/a.mp3", 2),
		ShiftedPath("output/a.mp3", -2),
		"opposite shifts must not collide")
}

func TestShiftZeroIsNoOp(t *testing.T) {
	toolchain := &AudioToolchain{}

	// The source file does not exist; a zero shift must not touch the disk.
	path, err := toolchain.Shift("does/not/exist.mp3", 0)
	require.NoError(t, err)
	assert.Equal(t, "does/not/exist.mp3", path)
}

func TestShiftWithoutBinary(t *testing.T) {
	toolchain := &AudioToolchain{}

	_, err := toolchain.Shift("some/file.mp3", 2)
	failure := asFailure(err)
	require.NotNil(t, failure)
	assert.Equal(t, FailureConfiguration, failure.Kind)
	assert.Contains(t, failure.Message, "ffmpeg")
}

func TestTranscodeWithoutBinary(t *testing.T) {
	toolchain := &AudioToolchain{}

	_, err := toolchain.TranscodeToMP3([]byte("wav"), "wav")
	failure := asFailure(err)
	require.NotNil(t, failure)
	assert.Equal(t, FailureConfiguration, failure.Kind)
}
