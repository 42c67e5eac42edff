package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubFFmpeg writes a shell script standing in for ffmpeg. succeed=true
// creates the output file (last argument); succeed=false prints a diagnostic
// and exits nonzero.
func writeStubFFmpeg(t *testing.T, succeed bool) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")

	var script string
	if succeed {
		script = "#!/bin/sh\nfor last; do :; done\ntouch \"$last\"\n"
	} else {
		script = "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	}

	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func writeSourceFile(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "nota-de-voz.webm")
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestOutputPathDerivation(t *testing.T) {
	tests := []struct {
		source string
		format Format
		want   string
	}{
		{"/tmp/uploads/1700000000000-voice.webm", FormatOpus, "/tmp/uploads/1700000000000-voice.opus"},
		{"/tmp/uploads/voice.webm", FormatWAV, "/tmp/uploads/voice.wav"},
		{"/tmp/uploads/voice", FormatMP3, "/tmp/uploads/voice.mp3"},
		{"/tmp/uploads/archive.tar.gz", FormatOGG, "/tmp/uploads/archive.tar.ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := OutputPath(tt.source, tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConvertUnsupportedFormat(t *testing.T) {
	source := writeSourceFile(t)
	transcoder := NewTranscoder(writeStubFFmpeg(t, true))

	_, err := transcoder.Convert(context.Background(), source, Format("flac"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	// Source untouched, no output produced
	_, statErr := os.Stat(source)
	assert.NoError(t, statErr, "source must survive a rejected format")

	entries, readErr := os.ReadDir(filepath.Dir(source))
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "no filesystem side effect for unsupported format")
}

func TestConvertSuccess(t *testing.T) {
	source := writeSourceFile(t)
	transcoder := NewTranscoder(writeStubFFmpeg(t, true))

	outputPath, err := transcoder.Convert(context.Background(), source, FormatWAV)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(filepath.Dir(source), "nota-de-voz.wav"), outputPath)

	_, statErr := os.Stat(outputPath)
	assert.NoError(t, statErr, "output file must exist")

	_, statErr = os.Stat(source)
	assert.NoError(t, statErr, "transcoder must never delete the source")
}

func TestConvertFailureCarriesDiagnostic(t *testing.T) {
	source := writeSourceFile(t)
	transcoder := NewTranscoder(writeStubFFmpeg(t, false))

	_, err := transcoder.Convert(context.Background(), source, FormatOpus)
	require.Error(t, err)

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Contains(t, convErr.Diagnostic, "Invalid data found")
	assert.Equal(t, FormatOpus, convErr.Format)
}

func TestTailLines(t *testing.T) {
	assert.Equal(t, "", tailLines("", 5))
	assert.Equal(t, "c\nd\ne", tailLines("a\nb\nc\nd\ne", 3))
	assert.Equal(t, "a", tailLines("a\n", 3))
}
