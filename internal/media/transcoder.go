package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when the requested output format is not
// in the supported set.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Format is a supported audio output format
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatWAV  Format = "wav"
	FormatOpus Format = "opus"
)

// formatSpec maps a format to its ffmpeg codec and container extension
type formatSpec struct {
	codec string
	ext   string
}

var formats = map[Format]formatSpec{
	FormatMP3:  {codec: "libmp3lame", ext: "mp3"},
	FormatOGG:  {codec: "libvorbis", ext: "ogg"},
	FormatWAV:  {codec: "pcm_s16le", ext: "wav"},
	FormatOpus: {codec: "libopus", ext: "opus"},
}

// ConversionError carries the ffmpeg diagnostic for a failed transcode
type ConversionError struct {
	Source     string
	Format     Format
	Diagnostic string
	Err        error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion of %s to %s failed: %v: %s", e.Source, e.Format, e.Err, e.Diagnostic)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Transcoder converts audio files between formats by driving an external
// ffmpeg process. Stateless per call; concurrent conversions of distinct
// sources are fine, overlapping conversions of the same source are the
// caller's problem.
type Transcoder struct {
	ffmpegPath string
}

// NewTranscoder creates a transcoder using the given ffmpeg binary
func NewTranscoder(ffmpegPath string) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{ffmpegPath: ffmpegPath}
}

// OutputPath derives the conversion target path: same directory and stem as
// the source, extension replaced by the format's container extension.
func OutputPath(sourcePath string, format Format) (string, error) {
	spec, ok := formats[format]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}

	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(dir, stem+"."+spec.ext), nil
}

// Convert transcodes sourcePath to the requested format and returns the
// output path. The source file is never deleted here; disposing of it after
// a successful conversion belongs to the caller. An existing output file is
// overwritten, so repeating a conversion is idempotent.
func (t *Transcoder) Convert(ctx context.Context, sourcePath string, format Format) (string, error) {
	spec, ok := formats[format]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}

	outputPath, err := OutputPath(sourcePath, format)
	if err != nil {
		return "", err
	}

	args := []string{
		"-y",
		"-i", sourcePath,
		"-vn",
		"-acodec", spec.codec,
		"-f", spec.ext,
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &ConversionError{
			Source:     sourcePath,
			Format:     format,
			Diagnostic: tailLines(stderr.String(), 5),
			Err:        err,
		}
	}

	return outputPath, nil
}

// tailLines keeps the last n lines of ffmpeg's stderr; the useful error is
// always at the end.
func tailLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}

	return strings.Join(lines, "\n")
}
