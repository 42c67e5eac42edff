package media

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildUpload assembles a parsed multipart file as the HTTP layer would hand
// it to the pipeline
func buildUpload(t *testing.T, filename, contentType, content string) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = io.Copy(part, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(&buf, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })

	fileHeaders := form.File["file"]
	require.Len(t, fileHeaders, 1)

	file, err := fileHeaders[0].Open()
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	return file, fileHeaders[0]
}

func newTestPipeline(t *testing.T, ffmpegSucceeds bool) (*Pipeline, string) {
	t.Helper()

	uploadDir := t.TempDir()
	transcoder := NewTranscoder(writeStubFFmpeg(t, ffmpegSucceeds))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := NewPipeline(uploadDir, FormatOpus, 10*time.Second, transcoder, logger)

	return pipeline, uploadDir
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessUploadNonAudioStoredAsIs(t *testing.T) {
	pipeline, uploadDir := newTestPipeline(t, true)
	file, header := buildUpload(t, "foto.png", "image/png", "png-bytes")

	result, err := pipeline.ProcessUpload(context.Background(), file, header)
	require.NoError(t, err)

	assert.False(t, result.Converted)
	assert.True(t, strings.HasSuffix(result.Path, "-foto.png"), "stored name keeps the original suffix: %s", result.Path)
	assert.Equal(t, uploadDir, filepath.Dir(result.Path))

	data, readErr := os.ReadFile(result.Path)
	require.NoError(t, readErr)
	assert.Equal(t, "png-bytes", string(data))
}

func TestProcessUploadAudioConvertedAndOriginalRemoved(t *testing.T) {
	pipeline, uploadDir := newTestPipeline(t, true)
	file, header := buildUpload(t, "nota.webm", "audio/webm", "audio-bytes")

	result, err := pipeline.ProcessUpload(context.Background(), file, header)
	require.NoError(t, err)

	assert.True(t, result.Converted)
	assert.True(t, strings.HasSuffix(result.Path, ".opus"), "converted path uses target extension: %s", result.Path)

	names := listDir(t, uploadDir)
	require.Len(t, names, 1, "only the converted file survives")
	assert.True(t, strings.HasSuffix(names[0], ".opus"))
}

func TestProcessUploadConversionFailureCleansUp(t *testing.T) {
	pipeline, uploadDir := newTestPipeline(t, false)
	file, header := buildUpload(t, "nota.webm", "audio/webm", "audio-bytes")

	_, err := pipeline.ProcessUpload(context.Background(), file, header)
	require.Error(t, err)

	var convErr *ConversionError
	assert.ErrorAs(t, err, &convErr)

	assert.Empty(t, listDir(t, uploadDir), "failed conversion leaves no files behind")
}

func TestProcessUploadUniquePaths(t *testing.T) {
	pipeline, _ := newTestPipeline(t, true)

	fileA, headerA := buildUpload(t, "same.png", "image/png", "a")
	resA, err := pipeline.ProcessUpload(context.Background(), fileA, headerA)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	fileB, headerB := buildUpload(t, "same.png", "image/png", "b")
	resB, err := pipeline.ProcessUpload(context.Background(), fileB, headerB)
	require.NoError(t, err)

	assert.NotEqual(t, resA.Path, resB.Path, "timestamped names must not collide")
}
