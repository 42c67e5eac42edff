// Package media handles uploaded file storage and audio format conversion.
// Conversion drives an external ffmpeg process over a fixed set of output
// formats; the upload pipeline classifies files by declared media type and
// guarantees the stored original never outlives a conversion attempt.
package media
