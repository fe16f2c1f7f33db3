// Package probe provides ffprobe-based media inspection and typed result
// structures. One JSON call per file answers every question the pipeline
// asks: is there a video stream, how long is it, how many frames should the
// encoder report, and is it interlaced or HDR.
package probe
