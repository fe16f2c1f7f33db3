// Package planner turns a probed input into an ordered list of stage
// recipes: repair (remux), reduce (scale and recompress), optimize
// (delivery bitrate), and, when the delivery container is not the working
// container, finalize. The ffmpeg package turns each recipe into a command
// line.
package planner
