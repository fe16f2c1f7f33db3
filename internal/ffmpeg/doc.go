// Package ffmpeg builds and runs the per-stage ffmpeg commands of a job.
//
// [Build] turns a planner.StageSpec into a [Command] with a shared argument
// skeleton. [Runner.Run] executes one command, drains stdout and stderr
// concurrently through a progress parser, and reports failures as
// *[StageExecutionError] carrying the last diagnostic lines and a hint from
// [Diagnose].
package ffmpeg
