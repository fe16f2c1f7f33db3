// Package naming derives the artifact file names a job writes, recognizes
// files that are themselves artifacts, and resolves stem collisions between
// inputs that would otherwise share intermediates.
package naming
