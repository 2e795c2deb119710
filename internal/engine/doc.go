// Package engine contains the core scanning pipeline for malscan. It snapshots
// target files, runs pattern detection, semantic enhancement and cross-file
// correlation in order, and returns structured findings. This package is
// internal; external consumers should use the stable facade in pkg/core.
package engine
