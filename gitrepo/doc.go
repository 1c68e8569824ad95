// Package gitrepo exports the commit history of git repositories as JSON
// batch files.
//
// Each repository is cloned below a local base directory on first use and
// fetched on later runs. Every branch is walked newest first and each
// commit becomes a core.CommitRecord carrying the per-file unified diff
// against its first parent. Batches are written to
// <output>/<repository>/<branch>_batch_<n>.json, counting from zero.
package gitrepo
