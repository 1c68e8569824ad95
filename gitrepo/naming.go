package gitrepo

import (
	"fmt"
	"strings"
)

// RepoName derives the repository name from its URL: the last path
// segment without a ".git" suffix.
func RepoName(url string) (string, error) {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndexAny(trimmed, "/:"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	name := strings.TrimSuffix(trimmed, ".git")
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, url)
	}
	return name, nil
}

var branchReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SafeBranchName makes a branch name usable as part of a file name.
func SafeBranchName(branch string) string {
	return branchReplacer.Replace(branch)
}

// BatchNamer names the batch files of one branch: <branch>_batch_<n>.json.
func BatchNamer(branch string) func(int) string {
	safe := SafeBranchName(branch)
	return func(index int) string {
		return fmt.Sprintf("%s_batch_%d.json", safe, index)
	}
}

func checkpointKey(repo, branch string) string {
	return "git:" + repo + ":" + branch
}
