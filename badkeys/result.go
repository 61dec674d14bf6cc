package badkeys

import (
	"path"
	"strconv"
)

type Result struct {
	Repo     string
	RepoID   int8
	RepoType string
	RepoPath string
	RepoName string
	KeyPath  string
	Private  bool
	ListDate string
}

// GetID returns a stable identifier for the matched key
func (r *Result) GetID() string {
	if r.Private {
		return "badkeys-private-" + strconv.FormatInt(int64(r.RepoID), 10) + "-" + r.KeyPath
	}
	return "badkeys-" + r.RepoType + "-" + r.Repo + "-" + r.RepoPath + "-" + r.KeyPath
}

// ToURL returns a link to the published key, or an empty string for
// unpublished repositories.
func (r *Result) ToURL() string {
	if r.Private {
		return ""
	}
	if r.RepoType != "github" {
		return "https://" + r.RepoType + "/" + path.Join(r.Repo, "blob", r.RepoPath, r.KeyPath)
	}
	return "https://github.com/" + path.Join(r.Repo, "blob", r.RepoPath, r.KeyPath)
}
