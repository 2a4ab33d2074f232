package models

// GitFileChange is a file touched in a commit with basic diff stats,
// merged from the name-status and numstat views of the diff.
type GitFileChange struct {
	Path       string `json:"path"`
	ChangeType string `json:"changeType"` // A, M, D, R, C
	Additions  int    `json:"additions"`
	Deletions  int    `json:"deletions"`
}

// GitCommitRecord is commit metadata and touched files read from local
// git history.
type GitCommitRecord struct {
	SHA         string          `json:"sha"`
	ParentCount int             `json:"parentCount"`
	AuthoredAt  string          `json:"authoredAt"`
	CommittedAt string          `json:"committedAt"`
	AuthorName  string          `json:"authorName"`
	AuthorEmail string          `json:"authorEmail"`
	Subject     string          `json:"subject"`
	Body        string          `json:"body,omitempty"`
	IsMerge     bool            `json:"isMerge"`
	Files       []GitFileChange `json:"files,omitempty"`
}

// GitRepoMeta identifies an indexed working tree. RepoID is the absolute
// root path. RemoteURL and DefaultBranch are best-effort and may be empty.
type GitRepoMeta struct {
	RepoID        string `json:"repoId"`
	RootPath      string `json:"rootPath"`
	RemoteURL     string `json:"remoteUrl,omitempty"`
	DefaultBranch string `json:"defaultBranch,omitempty"`
}
