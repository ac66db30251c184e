package model

// RemoteFile is a read-only snapshot of one file in the remote store.
// Fingerprint is the store's version token for Content; it is stale after any
// successful write to Path.
type RemoteFile struct {
	Path        string
	Branch      string
	Content     string
	Fingerprint string
}

// WriteResult describes an accepted write. Fingerprint is the new version of
// the file; CommitSHA identifies the commit that carried it.
type WriteResult struct {
	Path        string
	Fingerprint string
	CommitSHA   string
}
