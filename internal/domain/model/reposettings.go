package model

import (
	"fmt"
	"regexp"
	"strings"
)

var repoPartPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// RepoTarget identifies the repository and branch the table documents live in.
type RepoTarget struct {
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
}

// FullName returns "owner/name".
func (t RepoTarget) FullName() string {
	return t.Owner + "/" + t.Name
}

// Validate checks owner, name and branch for characters the contents API
// cannot address.
func (t RepoTarget) Validate() error {
	if !repoPartPattern.MatchString(t.Owner) {
		return fmt.Errorf("invalid repository owner %q", t.Owner)
	}
	if !repoPartPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid repository name %q", t.Name)
	}
	if t.Branch == "" || strings.ContainsAny(t.Branch, " \t\n") || strings.Contains(t.Branch, "..") {
		return fmt.Errorf("invalid branch %q", t.Branch)
	}
	return nil
}

// RepoOverrides holds the durable, user-set replacements for the configured
// repo target. Empty fields fall back to the configured defaults.
type RepoOverrides struct {
	Owner  string
	Name   string
	Branch string
}

// Apply returns base with every non-empty override applied.
func (o RepoOverrides) Apply(base RepoTarget) RepoTarget {
	if o.Owner != "" {
		base.Owner = o.Owner
	}
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.Branch != "" {
		base.Branch = o.Branch
	}
	return base
}
