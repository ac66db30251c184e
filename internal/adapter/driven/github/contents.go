package github

import (
	"context"
	"fmt"
	"unicode/utf8"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// GetFile fetches path on branch (the target's default branch when empty)
// and decodes its base64 transport encoding back to UTF-8 text. Files over
// the contents API's 1 MB inline limit are fetched through the blob API.
func (c *Client) GetFile(ctx context.Context, path, branch string) (*model.RemoteFile, error) {
	if err := c.requireToken(); err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	target := c.targets.Target()
	if branch == "" {
		branch = target.Branch
	}

	file, dir, resp, err := c.gh.Repositories.GetContents(ctx, target.Owner, target.Name, path,
		&gh.RepositoryContentGetOptions{Ref: branch})
	logRateLimit(resp, "contents.get", path)
	if err != nil {
		return nil, fmt.Errorf("get %s@%s: %w", path, branch, classify(err))
	}
	if file == nil {
		return nil, fmt.Errorf("get %s@%s: path is a directory (%d entries): %w", path, branch, len(dir), model.ErrNotFound)
	}

	content, err := c.fileContent(ctx, target, file)
	if err != nil {
		return nil, fmt.Errorf("get %s@%s: %w", path, branch, err)
	}

	return &model.RemoteFile{
		Path:        path,
		Branch:      branch,
		Content:     content,
		Fingerprint: file.GetSHA(),
	}, nil
}

func (c *Client) fileContent(ctx context.Context, target model.RepoTarget, file *gh.RepositoryContent) (string, error) {
	var raw []byte
	if file.GetEncoding() == "none" {
		blob, resp, err := c.gh.Git.GetBlobRaw(ctx, target.Owner, target.Name, file.GetSHA())
		logRateLimit(resp, "git.blob", file.GetPath())
		if err != nil {
			return "", fmt.Errorf("fetch blob %s: %w", file.GetSHA(), classify(err))
		}
		raw = blob
	} else {
		// GetContent decodes base64 as bytes; the line breaks GitHub inserts
		// every 60 characters are ignored by the decoder.
		text, err := file.GetContent()
		if err != nil {
			return "", fmt.Errorf("decode content: %w: %w", model.ErrParseFailure, err)
		}
		raw = []byte(text)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("content is not valid UTF-8: %w", model.ErrParseFailure)
	}
	return string(raw), nil
}

// PutFile writes req.Content to req.Path. Without a fingerprint the file is
// created; with one, GitHub accepts the write only if the file is still at
// that version, and a mismatch is reported as model.ErrConflictWriteRejected.
func (c *Client) PutFile(ctx context.Context, req driven.PutFileRequest) (*model.WriteResult, error) {
	if err := c.requireToken(); err != nil {
		return nil, fmt.Errorf("put %s: %w", req.Path, err)
	}
	if !utf8.ValidString(req.Content) {
		return nil, fmt.Errorf("put %s: content is not valid UTF-8", req.Path)
	}

	target := c.targets.Target()
	branch := req.Branch
	if branch == "" {
		branch = target.Branch
	}

	// go-github base64-encodes Content when marshalling the request body.
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(req.Message),
		Content: []byte(req.Content),
		Branch:  gh.Ptr(branch),
	}

	var (
		result *gh.RepositoryContentResponse
		resp   *gh.Response
		err    error
	)
	if req.Fingerprint == "" {
		result, resp, err = c.gh.Repositories.CreateFile(ctx, target.Owner, target.Name, req.Path, opts)
	} else {
		opts.SHA = gh.Ptr(req.Fingerprint)
		result, resp, err = c.gh.Repositories.UpdateFile(ctx, target.Owner, target.Name, req.Path, opts)
	}
	logRateLimit(resp, "contents.put", req.Path)
	if err != nil {
		return nil, fmt.Errorf("put %s@%s: %w", req.Path, branch, classifyWrite(err))
	}

	out := &model.WriteResult{Path: req.Path}
	if result != nil {
		out.Fingerprint = result.GetContent().GetSHA()
		out.CommitSHA = result.Commit.GetSHA()
	}
	return out, nil
}
