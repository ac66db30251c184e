package application

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- identity verifier ---

type verifyResult struct {
	user *model.Identity
	err  error
}

// fakeVerifier answers per token. A token with a gate blocks until the gate
// is closed or the context ends.
type fakeVerifier struct {
	mu      sync.Mutex
	results map[string]verifyResult
	gates   map[string]chan struct{}
	calls   int
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		results: make(map[string]verifyResult),
		gates:   make(map[string]chan struct{}),
	}
}

func (v *fakeVerifier) accept(token, login string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results[token] = verifyResult{user: &model.Identity{Login: login}}
}

func (v *fakeVerifier) reject(token string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results[token] = verifyResult{err: err}
}

func (v *fakeVerifier) gate(token string) chan struct{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	ch := make(chan struct{})
	v.gates[token] = ch
	return ch
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func (v *fakeVerifier) VerifyToken(ctx context.Context, token string) (*model.Identity, error) {
	v.mu.Lock()
	v.calls++
	gate := v.gates[token]
	v.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	res, ok := v.results[token]
	if !ok {
		return nil, fmt.Errorf("verify: %w", model.ErrAuthenticationExpired)
	}
	return res.user, res.err
}

// --- session store ---

type fakeSessionStore struct {
	mu      sync.Mutex
	session *model.Session
	saves   int
	clears  int
}

func (s *fakeSessionStore) Save(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := session
	s.session = &cp
	s.saves++
	return nil
}

func (s *fakeSessionStore) Load(_ context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *fakeSessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.clears++
	return nil
}

func (s *fakeSessionStore) stored() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// --- document store ---

// fakeDocumentStore keeps files in memory and enforces fingerprints the way
// the remote store does.
type fakeDocumentStore struct {
	mu    sync.Mutex
	files map[string]*model.RemoteFile
	gets  int
	puts  []driven.PutFileRequest
	// staleAfterGet simulates another writer landing between read and write.
	staleAfterGet bool
	getErr        error
	version       int
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{files: make(map[string]*model.RemoteFile)}
}

func (s *fakeDocumentStore) seed(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.files[path] = &model.RemoteFile{
		Path:        path,
		Branch:      "main",
		Content:     content,
		Fingerprint: "sha-" + strconv.Itoa(s.version),
	}
}

func (s *fakeDocumentStore) GetFile(_ context.Context, path, _ string) (*model.RemoteFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	f, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, model.ErrNotFound)
	}
	cp := *f
	if s.staleAfterGet {
		s.version++
		f.Fingerprint = "sha-" + strconv.Itoa(s.version)
	}
	return &cp, nil
}

func (s *fakeDocumentStore) PutFile(_ context.Context, req driven.PutFileRequest) (*model.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[req.Path]
	if ok && req.Fingerprint != f.Fingerprint {
		return nil, fmt.Errorf("put %s: %w", req.Path, model.ErrConflictWriteRejected)
	}
	s.puts = append(s.puts, req)
	s.version++
	fp := "sha-" + strconv.Itoa(s.version)
	s.files[req.Path] = &model.RemoteFile{Path: req.Path, Branch: req.Branch, Content: req.Content, Fingerprint: fp}
	return &model.WriteResult{Path: req.Path, Fingerprint: fp, CommitSHA: "commit-" + strconv.Itoa(s.version)}, nil
}

func (s *fakeDocumentStore) putRequests() []driven.PutFileRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driven.PutFileRequest(nil), s.puts...)
}

func (s *fakeDocumentStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// --- observers ---

type recordedMutation struct {
	table, op, outcome string
}

type fakeMutationObserver struct {
	mu   sync.Mutex
	seen []recordedMutation
}

func (o *fakeMutationObserver) ObserveMutation(table, op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, recordedMutation{table, op, outcome})
}

type fakeRemoteObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *fakeRemoteObserver) ObserveRemoteCall(op, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, op+":"+outcome)
}

// --- repo settings store ---

type fakeRepoSettingsStore struct {
	mu        sync.Mutex
	overrides model.RepoOverrides
}

func (s *fakeRepoSettingsStore) GetOverrides(_ context.Context) (model.RepoOverrides, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overrides, nil
}

func (s *fakeRepoSettingsStore) SetOverrides(_ context.Context, o model.RepoOverrides) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides = o
	return nil
}

// --- users ---

type staticUser struct{ login string }

func (u staticUser) CurrentUser() *model.Identity {
	if u.login == "" {
		return nil
	}
	return &model.Identity{Login: u.login}
}

func putRequest(file *model.RemoteFile, content string) driven.PutFileRequest {
	return driven.PutFileRequest{
		Path:        file.Path,
		Branch:      file.Branch,
		Content:     content,
		Message:     "test write",
		Fingerprint: file.Fingerprint,
	}
}
