package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/policypanel/internal/adapter/driven/github"
	"github.com/ericfisherdev/policypanel/internal/domain/model"
	"github.com/ericfisherdev/policypanel/internal/domain/port/driven"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler, token string) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(
		server.Client(),
		server.URL+"/",
		staticTokens{token},
		defaultTarget,
	)
	require.NoError(t, err)

	return client
}

func TestGetFile_DecodesContent(t *testing.T) {
	repo := newFakeRepo(t)
	sha := repo.seed("main", "data/table.json", `{"columns": [], "rows": []}`)
	client := newTestClient(t, repo.handler(), testToken)

	file, err := client.GetFile(context.Background(), "data/table.json", "")
	require.NoError(t, err)

	assert.Equal(t, "data/table.json", file.Path)
	assert.Equal(t, "main", file.Branch)
	assert.Equal(t, `{"columns": [], "rows": []}`, file.Content)
	assert.Equal(t, sha, file.Fingerprint)
}

func TestGetFile_ExplicitBranch(t *testing.T) {
	repo := newFakeRepo(t)
	repo.seed("staging", "a.json", "staging copy")
	client := newTestClient(t, repo.handler(), testToken)

	file, err := client.GetFile(context.Background(), "a.json", "staging")
	require.NoError(t, err)
	assert.Equal(t, "staging copy", file.Content)

	_, err = client.GetFile(context.Background(), "a.json", "main")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPutThenGet_RoundTripsMultibyteText(t *testing.T) {
	texts := []string{
		"plain ascii",
		"Política de IA — última revisión",
		"日本語のテキストと絵文字 🚀🤖",
		"mixed\r\nline endings\nand «quotes» ✓ ✗",
		"Ωmega 😀",
	}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			repo := newFakeRepo(t)
			client := newTestClient(t, repo.handler(), testToken)
			ctx := context.Background()

			res, err := client.PutFile(ctx, driven.PutFileRequest{Path: "doc.json", Content: text, Message: "create"})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Fingerprint)

			file, err := client.GetFile(ctx, "doc.json", "")
			require.NoError(t, err)
			assert.Equal(t, text, file.Content)
			assert.Equal(t, res.Fingerprint, file.Fingerprint)
		})
	}
}

func TestPutFile_RequestBody(t *testing.T) {
	repo := newFakeRepo(t)
	sha := repo.seed("main", "doc.json", "v1")
	client := newTestClient(t, repo.handler(), testToken)

	res, err := client.PutFile(context.Background(), driven.PutFileRequest{
		Path:        "doc.json",
		Content:     "v2 ✓",
		Message:     "Update row r1 in tableA by octocat",
		Fingerprint: sha,
	})
	require.NoError(t, err)
	assert.Equal(t, "doc.json", res.Path)
	assert.NotEmpty(t, res.CommitSHA)

	puts := repo.putBodies()
	require.Len(t, puts, 1)
	put := puts[0]
	assert.Equal(t, "Update row r1 in tableA by octocat", put.Message)
	assert.Equal(t, "main", put.Branch)
	assert.Equal(t, sha, put.SHA)
	assert.Equal(t, "v2 ✓", string(put.Content))
}

func TestPutFile_StaleFingerprintIsConflict(t *testing.T) {
	repo := newFakeRepo(t)
	original := repo.seed("main", "doc.json", "v1")
	client := newTestClient(t, repo.handler(), testToken)
	ctx := context.Background()

	// Another writer lands first.
	_, err := client.PutFile(ctx, driven.PutFileRequest{Path: "doc.json", Content: "v2", Message: "m", Fingerprint: original})
	require.NoError(t, err)

	_, err = client.PutFile(ctx, driven.PutFileRequest{Path: "doc.json", Content: "v3", Message: "m", Fingerprint: original})
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConflictWriteRejected)
	assert.NotErrorIs(t, err, model.ErrNotFound)

	file, err := client.GetFile(ctx, "doc.json", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", file.Content)
}

func TestPutFile_CreateOverExistingIsConflict(t *testing.T) {
	repo := newFakeRepo(t)
	repo.seed("main", "doc.json", "v1")
	client := newTestClient(t, repo.handler(), testToken)

	_, err := client.PutFile(context.Background(), driven.PutFileRequest{Path: "doc.json", Content: "v2", Message: "m"})
	assert.ErrorIs(t, err, model.ErrConflictWriteRejected)
}

func TestCalls_WithoutTokenSendNothing(t *testing.T) {
	repo := newFakeRepo(t)
	repo.seed("main", "doc.json", "v1")
	client := newTestClient(t, repo.handler(), "")
	ctx := context.Background()

	_, err := client.GetFile(ctx, "doc.json", "")
	assert.ErrorIs(t, err, model.ErrAuthenticationRequired)

	_, err = client.PutFile(ctx, driven.PutFileRequest{Path: "doc.json", Content: "x"})
	assert.ErrorIs(t, err, model.ErrAuthenticationRequired)

	assert.Zero(t, repo.requestCount())
}

func TestRequests_CarryBearerAndAcceptHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		writeGitHubError(w, http.StatusNotFound, "Not Found")
	})
	client := newTestClient(t, handler, testToken)

	_, _ = client.GetFile(context.Background(), "x.json", "")
	got := <-headers
	assert.Equal(t, "Bearer "+testToken, got.Get("Authorization"))
	assert.Equal(t, "application/vnd.github.v3+json", got.Get("Accept"))
}

func TestGetFile_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		headers map[string]string
		message string
		want    error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, message: "Bad credentials", want: model.ErrAuthenticationExpired},
		{name: "forbidden", status: http.StatusForbidden, message: "Resource not accessible", want: model.ErrPermissionDenied},
		{
			name:    "quota exhausted",
			status:  http.StatusForbidden,
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Limit": "5000"},
			message: "API rate limit exceeded for user",
			want:    model.ErrRateLimited,
		},
		{name: "too many requests", status: http.StatusTooManyRequests, message: "slow down", want: model.ErrRateLimited},
		{name: "missing", status: http.StatusNotFound, message: "Not Found", want: model.ErrNotFound},
		{name: "server error", status: http.StatusBadGateway, message: "Bad gateway", want: model.ErrTransientServer},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tc.headers {
					w.Header().Set(k, v)
				}
				writeGitHubError(w, tc.status, tc.message)
			})
			client := newTestClient(t, handler, testToken)

			_, err := client.GetFile(context.Background(), "doc.json", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetFile_DirectoryIsNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"type":"file","name":"a.json","path":"data/a.json"}]`))
	})
	client := newTestClient(t, handler, testToken)

	_, err := client.GetFile(context.Background(), "data", "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetFile_InvalidUTF8IsParseFailure(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"file","encoding":"base64","sha":"abc","content":"/w=="}`))
	})
	client := newTestClient(t, handler, testToken)

	_, err := client.GetFile(context.Background(), "doc.json", "")
	assert.ErrorIs(t, err, model.ErrParseFailure)
}

func TestGetFile_LargeFileUsesBlobAPI(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/policies/contents/big.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"type":"file","encoding":"none","sha":"blob123","content":""}`))
	})
	mux.HandleFunc("GET /repos/acme/policies/git/blobs/blob123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("large ✓ body"))
	})
	client := newTestClient(t, mux, testToken)

	file, err := client.GetFile(context.Background(), "big.json", "")
	require.NoError(t, err)
	assert.Equal(t, "large ✓ body", file.Content)
	assert.Equal(t, "blob123", file.Fingerprint)
}

func TestVerifyToken(t *testing.T) {
	repo := newFakeRepo(t)
	client := newTestClient(t, repo.handler(), "")

	user, err := client.VerifyToken(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "octocat", user.Login)
	assert.Equal(t, "The Octocat", user.Name)

	_, err = client.VerifyToken(context.Background(), "ghp_wrong")
	assert.ErrorIs(t, err, model.ErrAuthenticationExpired)
}
