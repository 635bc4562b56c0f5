package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService emulates the control plane, envd file API and interpreter on
// one listener.
type fakeService struct {
	mu       sync.Mutex
	created  int
	killed   []string
	files    map[string]string
	executed []string
	stream   []string
	apiKey   string
}

func newFakeService(t *testing.T, stream ...string) (*fakeService, *httptest.Server) {
	t.Helper()
	fs := &fakeService{files: map[string]string{}, stream: stream, apiKey: "e2b_test"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandboxes", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != fs.apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"message": "Invalid API key"})
			return
		}
		var req createRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		fs.created++
		fs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createResponse{SandboxID: "sbx-1", EnvdAccessToken: "tok", ClientID: req.TemplateID})
	})
	mux.HandleFunc("DELETE /sandboxes/{id}", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.killed = append(fs.killed, r.PathValue("id"))
		fs.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /files", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Access-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		fs.mu.Lock()
		fs.files[r.URL.Query().Get("path")] = string(b)
		fs.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		fs.mu.Lock()
		fs.executed = append(fs.executed, body["code"])
		fs.mu.Unlock()
		for _, line := range fs.stream {
			_, _ = io.WriteString(w, line+"\n")
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fs, srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{APIURL: srv.URL, EndpointOverride: srv.URL})
}

func TestOpenUploadExecuteClose(t *testing.T) {
	fs, srv := newFakeService(t,
		`{"type":"stdout","text":"hello\n"}`,
		`{"type":"result","png":"iVBORw0KGgo=","text":"<Figure size 640x480>"}`,
		`{"type":"result","data":{"columns":["city","avg"],"data":[["Pune",450.5]]}}`,
		`{"type":"result","text":"42","is_main_result":true}`,
		`{"type":"number_of_executions","execution_count":1}`,
		`{"type":"end_of_execution"}`,
	)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	assert.Equal(t, "sbx-1", sb.ID())

	handle, err := sb.Upload(ctx, "uploads/zomato.csv", strings.NewReader("a,b\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, "./zomato.csv", handle)

	exec, err := sb.Execute(ctx, "print('hello')")
	require.NoError(t, err)
	require.Len(t, exec.Results, 3)
	assert.Equal(t, KindImage, exec.Results[0].Kind)
	assert.Equal(t, "png", exec.Results[0].Image.Format)
	assert.Equal(t, KindTable, exec.Results[1].Kind)
	assert.Equal(t, []string{"city", "avg"}, exec.Results[1].Table.Columns)
	assert.Equal(t, [][]string{{"Pune", "450.5"}}, exec.Results[1].Table.Rows)
	assert.Equal(t, KindScalar, exec.Results[2].Kind)
	assert.Equal(t, 1, exec.ExecutionCount)
	stdout, _ := exec.Logs()
	assert.Equal(t, "hello\n", stdout)

	require.NoError(t, sb.Close(ctx))
	require.NoError(t, sb.Close(ctx))

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 1, fs.created)
	assert.Equal(t, []string{"sbx-1"}, fs.killed)
	assert.Equal(t, "a,b\n1,2\n", fs.files["./zomato.csv"])
	assert.Equal(t, []string{"print('hello')"}, fs.executed)
}

func TestExecuteRaisesExecutionError(t *testing.T) {
	_, srv := newFakeService(t,
		`{"type":"stderr","text":"warn\n"}`,
		`{"type":"error","name":"KeyError","value":"'cost'","traceback":"Traceback..."}`,
		`{"type":"end_of_execution"}`,
	)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	defer sb.Close(ctx)

	exec, err := sb.Execute(ctx, "df['cost']")
	require.Error(t, err)
	var ee *ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "KeyError", ee.Name)
	assert.True(t, IsExecutionError(err))
	require.NotNil(t, exec)
	_, stderr := exec.Logs()
	assert.Equal(t, "warn\n", stderr)
}

func TestExecuteUnexpectedEndIsInterpreterError(t *testing.T) {
	_, srv := newFakeService(t, `{"type":"unexpected_end_of_execution"}`)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	defer sb.Close(ctx)

	_, err = sb.Execute(ctx, "import os; os._exit(1)")
	var ie *InterpreterError
	require.True(t, errors.As(err, &ie))
	assert.False(t, IsExecutionError(err))
}

func TestExecuteTruncatedStreamIsInterpreterError(t *testing.T) {
	_, srv := newFakeService(t,
		`{"type":"stdout","text":"partial\n"}`,
		`{"type":"result","text":"42"}`,
	)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	defer sb.Close(ctx)

	exec, err := sb.Execute(ctx, "print('partial'); 42")
	var ie *InterpreterError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Error(), "end_of_execution")
	assert.False(t, IsExecutionError(err))
	require.NotNil(t, exec)
	assert.Len(t, exec.Results, 1)
}

func TestOpenErrors(t *testing.T) {
	_, srv := newFakeService(t)
	c := newTestClient(srv)

	_, err := c.Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = c.Open(context.Background(), "wrong")
	var ie *InterpreterError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, http.StatusUnauthorized, ie.StatusCode)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestUploadFailureIsFileWriteError(t *testing.T) {
	_, srv := newFakeService(t)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	sb.token = "stale"

	_, err = sb.Upload(ctx, "data.csv", strings.NewReader("x"))
	var fe *FileWriteError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "./data.csv", fe.Path)
	assert.Equal(t, http.StatusUnauthorized, fe.StatusCode)
}

func TestOperationsAfterClose(t *testing.T) {
	_, srv := newFakeService(t)
	ctx := context.Background()
	sb, err := newTestClient(srv).Open(ctx, "e2b_test")
	require.NoError(t, err)
	require.NoError(t, sb.Close(ctx))

	_, err = sb.Execute(ctx, "1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sb.Upload(ctx, "d.csv", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHandle(t *testing.T) {
	h, err := Handle(`C:\Users\me\sales.csv`)
	require.NoError(t, err)
	assert.Equal(t, "./sales.csv", h)

	_, err = Handle("..")
	assert.Error(t, err)
	_, err = Handle("")
	assert.Error(t, err)
}
