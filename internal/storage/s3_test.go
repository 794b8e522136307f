package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeS3 starts a minimal path-style object server and points the client
// at it through the MINIO_* environment, the way the real deployment does.
func newFakeS3(t *testing.T) (*Client, *sync.Map) {
	t.Helper()
	var objects sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			b, err := io.ReadAll(r.Body)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			objects.Store(r.URL.Path, b)
			w.Header().Set("ETag", `"fake"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			v, ok := objects.Load(r.URL.Path)
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write(v.([]byte))
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("MINIO_ENDPOINT", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("MINIO_BUCKET", "grading")
	t.Setenv("MINIO_ACCESS_KEY", "test")
	t.Setenv("MINIO_SECRET_KEY", "test")

	c, err := New(context.Background())
	require.NoError(t, err)
	return c, &objects
}

func TestPutJSONStoresUnderPrefix(t *testing.T) {
	c, objects := newFakeS3(t)

	ref, err := c.PutJSON(context.Background(), PrefixReports, map[string]any{"pass": true})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref, "s3://grading/reports/"), "ref %q", ref)
	assert.True(t, strings.HasSuffix(ref, ".json"))

	stored := 0
	objects.Range(func(key, _ any) bool {
		assert.True(t, strings.HasPrefix(key.(string), "/grading/reports/"), "key %q", key)
		stored++
		return true
	})
	assert.Equal(t, 1, stored)
}

func TestGetJSONReadsByRef(t *testing.T) {
	c, objects := newFakeS3(t)

	report := map[string]any{"rubric_id": "psychiatry_intake", "pass": false}
	b, err := json.Marshal(report)
	require.NoError(t, err)
	objects.Store("/grading/reports/archived.json", b)

	var got map[string]any
	err = c.GetJSON(context.Background(), "s3://grading/reports/archived.json", &got)
	require.NoError(t, err)
	assert.Equal(t, "psychiatry_intake", got["rubric_id"])
	assert.Equal(t, false, got["pass"])
}

func TestGetJSONMissingObject(t *testing.T) {
	c, _ := newFakeS3(t)

	var got map[string]any
	err := c.GetJSON(context.Background(), "s3://grading/reports/nope.json", &got)
	assert.Error(t, err)
}

func TestParseS3Ref(t *testing.T) {
	bucket, key, err := parseS3Ref("s3://grading/reports/a.json")
	require.NoError(t, err)
	assert.Equal(t, "grading", bucket)
	assert.Equal(t, "reports/a.json", key)

	_, _, err = parseS3Ref("https://grading/reports/a.json")
	assert.Error(t, err)

	_, _, err = parseS3Ref("s3://bucket-only")
	assert.Error(t, err)

	_, _, err = parseS3Ref("s3://bucket/")
	assert.Error(t, err)
}
