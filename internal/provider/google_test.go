package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleTestCredentials = `{"access_token":"drive-token"}`

func newDriveTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *GoogleDrive) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	drive := NewGoogleDrive(logger.Mock(), nil)
	drive.Endpoint = srv.URL + "/"
	drive.HTTPClient = srv.Client()
	return srv, drive
}

func TestGoogleDrive_ListFiles(t *testing.T) {
	var gotQuery string
	_, drive := newDriveTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "files") {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"files": [
				{"id": "folder-1", "name": "Reports", "mimeType": "application/vnd.google-apps.folder", "modifiedTime": "2024-03-01T10:00:00Z", "webViewLink": "https://drive.google.com/folder-1"},
				{"id": "file-1", "name": "summary.pdf", "mimeType": "application/pdf", "size": "2048", "modifiedTime": "2024-03-02T11:30:00Z", "webViewLink": "https://drive.google.com/file-1"}
			]
		}`))
	})

	files, err := drive.ListFiles(context.Background(), json.RawMessage(googleTestCredentials), ListOptions{FolderID: "folder-root"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Contains(t, gotQuery, "'folder-root' in parents", "Folder scope should land in the drive query")
	assert.Contains(t, gotQuery, "trashed = false")

	assert.Equal(t, "folder-1", files[0].ID)
	assert.Equal(t, "Reports", files[0].Name)
	assert.True(t, files[0].IsFolder)

	assert.Equal(t, "file-1", files[1].ID)
	assert.Equal(t, "summary.pdf", files[1].Name)
	assert.False(t, files[1].IsFolder)
	assert.Equal(t, "application/pdf", files[1].MimeType)
	assert.EqualValues(t, 2048, files[1].Size)
	assert.Equal(t, "https://drive.google.com/file-1", files[1].WebViewURL)
	assert.Equal(t, 2024, files[1].LastModifiedAt.Year())
}

func TestGoogleDrive_ListFiles_RootQuery(t *testing.T) {
	var gotQuery string
	_, drive := newDriveTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files": []}`))
	})

	files, err := drive.ListFiles(context.Background(), json.RawMessage(googleTestCredentials), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "trashed = false", gotQuery, "Root listings should not carry a parent filter")
}

func TestGoogleDrive_ListFiles_Pagination(t *testing.T) {
	calls := 0
	_, drive := newDriveTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"files": [{"id": "a", "name": "a.txt"}], "nextPageToken": "page-2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"files": [{"id": "b", "name": "b.txt"}]}`))
	})

	files, err := drive.ListFiles(context.Background(), json.RawMessage(googleTestCredentials), ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, 2, calls, "Both pages should be fetched")
	assert.Equal(t, "a", files[0].ID)
	assert.Equal(t, "b", files[1].ID)
}

func TestGoogleDrive_ListFiles_BadCredentials(t *testing.T) {
	drive := NewGoogleDrive(logger.Mock(), nil)

	_, err := drive.ListFiles(context.Background(), nil, ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials are not set")
}
