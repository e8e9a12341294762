package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftworks/syncbridge/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const azureTestCredentials = `{"access_token":"graph-token"}`

func newAzureTestDrive(t *testing.T, handler http.HandlerFunc) *AzureDrive {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	drive := NewAzureDrive(logger.Mock())
	drive.BaseURL = srv.URL
	drive.HTTPClient = srv.Client()
	return drive
}

func TestAzureDrive_ListFiles(t *testing.T) {
	var gotAuth string
	drive := newAzureTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/me/drive/root/children":
			_, _ = w.Write([]byte(`{"value": [
				{"id": "item-1", "name": "Documents", "size": 0, "webUrl": "https://onedrive.com/item-1", "lastModifiedDateTime": "2024-02-01T09:00:00Z", "folder": {"childCount": 1}},
				{"id": "item-2", "name": "notes.txt", "size": 512, "webUrl": "https://onedrive.com/item-2", "lastModifiedDateTime": "2024-02-02T10:00:00Z", "file": {"mimeType": "text/plain"}}
			]}`))
		case "/me/drive/items/item-1/children":
			_, _ = w.Write([]byte(`{"value": [
				{"id": "item-3", "name": "nested.docx", "size": 1024, "file": {"mimeType": "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	})

	// Non-recursive stays at the root level.
	files, err := drive.ListFiles(context.Background(), json.RawMessage(azureTestCredentials), ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Bearer graph-token", gotAuth)

	assert.Equal(t, "item-1", files[0].ID)
	assert.True(t, files[0].IsFolder)
	assert.Equal(t, "item-2", files[1].ID)
	assert.False(t, files[1].IsFolder)
	assert.Equal(t, "text/plain", files[1].MimeType)
	assert.EqualValues(t, 512, files[1].Size)

	// Recursive walks into the folder as well.
	files, err = drive.ListFiles(context.Background(), json.RawMessage(azureTestCredentials), ListOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "item-3", files[2].ID)
	assert.Equal(t, "nested.docx", files[2].Name)
}

func TestAzureDrive_ListFiles_FolderScope(t *testing.T) {
	var gotPath string
	drive := newAzureTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": []}`))
	})

	_, err := drive.ListFiles(context.Background(), json.RawMessage(azureTestCredentials), ListOptions{FolderID: "folder-x"})
	require.NoError(t, err)
	assert.Equal(t, "/me/drive/items/folder-x/children", gotPath)
}

func TestAzureDrive_ListFiles_Pagination(t *testing.T) {
	var srvURL string
	drive := newAzureTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/me/drive/root/children":
			_, _ = w.Write([]byte(fmt.Sprintf(`{"value": [{"id": "p1", "name": "first.txt"}], "@odata.nextLink": "%s/page-2"}`, srvURL)))
		case "/page-2":
			_, _ = w.Write([]byte(`{"value": [{"id": "p2", "name": "second.txt"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	srvURL = drive.BaseURL

	files, err := drive.ListFiles(context.Background(), json.RawMessage(azureTestCredentials), ListOptions{})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "p1", files[0].ID)
	assert.Equal(t, "p2", files[1].ID)
}

func TestAzureDrive_ListFiles_GraphError(t *testing.T) {
	drive := newAzureTestDrive(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": "InvalidAuthenticationToken"}}`, http.StatusUnauthorized)
	})

	_, err := drive.ListFiles(context.Background(), json.RawMessage(azureTestCredentials), ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
