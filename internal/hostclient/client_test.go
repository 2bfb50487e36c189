package hostclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/notegest/internal/export"
	"github.com/dgallion1/notegest/internal/memhost"
	"github.com/dgallion1/notegest/internal/notebook"
	"github.com/dgallion1/notegest/internal/remote"
	"github.com/dgallion1/notegest/internal/sink"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const doc = `
sections:
  - pages:
      - id: p1
        title: Remote
        contents:
          - type: Outline
            outline:
              paragraphs:
                - type: RichText
                  richText: {text: over the wire}
                - type: Image
                  image: {width: 100, height: 50, hyperlink: "http://x"}
                - type: Ink
                  inkWords:
                    - possibilities: [ink, irk]
`

// bridgeServer exposes a memhost.Bridge the way the notegest API does.
func bridgeServer(t *testing.T, key string) (*httptest.Server, *memhost.Bridge) {
	t.Helper()
	nb, err := notebook.Parse([]byte(doc), ".yaml")
	require.NoError(t, err)
	bridge := memhost.NewBridge(nb, quiet)
	mux := http.NewServeMux()
	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+key {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
	mux.HandleFunc("POST /api/host/sessions", auth(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"session_id": bridge.Open()})
	}))
	mux.HandleFunc("POST /api/host/sessions/{id}/sync", auth(func(w http.ResponseWriter, r *http.Request) {
		var req remote.SyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, err := bridge.Sync(r.Context(), r.PathValue("id"), &req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(resp)
	}))
	mux.HandleFunc("DELETE /api/host/sessions/{id}", auth(func(w http.ResponseWriter, r *http.Request) {
		if err := bridge.CloseSession(r.Context(), r.PathValue("id")); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, bridge
}

func TestExportOverHTTP(t *testing.T) {
	srv, bridge := bridgeServer(t, "secret")
	c, err := New(srv.URL+"/", "secret", Options{HTTP2: true})
	require.NoError(t, err)
	defer c.Close()

	host, id, err := c.NewSession(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	records := sink.NewMemorySink()
	sum, err := export.New(quiet, export.Options{}).Run(context.Background(), remote.NewClient(host, id, quiet), records)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Pages)

	got := records.Records()
	require.Len(t, got, 3)
	require.Equal(t, "over the wire", got[0].Text)
	require.Equal(t, 100.0, got[1].Image.Width)
	require.Equal(t, "http://x", got[1].Image.Hyperlink)
	require.Equal(t, []string{"ink"}, got[2].Ink.Recognized)
	require.True(t, bridge.Session(id).Balanced())
}

func TestHostErrorsPassThrough(t *testing.T) {
	srv, _ := bridgeServer(t, "secret")
	c, err := New(srv.URL, "secret", Options{})
	require.NoError(t, err)

	host, id, err := c.NewSession(context.Background())
	require.NoError(t, err)
	rc := remote.NewClient(host, id, quiet)
	rc.NavigateToPage(rc.ActiveSection())
	err = rc.Commit(context.Background())
	var hce *remote.HostCommunicationError
	require.ErrorAs(t, err, &hce)
	require.Equal(t, "InvalidArgument", hce.Code)
	require.Equal(t, "navigateToPage", hce.DebugInfo["action"])
}

func TestRejectedCredentials(t *testing.T) {
	srv, _ := bridgeServer(t, "secret")
	c, err := New(srv.URL, "wrong", Options{})
	require.NoError(t, err)
	_, err = c.OpenSession(context.Background())
	require.ErrorContains(t, err, "status 401")
}

func TestUnknownSession(t *testing.T) {
	srv, _ := bridgeServer(t, "secret")
	c, err := New(srv.URL, "secret", Options{})
	require.NoError(t, err)
	_, err = c.Session("nope").Sync(context.Background(), &remote.SyncRequest{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "status 404"), err.Error())
}

func TestCloseSession(t *testing.T) {
	srv, bridge := bridgeServer(t, "secret")
	c, err := New(srv.URL, "secret", Options{})
	require.NoError(t, err)

	_, id, err := c.NewSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, bridge.Sessions())

	require.NoError(t, c.CloseSession(context.Background(), id))
	require.Equal(t, 0, bridge.Sessions())

	err = c.CloseSession(context.Background(), id)
	require.ErrorContains(t, err, "status 404")
}
