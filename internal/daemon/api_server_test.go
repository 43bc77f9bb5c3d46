package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"ludex/internal/api"
	"ludex/internal/library"
	"ludex/internal/logging"
	"ludex/internal/metadata"
	"ludex/internal/testsupport"
)

func newTestHandler(t *testing.T) (http.Handler, *library.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.server.routes(), store
}

func doRequest(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = strings.NewReader(v)
		default:
			data, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal request body: %v", err)
			}
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func seedSuggestion(t *testing.T, store *library.Store, title string, paths ...string) int64 {
	t.Helper()

	for _, path := range paths {
		testsupport.NewInstance(t, store, path, title)
	}
	cluster, err := store.InsertSuggestedCluster(context.Background(), library.ClusterProposal{
		SuggestedTitle: title,
		Confidence:     0.9,
		Metadata:       metadata.Bag{},
		MemberPaths:    paths,
		PrimaryPath:    paths[0],
	})
	if err != nil {
		t.Fatalf("InsertSuggestedCluster: %v", err)
	}
	return cluster.ID
}

func TestLibraryEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	testsupport.NewCanonical(t, store, "can-celeste", "Celeste")
	testsupport.NewInstance(t, store, "/library/celeste", "Celeste")
	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/celeste", "can-celeste", 0)
	})
	if err != nil {
		t.Fatalf("link instance: %v", err)
	}
	testsupport.NewInstance(t, store, "/library/undertale", "Undertale")

	rec := doRequest(t, handler, http.MethodGet, "/api/library", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp api.EntriesResponse
	decodeResponse(t, rec, &resp)
	if len(resp.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(resp.Entries))
	}
	if resp.Entries[0].DisplayTitle != "Celeste" || resp.Entries[0].Type != "canonical" {
		t.Errorf("first entry = %s/%s, want Celeste/canonical",
			resp.Entries[0].DisplayTitle, resp.Entries[0].Type)
	}
	if resp.Entries[1].Type != "orphan" {
		t.Errorf("second entry type = %s, want orphan", resp.Entries[1].Type)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/library?type=orphan", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("filtered status = %d, want 200", rec.Code)
	}
	decodeResponse(t, rec, &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].DisplayTitle != "Undertale" {
		t.Errorf("orphan filter returned %+v", resp.Entries)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/library?type=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/library", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	seedSuggestion(t, store, "Hollow Knight", "/library/hollow-knight", "/library/hollow_knight_gog")

	rec := doRequest(t, handler, http.MethodGet, "/api/library/suggestions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp api.SuggestionsResponse
	decodeResponse(t, rec, &resp)
	if len(resp.Suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(resp.Suggestions))
	}
	got := resp.Suggestions[0]
	if got.SuggestedTitle != "Hollow Knight" || len(got.Members) != 2 {
		t.Errorf("suggestion = %+v", got)
	}
	if !got.Members[0].IsPrimary {
		t.Error("expected primary member first")
	}
}

func TestClusterAcceptEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	clusterID := seedSuggestion(t, store, "Gamea", "/library/gamea", "/library/gamea-copy")

	target := "/api/clusters/" + itoa(clusterID) + "/accept"
	rec := doRequest(t, handler, http.MethodPost, target, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var ok api.OKResponse
	decodeResponse(t, rec, &ok)
	if ok.Status != "accepted" {
		t.Errorf("status payload = %q, want accepted", ok.Status)
	}

	instance, err := store.InstanceByPath(context.Background(), "/library/gamea")
	if err != nil {
		t.Fatalf("InstanceByPath: %v", err)
	}
	if instance.CanonicalID == "" {
		t.Error("expected accepted member to be linked")
	}

	rec = doRequest(t, handler, http.MethodPost, target, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second accept status = %d, want 409", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/clusters/424242/accept", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown cluster status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/clusters/abc/accept", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("bad id status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, target, nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestClusterAcceptIntoExistingCanonical(t *testing.T) {
	handler, store := newTestHandler(t)
	testsupport.NewCanonical(t, store, "can-stardew", "Stardew Valley")
	clusterID := seedSuggestion(t, store, "Stardew", "/library/stardew")

	rec := doRequest(t, handler, http.MethodPost,
		"/api/clusters/"+itoa(clusterID)+"/accept",
		api.AcceptRequest{CanonicalID: "can-stardew"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	instance, err := store.InstanceByPath(context.Background(), "/library/stardew")
	if err != nil {
		t.Fatalf("InstanceByPath: %v", err)
	}
	if instance.CanonicalID != "can-stardew" {
		t.Errorf("canonical id = %q, want can-stardew", instance.CanonicalID)
	}
}

func TestClusterRejectEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	clusterID := seedSuggestion(t, store, "Gameb", "/library/gameb", "/library/gameb2")

	rec := doRequest(t, handler, http.MethodPost, "/api/clusters/"+itoa(clusterID)+"/reject", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var ok api.OKResponse
	decodeResponse(t, rec, &ok)
	if ok.Status != "rejected" {
		t.Errorf("status payload = %q, want rejected", ok.Status)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/library/suggestions", nil)
	var resp api.SuggestionsResponse
	decodeResponse(t, rec, &resp)
	if len(resp.Suggestions) != 0 {
		t.Errorf("suggestions after reject = %d, want 0", len(resp.Suggestions))
	}
}

func TestCanonicalDetailEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	testsupport.NewCanonical(t, store, "can-celeste", "Celeste")
	testsupport.NewInstance(t, store, "/library/celeste", "Celeste")
	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/celeste", "can-celeste", 0)
	})
	if err != nil {
		t.Fatalf("link instance: %v", err)
	}
	if _, err := store.CreateIdentityLink(ctx, library.IdentityLink{
		CanonicalID: "can-celeste",
		SourceType:  library.SourceSteam,
		ExternalID:  "504230",
	}); err != nil {
		t.Fatalf("CreateIdentityLink: %v", err)
	}

	rec := doRequest(t, handler, http.MethodGet, "/api/canonical/can-celeste", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var detail api.CanonicalDetail
	decodeResponse(t, rec, &detail)
	if detail.Game.DisplayTitle != "Celeste" {
		t.Errorf("title = %q, want Celeste", detail.Game.DisplayTitle)
	}
	if len(detail.Instances) != 1 || detail.Instances[0].FolderPath != "/library/celeste" {
		t.Errorf("instances = %+v", detail.Instances)
	}
	if len(detail.Links) != 1 || detail.Links[0].ExternalID != "504230" {
		t.Errorf("links = %+v", detail.Links)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/canonical/can-missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing canonical status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/canonical/can-celeste/extra", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("nested path status = %d, want 404", rec.Code)
	}
}

func TestPromoteEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	testsupport.NewInstance(t, store, "/library/undertale", "Undertale")

	rec := doRequest(t, handler, http.MethodPost, "/api/instances/promote",
		api.PromoteRequest{FolderPath: "/library/undertale"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp api.PromoteResponse
	decodeResponse(t, rec, &resp)
	if resp.Game.ID == "" || resp.Game.DisplayTitle != "Undertale" {
		t.Errorf("promoted game = %+v", resp.Game)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/instances/promote",
		api.PromoteRequest{FolderPath: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty path status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/instances/promote",
		api.PromoteRequest{FolderPath: "/library/nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/instances/promote", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body status = %d, want 400", rec.Code)
	}
}

func TestUnmergeEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	ctx := context.Background()

	testsupport.NewCanonical(t, store, "can-celeste", "Celeste")
	testsupport.NewInstance(t, store, "/library/celeste", "Celeste")
	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.LinkInstance("/library/celeste", "can-celeste", 0)
	})
	if err != nil {
		t.Fatalf("link instance: %v", err)
	}

	rec := doRequest(t, handler, http.MethodPost, "/api/instances/unmerge",
		api.UnmergeRequest{FolderPath: "/library/celeste"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var ok api.OKResponse
	decodeResponse(t, rec, &ok)
	if ok.Status != "unmerged" {
		t.Errorf("status payload = %q, want unmerged", ok.Status)
	}

	instance, err := store.InstanceByPath(ctx, "/library/celeste")
	if err != nil {
		t.Fatalf("InstanceByPath: %v", err)
	}
	if instance.CanonicalID != "" {
		t.Errorf("canonical id = %q, want empty after unmerge", instance.CanonicalID)
	}
}

func TestScanEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/scan", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var ok api.OKResponse
	decodeResponse(t, rec, &ok)
	if ok.Status != "scan triggered" {
		t.Errorf("status payload = %q, want scan triggered", ok.Status)
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/scan", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("second status = %d, want 202", rec.Code)
	}
	decodeResponse(t, rec, &ok)
	if ok.Status != "scan already pending" {
		t.Errorf("second status payload = %q, want scan already pending", ok.Status)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/scan", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	handler, store := newTestHandler(t)
	testsupport.NewInstance(t, store, "/library/celeste", "Celeste")

	rec := doRequest(t, handler, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status api.DaemonStatus
	decodeResponse(t, rec, &status)
	if status.Running {
		t.Error("daemon was never started, running must be false")
	}
	if status.PID <= 0 {
		t.Errorf("pid = %d, want > 0", status.PID)
	}
	if status.Stats.Instances != 1 {
		t.Errorf("instances = %d, want 1", status.Stats.Instances)
	}
	if len(status.Checks) == 0 {
		t.Error("expected preflight checks in status payload")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
