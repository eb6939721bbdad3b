package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/sigboard/internal/database"
	"github.com/kozaktomas/sigboard/internal/fingerprint"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/kozaktomas/sigboard/internal/similarity"
)

func putSignature(t *testing.T, d *testDeps, postID, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := jsonRequest(t, http.MethodPut, "/", contentTokenRequest{ContentToken: token})
	recorder := httptest.NewRecorder()
	d.posts.PutSignature(recorder, requestWithChiParams(req, map[string]string{"id": postID}))
	return recorder
}

func TestPostsHandler_PutAndGetSignature(t *testing.T) {
	d := newTestDeps(t)
	data := testPNG(t, 60, 40, 1)
	token := uploadToken(t, d, data)

	recorder := putSignature(t, d, "7", token)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	want, words, err := fingerprint.ComputeSignature(data)
	if err != nil {
		t.Fatal(err)
	}

	var resp SignatureResponse
	decodeBody(t, recorder, &resp)
	if resp.PostID != 7 || resp.Signature != want || resp.Words != words || resp.Version != signature.Version {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Checksum != fingerprint.ComputeChecksum(data) {
		t.Errorf("checksum = %q", resp.Checksum)
	}

	// The upload is consumed and became the content of the post.
	if _, err := d.uploads.Store().Read(token); err == nil {
		t.Error("upload should be discarded")
	}
	stored, err := d.content.Get(context.Background(), 7)
	if err != nil || string(stored) != string(data) {
		t.Errorf("content of post 7 not stored: %v", err)
	}

	recorder = httptest.NewRecorder()
	d.posts.GetSignature(recorder, requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "7"}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	var got SignatureResponse
	decodeBody(t, recorder, &got)
	if got.Signature != want {
		t.Error("GetSignature returned a different signature")
	}
}

func TestPostsHandler_PutSignatureErrors(t *testing.T) {
	tests := []struct {
		name     string
		postID   string
		token    string
		expected int
	}{
		{"invalid post id", "x", "", http.StatusBadRequest},
		{"missing token", "1", "", http.StatusBadRequest},
		{"invalid token", "1", "../../secret", http.StatusBadRequest},
		{"unknown upload", "1", "6f1c3e2a-8d9b-4c1e-9f0a-2b3c4d5e6f70.png", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := newTestDeps(t)
			recorder := putSignature(t, d, tc.postID, tc.token)
			if recorder.Code != tc.expected {
				t.Errorf("expected status %d, got %d: %s", tc.expected, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestPostsHandler_PutSignatureSaveError(t *testing.T) {
	d := newTestDeps(t)
	token := uploadToken(t, d, testPNG(t, 20, 20, 1))
	d.repo.SaveError = errors.New("db down")

	recorder := putSignature(t, d, "1", token)
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", recorder.Code)
	}
	if _, err := d.uploads.Store().Read(token); err != nil {
		t.Error("upload should be kept when saving fails")
	}
}

func TestPostsHandler_ReverseSearch(t *testing.T) {
	d := newTestDeps(t)
	data := testPNG(t, 50, 50, 2)
	if rec := putSignature(t, d, "3", uploadToken(t, d, data)); rec.Code != http.StatusOK {
		t.Fatalf("put failed: %d", rec.Code)
	}

	search := func(token string) *httptest.ResponseRecorder {
		recorder := httptest.NewRecorder()
		d.posts.ReverseSearch(recorder, jsonRequest(t, http.MethodPost, "/api/v1/posts/reverse-search", contentTokenRequest{ContentToken: token}))
		return recorder
	}

	// Same content again is an exact match.
	token := uploadToken(t, d, data)
	recorder := search(token)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var res similarity.Result
	decodeBody(t, recorder, &res)
	if res.ExactPost == nil || *res.ExactPost != 3 || len(res.SimilarPosts) != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if _, ok := d.uploads.Cache().Peek(token); !ok {
		t.Error("properties should stay cached for the following post creation")
	}

	recorder = search("")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 without token, got %d", recorder.Code)
	}

	d.repo.FindByChecksumError = errors.New("db down")
	recorder = search(token)
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", recorder.Code)
	}
}

func TestPostsHandler_ReverseSearchNoMatch(t *testing.T) {
	d := newTestDeps(t)
	token := uploadToken(t, d, testPNG(t, 30, 30, 1))

	recorder := httptest.NewRecorder()
	d.posts.ReverseSearch(recorder, jsonRequest(t, http.MethodPost, "/", contentTokenRequest{ContentToken: token}))
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", recorder.Code)
	}
	if got := recorder.Body.String(); got != "{\"exact_post\":null,\"similar_posts\":[]}\n" {
		t.Errorf("unexpected body %s", got)
	}
}

func TestPostsHandler_Similar(t *testing.T) {
	d := newTestDeps(t)
	var base signature.Signature
	for i := range base {
		base[i] = uint8((i * 7 / 3) % signature.NumSymbols)
	}
	c := signature.Encode(base)
	d.repo.AddSignature(database.NewStoredSignature(1, "a", c))
	d.repo.AddSignature(database.NewStoredSignature(2, "b", perturb(c, 30)))
	d.repo.AddSignature(database.NewStoredSignature(3, "c", perturb(c, 10)))

	similar := func(id, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		recorder := httptest.NewRecorder()
		d.posts.Similar(recorder, requestWithChiParams(req, map[string]string{"id": id}))
		return recorder
	}

	recorder := similar("1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var resp SimilarResponse
	decodeBody(t, recorder, &resp)
	if resp.PostID != 1 || len(resp.SimilarPosts) != 2 || resp.SimilarPosts[0].PostID != 3 || resp.SimilarPosts[1].PostID != 2 {
		t.Errorf("unexpected response %+v", resp)
	}

	recorder = similar("1", "limit=1")
	decodeBody(t, recorder, &resp)
	if len(resp.SimilarPosts) != 1 {
		t.Errorf("limit ignored: %+v", resp)
	}

	if recorder := similar("99", ""); recorder.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", recorder.Code)
	}
	if recorder := similar("1", "threshold=2"); recorder.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", recorder.Code)
	}
}

func TestPostsHandler_DeleteSignature(t *testing.T) {
	d := newTestDeps(t)
	if rec := putSignature(t, d, "5", uploadToken(t, d, testPNG(t, 20, 20, 4))); rec.Code != http.StatusOK {
		t.Fatalf("put failed: %d", rec.Code)
	}

	del := func(id string) int {
		recorder := httptest.NewRecorder()
		d.posts.DeleteSignature(recorder, requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": id}))
		return recorder.Code
	}

	if code := del("5"); code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", code)
	}
	if ok, _ := d.repo.Has(context.Background(), 5); ok {
		t.Error("signature should be deleted")
	}
	if _, err := d.content.Get(context.Background(), 5); err == nil {
		t.Error("content should be deleted")
	}
	if code := del("5"); code != http.StatusNotFound {
		t.Errorf("expected status 404 for second delete, got %d", code)
	}
}
