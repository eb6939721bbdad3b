package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sigboard/internal/content"
	"github.com/kozaktomas/sigboard/internal/database/mock"
	"github.com/kozaktomas/sigboard/internal/signature"
	"github.com/kozaktomas/sigboard/internal/similarity"
	"github.com/kozaktomas/sigboard/internal/upload"
)

// testDeps bundles the collaborators of the handlers.
type testDeps struct {
	repo    *mock.MockSignatureRepository
	uploads *upload.Service
	content *content.Dir
	posts   *PostsHandler
	files   *UploadsHandler
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	store, err := upload.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dir, err := content.NewDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	repo := mock.NewMockSignatureRepository()
	uploads := upload.NewService(store, upload.NewRingCache(8), 32)

	return &testDeps{
		repo:    repo,
		uploads: uploads,
		content: dir,
		posts:   NewPostsHandler(uploads, repo, similarity.NewSearcher(repo, similarity.Options{}), dir),
		files:   NewUploadsHandler(uploads, 0),
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest creates an upload request with data in the given field
func multipartRequest(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, "image.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// decodeBody unmarshals the recorded response body
func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to unmarshal response %q: %v", recorder.Body.String(), err)
	}
}

func testPNG(t *testing.T, w, h, shift int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8((x*255/w + y*shift) % 256)
			img.Set(x, y, color.RGBA{R: v, G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// uploadToken uploads data through the handler and returns the token
func uploadToken(t *testing.T, d *testDeps, data []byte) string {
	t.Helper()
	recorder := httptest.NewRecorder()
	d.files.Create(recorder, multipartRequest(t, "content", data))
	if recorder.Code != http.StatusCreated {
		t.Fatalf("upload failed with %d: %s", recorder.Code, recorder.Body.String())
	}
	var props struct {
		Token string `json:"token"`
	}
	decodeBody(t, recorder, &props)
	return props.Token
}

// perturb nudges n distinct symbols of c by one level.
func perturb(c signature.Compressed, n int) signature.Compressed {
	sig := signature.Decode(c)
	for i := range n {
		j := (i * 37) % signature.Len
		if sig[j] < signature.NumSymbols-1 {
			sig[j]++
		} else {
			sig[j]--
		}
	}
	return signature.Encode(sig)
}
