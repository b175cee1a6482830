package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"relay-go/internal/relaytypes"
)

// fakeStore 是测试用的内存 FileStore。
type fakeStore struct {
	files map[string][]byte
}

func (s *fakeStore) Save(ctx context.Context, reader io.Reader, fileSize int64, fileName, mimeType string) (*relaytypes.FileInfo, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) Open(ctx context.Context, locator string) ([]byte, error) {
	data, ok := s.files[locator]
	if !ok {
		return nil, errors.New("no such file")
	}
	return data, nil
}

func TestLocalFetcher(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01, 0x02}, 128)
	f := NewLocalFetcher(&fakeStore{files: map[string][]byte{
		"loc-1": payload,
		"empty": {},
	}})

	body, err := f.Fetch(context.Background(), "loc-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch")
	}

	var fe *FetchError
	if _, err := f.Fetch(context.Background(), "missing"); !errors.As(err, &fe) {
		t.Errorf("missing locator: err = %v, want *FetchError", err)
	}
	if _, err := f.Fetch(context.Background(), "empty"); !errors.As(err, &fe) {
		t.Errorf("empty file: err = %v, want *FetchError", err)
	}
}

func TestHTTPFetcherSuccess(t *testing.T) {
	payload := bytes.Repeat([]byte{0x89, 0x50, 0x4E, 0x47}, 64) // 256 bytes of binary
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	body, err := f.Fetch(context.Background(), srv.URL+"/file.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch: got %d bytes, want %d", len(body), len(payload))
	}
	if !strings.Contains(gotUA, "Relay-Go") {
		t.Errorf("User-Agent = %q, want descriptive client identifier", gotUA)
	}
}

func TestHTTPFetcherNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such object", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL+"/missing")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError", err)
	}
	if !strings.Contains(fe.Reason, "404") {
		t.Errorf("Reason = %q, want status mentioned", fe.Reason)
	}
}

func TestHTTPFetcherEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError for empty body", err)
	}
}

func TestHTTPFetcherErrorPayloadMasqueradingAsFile(t *testing.T) {
	// 40 字节、含 "NotFound" 的 200 响应必须判为 FetchError，不能转发
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NotFound","detail":"gone"}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	_, err := f.Fetch(context.Background(), srv.URL)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError for error payload", err)
	}
	if !strings.Contains(fe.Reason, "error payload") {
		t.Errorf("Reason = %q, want error-payload classification", fe.Reason)
	}
}

func TestHTTPFetcherSmallBinaryBodyPasses(t *testing.T) {
	// 小文件本身是合法的，只要不含错误标记就应放行
	payload := []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(0)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch")
	}
}

func TestFetcherDispatchesBySchemePrefix(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(0, nil)
	body, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch via HTTP: %v", err)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body mismatch")
	}

	// 非 URL 的 location 走本地仓库；未配置仓库时应报 FetchError
	_, err = f.Fetch(context.Background(), "kg2abcdef")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FetchError when no local store configured", err)
	}
}
