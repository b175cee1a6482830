package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"relay-go/internal/config"
	"relay-go/internal/models"
	"relay-go/internal/relaytypes"
)

var (
	pngBytes = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x00}, 200)...)
	pdfBytes = append([]byte{0x25, 0x50, 0x44, 0x46, 0x2D, 0x31, 0x2E, 0x34}, bytes.Repeat([]byte{0x20}, 200)...)
)

// fakeFetcher 按 location 返回预置字节或错误。
type fakeFetcher struct {
	files map[string][]byte
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err, ok := f.errs[location]; ok {
		return nil, err
	}
	data, ok := f.files[location]
	if !ok {
		return nil, fmt.Errorf("fetch %s: unexpected status 404 Not Found", location)
	}
	return data, nil
}

// memCache 是测试用的内存 MediaCache。
type memCache struct {
	mu      sync.Mutex
	entries map[string]relaytypes.CacheEntry
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]relaytypes.CacheEntry)}
}

func (c *memCache) Lookup(ctx context.Context, location string) (*relaytypes.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[location]; ok {
		out := e
		return &out, nil
	}
	return nil, nil
}

func (c *memCache) Store(ctx context.Context, location, mediaID, mimeType, fileName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[location] = relaytypes.CacheEntry{Location: location, MediaID: mediaID, MimeType: mimeType, FileName: fileName}
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, location string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, location)
	return nil
}

// fakeSender 记录调用并按脚本返回错误。
type fakeSender struct {
	uploads     int
	sends       int
	uploadErr   error
	sendErrs    []error // 逐次弹出；用完后返回 nil
	sentMedia   []string
	sentTypes   []relaytypes.MessageType
	sentNames   []string
	nextMediaID int
}

func (s *fakeSender) UploadMedia(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	s.uploads++
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.nextMediaID++
	return fmt.Sprintf("MEDIA-%d", s.nextMediaID), nil
}

func (s *fakeSender) SendMedia(ctx context.Context, to string, msgType relaytypes.MessageType, mediaID, caption, fileName string) (string, error) {
	s.sends++
	s.sentMedia = append(s.sentMedia, mediaID)
	s.sentTypes = append(s.sentTypes, msgType)
	s.sentNames = append(s.sentNames, fileName)
	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("wamid.%d", s.sends), nil
}

func testConfig() config.Config {
	return config.Config{
		WhatsApp: config.WhatsAppConfig{
			AccessToken:   "token",
			PhoneNumberID: "12345",
		},
	}
}

func TestDeliverBatchIsolation(t *testing.T) {
	// 三个文件，第二个取源 404：必须返回三条结果，1/3 成功，2 失败，顺序不变
	fetcher := &fakeFetcher{
		files: map[string][]byte{
			"loc-1": pngBytes,
			"loc-3": pdfBytes,
		},
	}
	sender := &fakeSender{}
	svc := NewDeliveryService(fetcher, newMemCache(), sender, testConfig(), nil)

	items := []relaytypes.MediaItem{
		{Location: "loc-1", FileName: "a.png", MimeType: "image/png"},
		{Location: "loc-2", FileName: "b.png", MimeType: "image/png"},
		{Location: "loc-3", FileName: "c.pdf", MimeType: "application/pdf"},
	}
	results, err := svc.Deliver(context.Background(), "491701234567", items, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Status != relaytypes.DeliverySent {
		t.Errorf("item 1 status = %s, error = %s", results[0].Status, results[0].Error)
	}
	if results[1].Status != relaytypes.DeliveryFailed || results[1].Error == "" {
		t.Errorf("item 2 = %+v, want failed with error detail", results[1])
	}
	if results[2].Status != relaytypes.DeliverySent {
		t.Errorf("item 3 status = %s — 第二个失败不能阻断第三个", results[2].Status)
	}
	if results[2].FileName != "c.pdf" {
		t.Errorf("order not preserved: results[2].FileName = %q", results[2].FileName)
	}
}

func TestDeliverCacheMissThenHit(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-1": pngBytes}}
	cache := newMemCache()
	sender := &fakeSender{}
	svc := NewDeliveryService(fetcher, cache, sender, testConfig(), nil)
	items := []relaytypes.MediaItem{{Location: "loc-1", FileName: "a.png", MimeType: "image/png"}}

	// 第一次：未命中，应上传并写缓存
	if _, err := svc.Deliver(context.Background(), "491701234567", items, ""); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if sender.uploads != 1 {
		t.Fatalf("uploads after first deliver = %d, want 1", sender.uploads)
	}
	entry, _ := cache.Lookup(context.Background(), "loc-1")
	if entry == nil || entry.MediaID != "MEDIA-1" {
		t.Fatalf("cache entry = %+v, want MEDIA-1", entry)
	}

	// 第二次：命中，跳过上传直接发送
	if _, err := svc.Deliver(context.Background(), "491701234567", items, ""); err != nil {
		t.Fatalf("second Deliver: %v", err)
	}
	if sender.uploads != 1 {
		t.Errorf("uploads after second deliver = %d, 缓存命中不应再上传", sender.uploads)
	}
	if sender.sentMedia[len(sender.sentMedia)-1] != "MEDIA-1" {
		t.Errorf("second send used %q, want cached MEDIA-1", sender.sentMedia[len(sender.sentMedia)-1])
	}
}

func TestDeliverInvalidationRetry(t *testing.T) {
	// 缓存句柄发送被拒：作废缓存，恰好一次重新上传 + 发送
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-1": pngBytes}}
	cache := newMemCache()
	cache.Store(context.Background(), "loc-1", "STALE-HANDLE", "image/png", "a.png")

	sender := &fakeSender{sendErrs: []error{errors.New("whatsapp api error (status 400, code 100): Invalid media ID")}}
	svc := NewDeliveryService(fetcher, cache, sender, testConfig(), nil)

	results, err := svc.Deliver(context.Background(), "491701234567",
		[]relaytypes.MediaItem{{Location: "loc-1", FileName: "a.png", MimeType: "image/png"}}, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if results[0].Status != relaytypes.DeliverySent {
		t.Fatalf("result = %+v, want sent after retry", results[0])
	}
	if sender.uploads != 1 {
		t.Errorf("uploads = %d, want exactly 1 fresh upload", sender.uploads)
	}
	if sender.sends != 2 {
		t.Errorf("sends = %d, want 2 (cached attempt + retry)", sender.sends)
	}
	entry, _ := cache.Lookup(context.Background(), "loc-1")
	if entry == nil || entry.MediaID != "MEDIA-1" {
		t.Errorf("cache after retry = %+v, want fresh MEDIA-1", entry)
	}
}

func TestDeliverRetryFailureIsTerminal(t *testing.T) {
	// 重试路径上的第二次发送也失败：该文件终态 failed，只重试这一次
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-1": pngBytes}}
	cache := newMemCache()
	cache.Store(context.Background(), "loc-1", "STALE-HANDLE", "image/png", "a.png")

	sender := &fakeSender{sendErrs: []error{
		errors.New("stale handle rejected"),
		errors.New("still failing"),
	}}
	svc := NewDeliveryService(fetcher, cache, sender, testConfig(), nil)

	results, err := svc.Deliver(context.Background(), "491701234567",
		[]relaytypes.MediaItem{{Location: "loc-1", FileName: "a.png", MimeType: "image/png"}}, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if results[0].Status != relaytypes.DeliveryFailed {
		t.Errorf("status = %s, want failed", results[0].Status)
	}
	if sender.sends != 2 || sender.uploads != 1 {
		t.Errorf("sends = %d uploads = %d, want exactly one retry", sender.sends, sender.uploads)
	}
}

func TestDeliverUploadFailure(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-1": pngBytes, "loc-2": pdfBytes}}
	sender := &fakeSender{uploadErr: errors.New("whatsapp api error (status 413): file too large")}
	svc := NewDeliveryService(fetcher, newMemCache(), sender, testConfig(), nil)

	results, err := svc.Deliver(context.Background(), "491701234567", []relaytypes.MediaItem{
		{Location: "loc-1", FileName: "a.png", MimeType: "image/png"},
		{Location: "loc-2", FileName: "b.pdf", MimeType: "application/pdf"},
	}, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	for i, res := range results {
		if res.Status != relaytypes.DeliveryFailed {
			t.Errorf("item %d status = %s, want failed", i+1, res.Status)
		}
	}
	// 上传失败同样不阻断后续文件
	if sender.uploads != 2 {
		t.Errorf("uploads = %d, want 2", sender.uploads)
	}
}

func TestDeliverSniffOverridesDeclaredType(t *testing.T) {
	// 声明 jpeg、实际 PNG 的文件：上传与发送都必须用嗅探结果
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-1": pngBytes}}
	sender := &fakeSender{}
	svc := NewDeliveryService(fetcher, newMemCache(), sender, testConfig(), nil)

	results, err := svc.Deliver(context.Background(), "491701234567",
		[]relaytypes.MediaItem{{Location: "loc-1", FileName: "photo.jpg", MimeType: "image/jpeg"}}, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if results[0].MimeType != "image/png" {
		t.Errorf("MimeType = %q, want image/png", results[0].MimeType)
	}
	if results[0].FileName != "photo.png" {
		t.Errorf("FileName = %q, want photo.png", results[0].FileName)
	}
	if sender.sentNames[0] != "photo.png" {
		t.Errorf("sent file name = %q, want corrected photo.png", sender.sentNames[0])
	}
}

func TestDeliverClassifiesMessageType(t *testing.T) {
	fetcher := &fakeFetcher{files: map[string][]byte{
		"png": pngBytes,
		"pdf": pdfBytes,
	}}
	sender := &fakeSender{}
	svc := NewDeliveryService(fetcher, newMemCache(), sender, testConfig(), nil)

	_, err := svc.Deliver(context.Background(), "491701234567", []relaytypes.MediaItem{
		{Location: "png", FileName: "a.png", MimeType: ""},
		{Location: "pdf", FileName: "b.pdf", MimeType: ""},
	}, "hello")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if sender.sentTypes[0] != relaytypes.ImageMessageType {
		t.Errorf("png classified as %s, want image", sender.sentTypes[0])
	}
	if sender.sentTypes[1] != relaytypes.DocumentMessageType {
		t.Errorf("pdf classified as %s, want document", sender.sentTypes[1])
	}
}

func TestDeliverMissingConfigIsBatchLevelError(t *testing.T) {
	svc := NewDeliveryService(&fakeFetcher{}, newMemCache(), &fakeSender{}, config.Config{}, nil)
	_, err := svc.Deliver(context.Background(), "491701234567",
		[]relaytypes.MediaItem{{Location: "loc-1"}}, "")
	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want *config.ConfigError", err)
	}
	if len(cfgErr.Missing) != 2 {
		t.Errorf("Missing = %v, want both credentials listed", cfgErr.Missing)
	}
}

// fakeLogRepo 把写入的日志条目收进内存。
type fakeLogRepo struct {
	entries []*models.MessageLog
}

func (r *fakeLogRepo) Create(ctx context.Context, entry *models.MessageLog) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeLogRepo) List(ctx context.Context, limit, offset int) ([]*models.MessageLog, error) {
	return r.entries, nil
}

func (r *fakeLogRepo) ListByJobID(ctx context.Context, jobID string) ([]*models.MessageLog, error) {
	var out []*models.MessageLog
	for _, e := range r.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestDeliverLogsFetchFailureWithoutType(t *testing.T) {
	// 取源失败的文件从未被嗅探，日志不能把它猜成 document
	fetcher := &fakeFetcher{files: map[string][]byte{"loc-ok": pngBytes}}
	logRepo := &fakeLogRepo{}
	svc := NewDeliveryService(fetcher, newMemCache(), &fakeSender{}, testConfig(), logRepo)

	_, err := svc.Deliver(context.Background(), "491701234567", []relaytypes.MediaItem{
		{Location: "loc-missing", FileName: "gone.bin"},
		{Location: "loc-ok", FileName: "a.png", MimeType: "image/png"},
	}, "")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(logRepo.entries) != 2 {
		t.Fatalf("got %d log entries, want 2", len(logRepo.entries))
	}
	failedEntry := logRepo.entries[0]
	if failedEntry.Status != string(relaytypes.DeliveryFailed) || failedEntry.ErrorDetail == "" {
		t.Errorf("failed entry = %+v", failedEntry)
	}
	if failedEntry.Type != "" {
		t.Errorf("failed entry Type = %q, want empty — 没嗅探过的文件类型未知", failedEntry.Type)
	}
	sentEntry := logRepo.entries[1]
	if sentEntry.Type != string(relaytypes.ImageMessageType) {
		t.Errorf("sent entry Type = %q, want image", sentEntry.Type)
	}
}
