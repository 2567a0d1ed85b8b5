package cvs

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cvgenius-backend/internal/llm"
	"cvgenius-backend/internal/shared/storage/object/local"
)

const docxMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// fakeLLM returns a canned reply and counts calls.
type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   atomic.Int64
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, input llm.CompleteInput) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, input.Prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fixedPlan struct{ allowed int }

func (p fixedPlan) AllowedCVs(ctx context.Context, userID string) (int, error) {
	return p.allowed, nil
}

func makeTestDocx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`,
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func newTestService(t *testing.T, model *fakeLLM) *Service {
	t.Helper()
	return &Service{
		Repo:    NewGateway(nil, NewMemoryRepo()),
		Store:   local.New(t.TempDir()),
		LLM:     model,
		BaseURL: "https://cvgenius.test",
	}
}

func TestUpload_HappyPath(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english","personalInfo":{"name":"Jane Doe","title":"Engineer"},"profile":"Experienced engineer"}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe - Engineer")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if cv.URLId == "" {
		t.Fatal("urlId must be set")
	}
	if !strings.HasPrefix(cv.CustomURLName, "jane-doe-") {
		t.Fatalf("custom url name: %q", cv.CustomURLName)
	}
	if cv.Degraded {
		t.Fatal("valid model reply must not degrade")
	}
	if cv.StructuredData.PersonalInfo.Name != "Jane Doe" {
		t.Fatalf("structured data: %+v", cv.StructuredData.PersonalInfo)
	}
	if cv.StorageKey == "" {
		t.Fatal("original file must be retained")
	}
	if !strings.Contains(model.prompts[0], "Jane Doe - Engineer") {
		t.Fatal("prompt must embed the extracted text")
	}

	got, err := svc.Get(context.Background(), "alice", cv.URLId)
	if err != nil || got.URLId != cv.URLId {
		t.Fatalf("get after upload: %v", err)
	}
}

func TestUpload_DegradedStillSucceeds(t *testing.T) {
	model := &fakeLLM{reply: "I am very sorry but I cannot help with that."}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe - Engineer")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("degraded upload must still succeed: %v", err)
	}
	if !cv.Degraded {
		t.Fatal("record must be flagged degraded")
	}
	if cv.StructuredData.PersonalInfo.Name != "Parsing Error" {
		t.Fatalf("expected fallback record, got %+v", cv.StructuredData.PersonalInfo)
	}
	if !strings.HasPrefix(cv.CustomURLName, "cv-") {
		t.Fatalf("degraded record must get a random slug: %q", cv.CustomURLName)
	}
}

func TestUpload_QuotaExceeded(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english"}`}
	svc := newTestService(t, model)
	svc.Plans = fixedPlan{allowed: 1}

	doc := makeTestDocx(t, "Jane Doe")
	if _, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc)); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	_, err := svc.Upload(context.Background(), "alice", "cv2.docx", docxMime, bytes.NewReader(doc))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestUpload_LLMUnavailable(t *testing.T) {
	model := &fakeLLM{err: llm.ErrUnavailable}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	_, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestUpdate_PreservesLanguage(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"danish","personalInfo":{"name":"Jane"}}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	updated, err := svc.Update(context.Background(), "alice", cv.URLId, StructuredCV{
		PersonalInfo: PersonalInfo{Name: "Jane Doe", Title: "Senior Udvikler"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.StructuredData.Language != "danish" {
		t.Fatalf("language must survive an update that omits it: %q", updated.StructuredData.Language)
	}
	if updated.HTML != "" {
		t.Fatal("update must invalidate generated html")
	}
}

func TestGenerateHTML_CachedAndDeduplicated(t *testing.T) {
	extractionReply := `{"language":"english","personalInfo":{"name":"Jane"}}`
	model := &fakeLLM{reply: extractionReply}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	uploadCalls := model.calls.Load()

	model.mu.Lock()
	model.reply = "```html\n<html><body><h1>Jane</h1></body></html>\n```"
	model.mu.Unlock()

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, genErr := svc.GenerateHTML(context.Background(), cv.URLId)
			if genErr != nil {
				t.Errorf("generate html: %v", genErr)
				return
			}
			results[i] = out
		}(i)
	}
	wg.Wait()

	htmlCalls := model.calls.Load() - uploadCalls
	if htmlCalls != 1 {
		t.Fatalf("concurrent generations must share one model call, got %d", htmlCalls)
	}
	for _, out := range results {
		if !strings.Contains(out, "<h1>Jane</h1>") {
			t.Fatalf("unexpected html: %q", out)
		}
		if !strings.Contains(out, "/api/analytics/cv/"+cv.URLId+"/view") {
			t.Fatal("tracking snippet must be injected")
		}
	}

	// A later call must hit the stored copy, not the model.
	if _, err := svc.GenerateHTML(context.Background(), cv.URLId); err != nil {
		t.Fatalf("cached generate: %v", err)
	}
	if model.calls.Load()-uploadCalls != 1 {
		t.Fatal("cached html must not trigger another model call")
	}
}

func TestPlaceholderPage_GeneratedOnce(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english","personalInfo":{"name":"Jane Doe"}}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	page, err := svc.PlaceholderPage(context.Background(), cv.URLId)
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	if !strings.Contains(page, "Jane Doe") {
		t.Fatal("placeholder must carry the owner's name")
	}
	if !strings.Contains(page, "https://cvgenius.test/"+cv.CustomURLName) {
		t.Fatal("placeholder must link to the public page")
	}

	stored, err := svc.Repo.GetByURLId(context.Background(), cv.URLId)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.PlaceholderPage == "" || stored.PlaceholderGenerated == nil {
		t.Fatal("placeholder must be persisted")
	}
}

func TestDelete_OwnershipEnforced(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english","personalInfo":{"name":"Jane"}}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := svc.Delete(context.Background(), "mallory", cv.URLId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete must look like not-found, got %v", err)
	}
	if err := svc.Delete(context.Background(), "alice", cv.URLId); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := svc.Get(context.Background(), "alice", cv.URLId); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted cv must be gone, got %v", err)
	}
}

func TestUploadProfilePicture_RoundTrip(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english","personalInfo":{"name":"Jane"}}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	picture := []byte("\x89PNG\r\n\x1a\nfake image bytes")
	url, err := svc.UploadProfilePicture(context.Background(), "alice", cv.URLId, "me.png", "image/png", int64(len(picture)), bytes.NewReader(picture))
	if err != nil {
		t.Fatalf("upload picture: %v", err)
	}
	if !strings.Contains(url, "/api/cv/"+cv.URLId+"/picture/") {
		t.Fatalf("picture url: %q", url)
	}

	key := url[strings.Index(url, "/picture/")+len("/picture/"):]
	rc, err := svc.ProfilePicture(context.Background(), cv.URLId, key)
	if err != nil {
		t.Fatalf("open picture: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || !bytes.Equal(got, picture) {
		t.Fatalf("picture bytes: err=%v len=%d", err, len(got))
	}

	if _, err := svc.ProfilePicture(context.Background(), cv.URLId, "someone-elses-key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign key must be not-found, got %v", err)
	}
}

func TestRepair_RestoresStructuredData(t *testing.T) {
	model := &fakeLLM{reply: "garbage output"}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe - Engineer")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !cv.Degraded {
		t.Fatal("setup: expected degraded record")
	}

	model.mu.Lock()
	model.reply = `{"language":"english","personalInfo":{"name":"Jane Doe"}}`
	model.mu.Unlock()

	repaired, err := svc.Repair(context.Background(), "alice", cv.URLId)
	if err != nil {
		t.Fatalf("repair: %v", err)
	}
	if repaired.Degraded {
		t.Fatal("repaired record must not be degraded")
	}
	if repaired.StructuredData.PersonalInfo.Name != "Jane Doe" {
		t.Fatalf("structured data: %+v", repaired.StructuredData.PersonalInfo)
	}

	stored, err := svc.Repo.GetByURLId(context.Background(), cv.URLId)
	if err != nil || stored.Degraded {
		t.Fatalf("repair must persist: %v degraded=%v", err, stored.Degraded)
	}
}

func TestViewByCustomName(t *testing.T) {
	model := &fakeLLM{reply: `{"language":"english","personalInfo":{"name":"Jane Doe"}}`}
	svc := newTestService(t, model)

	doc := makeTestDocx(t, "Jane Doe")
	cv, err := svc.Upload(context.Background(), "alice", "cv.docx", docxMime, bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	got, err := svc.ViewByCustomName(context.Background(), cv.CustomURLName)
	if err != nil || got.URLId != cv.URLId {
		t.Fatalf("view by name: %v", err)
	}

	if _, err := svc.ViewByCustomName(context.Background(), "dashboard"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("reserved name must be not-found, got %v", err)
	}
}

func TestRecordSectionInteraction_FirstAndRepeat(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	if err := repo.Create(ctx, testCV("u1", "alice")); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.RecordSectionInteraction(ctx, "u1", "section-0", "Experience", now); err != nil {
		t.Fatalf("first interaction: %v", err)
	}
	if err := repo.RecordSectionInteraction(ctx, "u1", "section-0", "Experience", now.Add(time.Minute)); err != nil {
		t.Fatalf("repeat interaction: %v", err)
	}

	cv, err := repo.GetByURLId(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(cv.SectionInteractions) != 1 || cv.SectionInteractions[0].Clicks != 2 {
		t.Fatalf("interactions: %+v", cv.SectionInteractions)
	}
}

func TestRecordSectionInteraction_ConcurrentWithReads(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	seed := testCV("u1", "alice")
	seed.SectionInteractions = []SectionInteraction{{SectionID: "section-0", SectionTitle: "Experience", Clicks: 1, LastClicked: time.Now().UTC()}}
	if err := repo.Create(ctx, seed); err != nil {
		t.Fatalf("create: %v", err)
	}

	const clicks = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < clicks; i++ {
			if err := repo.RecordSectionInteraction(ctx, "u1", "section-0", "Experience", time.Now().UTC()); err != nil {
				t.Errorf("interaction: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < clicks; i++ {
			cv, err := repo.GetByURLId(ctx, "u1")
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			_ = cv.SectionInteractions[0].Clicks
		}
	}()
	wg.Wait()

	cv, err := repo.GetByURLId(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cv.SectionInteractions[0].Clicks != clicks+1 {
		t.Fatalf("clicks: %d", cv.SectionInteractions[0].Clicks)
	}
}
