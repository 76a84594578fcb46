package certificate

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

type recordingMailer struct {
	messages []*core.EmailMessage
}

func (m *recordingMailer) SendMessages(messages ...*core.EmailMessage) {
	m.messages = append(m.messages, messages...)
}

func newTestService() (*Service, *stubRepo, *stubBlobs, *recordingMailer) {
	repo, blobs, mailer := &stubRepo{}, &stubBlobs{}, &recordingMailer{}
	return NewService(repo, blobs, mailer, nopLogger{}, "https://certs.test"), repo, blobs, mailer
}

func testArtifact(title string) Artifact {
	raster := []byte("png bytes of " + title)
	return Artifact{
		OwnerID:  "owner-1",
		Title:    title,
		FileName: title + ".png",
		Mode:     ModeFreeform,
		Document: sampleDocument(),
		Raster:   raster,
		Checksum: Checksum(raster),
	}
}

func TestService_Save(t *testing.T) {
	svc, repo, blobs, mailer := newTestService()
	ctx := context.Background()

	a := testArtifact("Go 101")
	a.IssuedTo = "Ann"
	a.IssuedToEmail = "ann@test.cd"
	res, err := svc.Save(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if res.ID == "" || res.URL != "/media/"+res.ID+".png" || res.Checksum != a.Checksum || res.Message == "" {
		t.Errorf("SaveResult = %+v", res)
	}
	d, err := repo.GetDesignByID(ctx, res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if d.OwnerID != "owner-1" || d.RasterURL != res.URL || d.CreatedAt.IsZero() {
		t.Errorf("stored design = %+v", d)
	}
	if blobs.Len() != 1 {
		t.Errorf("blobs = %d, want 1", blobs.Len())
	}
	if len(mailer.messages) != 1 || mailer.messages[0].To[0].Address != "ann@test.cd" {
		t.Fatalf("notifications = %+v", mailer.messages)
	}
	if at := mailer.messages[0].Attachments; len(at) != 1 || at[0].Filename != "Go 101.png" || at[0].ContentType != "image/png" {
		t.Errorf("notification attachments = %+v", at)
	}

	// same title, same owner
	_, err = svc.Save(ctx, testArtifact("Go 101"))
	if !IsConflict(err) {
		t.Fatalf("Save(duplicate) error = %v, want a conflict", err)
	}
	if blobs.Len() != 1 {
		t.Errorf("conflicting upload kept: blobs = %d", blobs.Len())
	}

	// same title, other owner
	other := testArtifact("Go 101")
	other.OwnerID = "owner-2"
	if _, err := svc.Save(ctx, other); err != nil {
		t.Errorf("Save(other owner) error = %v", err)
	}
}

func TestService_saveErrors(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Save(ctx, Artifact{Title: "x"}); !IsValidation(err) {
		t.Errorf("Save(no content) error = %v, want a validation error", err)
	}

	repo.err = errors.New("connection refused")
	_, err := svc.Save(ctx, testArtifact("x"))
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Kind != KindServer {
		t.Errorf("Save() error = %v, want a server error", err)
	}
}

func TestService_FetchVerifyDelete(t *testing.T) {
	svc, _, blobs, _ := newTestService()
	ctx := context.Background()

	a := testArtifact("Verified")
	res, err := svc.Save(ctx, a)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Fetch(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("Fetch(unknown) error = %v", err)
	}

	tests := []struct {
		name     string
		checksum string
		want     bool
	}{
		{name: "match", checksum: a.Checksum, want: true},
		{name: "match (upper case)", checksum: "  " + strings.ToUpper(a.Checksum), want: true},
		{name: "mismatch", checksum: Checksum([]byte("forged")), want: false},
		{name: "empty", checksum: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Verify(ctx, res.ID, tt.checksum)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}

	// a tampered artifact never verifies
	_, _ = blobs.Put(ctx, blobKey(res.ID), strings.NewReader("tampered"), rasterContentType)
	if ok, _ := svc.Verify(ctx, res.ID, a.Checksum); ok {
		t.Error("Verify() accepted a tampered artifact")
	}

	if err := svc.Delete(ctx, res.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Fetch(ctx, res.ID); !IsNotFound(err) {
		t.Errorf("Fetch() after delete error = %v", err)
	}
	if blobs.Len() != 0 {
		t.Errorf("blobs after delete = %d", blobs.Len())
	}
	if err := svc.Delete(ctx, res.ID); !IsNotFound(err) {
		t.Errorf("Delete(unknown) error = %v", err)
	}
}
