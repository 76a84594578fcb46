package certificate

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
)

const (
	rasterContentType = "image/png"
	issuedTemplate    = "certificate_issued"
)

// Service implements the Gateway over a Repository and a BlobStore.
type Service struct {
	repo    Repository
	blobs   BlobStore
	mailer  core.EmailService // optional
	log     core.Logger
	baseURL string // public URL of the frontend, for links in emails
}

var _ Gateway = (*Service)(nil)

func NewService(repo Repository, blobs BlobStore, mailer core.EmailService, log core.Logger, baseURL string) *Service {
	return &Service{
		repo:    repo,
		blobs:   blobs,
		mailer:  mailer,
		log:     log,
		baseURL: baseURL,
	}
}

func blobKey(id string) string { return id + ".png" }

// Save stores the artifact then records the design.
// A title already used by the owner is a conflict; the uploaded artifact is then removed.
func (svc *Service) Save(ctx context.Context, a Artifact) (SaveResult, error) {
	if len(a.Raster) == 0 && a.Markup == "" {
		return SaveResult{}, core.NewValidationError(
			errors.New("nothing to save"),
			core.FieldError{Field: "raster", Error: "a raster or a markup is required"},
		)
	}

	now := time.Now().UTC()
	d := Design{
		ID:            uuid.NewString(),
		OwnerID:       a.OwnerID,
		Title:         a.Title,
		Description:   a.Description,
		FileName:      a.FileName,
		IssuedTo:      a.IssuedTo,
		IssuedToEmail: a.IssuedToEmail,
		Mode:          a.Mode,
		Document:      a.Document.Clone(),
		Template:      a.Template,
		Placeholders:  a.Placeholders,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if len(a.Raster) > 0 {
		url, err := svc.blobs.Put(ctx, blobKey(d.ID), bytes.NewReader(a.Raster), rasterContentType)
		if err != nil {
			return SaveResult{}, NewServerError("could not store the certificate", errors.Wrap(err, "uploading raster"))
		}
		d.RasterURL = url
		d.Checksum = a.Checksum
		if d.Checksum == "" {
			d.Checksum = Checksum(a.Raster)
		}
	}

	created, err := svc.repo.CreateDesign(ctx, d)
	if err != nil {
		if d.RasterURL != "" {
			if derr := svc.blobs.Delete(ctx, blobKey(d.ID)); derr != nil {
				svc.log.Warn("removing orphan raster", errors.Wrap(derr, d.ID))
			}
		}
		if errors.Cause(err) == ErrTitleExists {
			return SaveResult{}, NewConflictError(fmt.Sprintf("a certificate titled %q already exists", d.Title), err)
		}
		return SaveResult{}, NewServerError("could not save the certificate", errors.Wrap(err, "creating design"))
	}

	svc.notifyIssued(created, a.Raster)

	return SaveResult{
		ID:       created.ID,
		URL:      created.RasterURL,
		Markup:   a.Markup,
		Checksum: created.Checksum,
		Message:  "Certificate saved successfully",
	}, nil
}

// notifyIssued emails the recipient of `d`, with the certificate attached when there is one.
func (svc *Service) notifyIssued(d Design, raster []byte) {
	if svc.mailer == nil || d.IssuedToEmail == "" {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: d.IssuedTo, Address: d.IssuedToEmail}},
		Subject:      "Your certificate: " + d.Title,
		TemplateName: issuedTemplate,
		TemplateData: map[string]interface{}{
			"IssuedTo":    d.IssuedTo,
			"Title":       d.Title,
			"Description": d.Description,
			"URL":         svc.baseURL + "/certificates/" + d.ID,
			"Checksum":    d.Checksum,
		},
	}
	if len(raster) > 0 {
		if err := msg.Attach(bytes.NewReader(raster), d.FileName, rasterContentType); err != nil {
			svc.log.Warn("attaching certificate", errors.Wrap(err, d.ID))
		}
	}
	svc.mailer.SendMessages(msg)
}

func (svc *Service) Fetch(ctx context.Context, id string) (Design, error) {
	d, err := svc.repo.GetDesignByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Design{}, NewNotFoundError("certificate not found", err)
		}
		return Design{}, NewServerError("could not load the certificate", errors.Wrap(err, "getting design"))
	}
	return d, nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Design, error) {
	filter.Search = core.CleanString(filter.Search, true /* lower */)
	designs, err := svc.repo.FilterDesigns(ctx, filter)
	if err != nil {
		return nil, NewServerError("could not list certificates", errors.Wrap(err, "filtering designs"))
	}
	return designs, nil
}

// Delete removes the design and its artifact.
func (svc *Service) Delete(ctx context.Context, id string) error {
	d, err := svc.Fetch(ctx, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteDesign(ctx, id); err != nil {
		return NewServerError("could not delete the certificate", errors.Wrap(err, "deleting design"))
	}
	if d.RasterURL != "" {
		if err := svc.blobs.Delete(ctx, blobKey(id)); err != nil {
			svc.log.Warn("deleting raster", errors.Wrap(err, id))
		}
	}
	return nil
}

// Verify reports whether `checksum` matches the stored artifact of design `id`.
// The stored raster is hashed again so that a tampered blob never verifies.
func (svc *Service) Verify(ctx context.Context, id, checksum string) (bool, error) {
	d, err := svc.Fetch(ctx, id)
	if err != nil {
		return false, err
	}
	if d.Checksum == "" || d.RasterURL == "" {
		return false, nil
	}

	rc, err := svc.blobs.Get(ctx, blobKey(id))
	if err != nil {
		return false, NewServerError("could not read the certificate", errors.Wrap(err, "reading raster"))
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return false, NewServerError("could not read the certificate", errors.Wrap(err, "reading raster"))
	}

	actual := Checksum(data)
	return actual == d.Checksum && subtle.ConstantTimeCompare([]byte(actual), []byte(core.CleanString(checksum, true))) == 1, nil
}

// Raster returns the stored artifact of design `id`.
func (svc *Service) Raster(ctx context.Context, id string) (io.ReadCloser, Design, error) {
	d, err := svc.Fetch(ctx, id)
	if err != nil {
		return nil, Design{}, err
	}
	if d.RasterURL == "" {
		return nil, Design{}, NewNotFoundError("this certificate has no image", ErrNotFound)
	}
	rc, err := svc.blobs.Get(ctx, blobKey(id))
	if err != nil {
		return nil, Design{}, NewServerError("could not read the certificate", errors.Wrap(err, "reading raster"))
	}
	return rc, d, nil
}
