package certificate

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/certstudio/core"
)

// Design is the persisted form of a certificate design.
type Design struct {
	ID            string       `json:"id" yaml:"id"`
	OwnerID       string       `json:"owner_id" yaml:"owner_id"`
	Title         string       `json:"title" yaml:"title"`
	Description   string       `json:"description" yaml:"description"`
	FileName      string       `json:"file_name" yaml:"file_name"`
	IssuedTo      string       `json:"issued_to" yaml:"issued_to"`
	IssuedToEmail string       `json:"issued_to_email,omitempty" yaml:"issued_to_email,omitempty"`
	Mode          DesignMode   `json:"mode" yaml:"mode"`
	Document      Document     `json:"document" yaml:"document"`
	Template      string       `json:"template,omitempty" yaml:"template,omitempty"`
	Placeholders  Placeholders `json:"placeholders" yaml:"placeholders"`
	RasterURL     string       `json:"raster_url,omitempty" yaml:"raster_url,omitempty"`
	Checksum      string       `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	CreatedAt     time.Time    `json:"created_at" yaml:"created_at"` // UTC
	UpdatedAt     time.Time    `json:"updated_at" yaml:"updated_at"` // UTC
}

// Artifact is what a session hands to the Gateway on save.
// Raster holds the rendered PNG; templated designs also carry their sanitized Markup.
type Artifact struct {
	OwnerID       string
	Title         string
	Description   string
	FileName      string
	IssuedTo      string
	IssuedToEmail string
	Mode          DesignMode
	Document      Document
	Template      string
	Placeholders  Placeholders
	Raster        []byte
	Markup        string
	Checksum      string
}

// SaveRequest holds the metadata provided when saving a session.
type SaveRequest struct {
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"max=2000"`
	FileName      string `json:"file_name" validate:"max=255"`
	IssuedTo      string `json:"issued_to" validate:"max=200"`
	IssuedToEmail string `json:"issued_to_email" validate:"omitempty,email"`
}

func (sr *SaveRequest) Validate(validate *validator.Validate) error {
	sr.Title = core.CleanTitle(sr.Title)
	sr.Description = core.CleanString(sr.Description)
	sr.FileName = core.CleanString(sr.FileName)
	sr.IssuedTo = core.CleanString(sr.IssuedTo)
	sr.IssuedToEmail = core.CleanString(sr.IssuedToEmail, true /* lower */)
	if sr.FileName == "" {
		sr.FileName = sr.Title + ".png"
	}
	return validate.Struct(sr)
}

// SaveResult is returned by a successful save.
type SaveResult struct {
	ID       string `json:"id"`
	URL      string `json:"url,omitempty"`
	Markup   string `json:"markup,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Message  string `json:"message"`
}

type QueryFilter struct {
	OwnerID  string            `query:"-"`
	Search   string            `query:"search"` // case-insensitive match on Title or IssuedTo
	Mode     DesignMode        `query:"mode"`
	Ordering []core.DBOrdering `query:"-"`
}

type (
	// Gateway persists designs and their artifacts. Callers issue one call at a time and never retry.
	Gateway interface {
		Save(ctx context.Context, a Artifact) (SaveResult, error)
		Fetch(ctx context.Context, id string) (Design, error)
	}

	Repository interface {
		// CreateDesign fails with ErrTitleExists when the owner already has a design with this title.
		CreateDesign(ctx context.Context, d Design) (Design, error)
		GetDesignByID(ctx context.Context, id string) (Design, error)
		// FilterDesigns applies AND operation on available QueryFilter fields.
		FilterDesigns(ctx context.Context, filter QueryFilter) ([]Design, error)
		DeleteDesign(ctx context.Context, id string) error
	}

	// BlobStore keeps the rendered artifacts.
	BlobStore interface {
		Put(ctx context.Context, key string, r io.Reader, contentType string) (url string, err error)
		Get(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}
)
