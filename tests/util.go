package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	echoapi "github.com/trezcool/certstudio/apps/api/echo"
	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
	logsvc "github.com/trezcool/certstudio/services/logger"
)

// NewConfig returns the configuration used by tests. Nothing is read from the environment.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	conf := &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Certstudio",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://certstudio.test",
		WorkDir:         t.TempDir(),
	}
	conf.Server.Address = ":0"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Database.Engine = "sqlite"
	conf.Database.Name = ":memory:"
	conf.Storage.ArtifactDir = t.TempDir()
	conf.Storage.PublicURLPrefix = "http://certstudio.test/artifacts"
	conf.Export.Ratio = certificate.ExportRatio
	conf.Export.CanvasWidth = 200
	conf.Export.CanvasHeight = 100
	conf.Export.Rasterizer = "builtin"
	conf.Export.RenderTimeout = 10 * time.Second
	conf.Cache.TTL = time.Minute
	return conf
}

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	return logsvc.NewConsoleLogger(log.New(io.Discard, "", 0), false)
}

// Token returns a signed token for user `id`.
func Token(t *testing.T, conf *core.Config, id string, roles ...string) string {
	t.Helper()
	claims := echoapi.NewClaims(conf, core.Person{ID: id, Username: id, Email: id + "@certstudio.test"}, roles...)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("Token(): %v", err)
	}
	return token
}

// CreateDesign stores a freeform design owned by `ownerID`.
func CreateDesign(t *testing.T, repo certificate.Repository, ownerID, title, issuedTo string, createdAt ...time.Time) certificate.Design {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	d := certificate.Design{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Title:    title,
		FileName: title + ".png",
		IssuedTo: issuedTo,
		Mode:     certificate.ModeFreeform,
		Document: certificate.Document{
			Texts: []certificate.TextElement{{
				ID: "t1", X: 10, Y: 10, Text: "Awarded to " + issuedTo,
				FontSize: certificate.DefaultFontSize, FontFamily: certificate.DefaultFontFamily, Fill: certificate.DefaultFill,
			}},
		},
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	d, err := repo.CreateDesign(context.Background(), d)
	if err != nil {
		t.Fatalf("CreateDesign(): %v", err)
	}
	return d
}
