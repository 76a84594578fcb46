package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	echoapi "github.com/trezcool/certstudio/apps/api/echo"
	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

func (cli *commandLine) token(w io.Writer, p core.Person, roles []string) error {
	p.ID = core.CleanString(p.ID)
	if p.ID == "" {
		return errors.New("the user id is required")
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.NewClaims(cli.conf, p, roles...))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func (cli *commandLine) dump(ctx context.Context, w io.Writer, filter certificate.QueryFilter) error {
	designs, err := cli.designs.Query(ctx, filter)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(designs); err != nil {
		return errors.Wrap(err, "encoding designs")
	}
	return enc.Close()
}

// importDesigns renders every design of the YAML list read from r and saves it.
// Titles the owner already uses are skipped.
func (cli *commandLine) importDesigns(ctx context.Context, w io.Writer, r io.Reader, owner string) error {
	var designs []certificate.Design
	if err := yaml.NewDecoder(r).Decode(&designs); err != nil {
		return errors.Wrap(err, "decoding designs")
	}

	vp := certificate.Viewport{Width: cli.conf.Export.CanvasWidth, Height: cli.conf.Export.CanvasHeight}
	var imported, skipped int
	for i, d := range designs {
		if owner != "" {
			d.OwnerID = owner
		}
		if d.OwnerID == "" {
			return errors.Errorf("design %d (%q) has no owner", i, d.Title)
		}
		title := core.CleanTitle(d.Title)
		if title == "" {
			return errors.Errorf("design %d has no title", i)
		}
		if !d.Mode.IsValid() {
			d.Mode = certificate.ModeFreeform
		}
		if err := d.Document.Validate(); err != nil {
			return errors.Wrapf(err, "design %d (%q)", i, d.Title)
		}

		c, err := certificate.NewComposition(d.Mode, vp, d.Document, d.Template, d.Placeholders)
		if err != nil {
			return errors.Wrapf(err, "design %d (%q)", i, d.Title)
		}
		raster, err := cli.exporter.Export(ctx, c)
		if err != nil {
			return errors.Wrapf(err, "rendering design %d (%q)", i, d.Title)
		}

		fileName := core.CleanString(d.FileName)
		if fileName == "" {
			fileName = title + ".png"
		}
		res, err := cli.designs.Save(ctx, certificate.Artifact{
			OwnerID:       d.OwnerID,
			Title:         title,
			Description:   d.Description,
			FileName:      fileName,
			IssuedTo:      d.IssuedTo,
			IssuedToEmail: core.CleanString(d.IssuedToEmail, true /* lower */),
			Mode:          d.Mode,
			Document:      d.Document,
			Template:      d.Template,
			Placeholders:  d.Placeholders,
			Raster:        raster.PNG,
			Markup:        c.Markup,
			Checksum:      raster.Checksum,
		})
		var perr *certificate.PersistenceError
		if errors.As(err, &perr) && perr.Kind == certificate.KindConflict {
			skipped++
			fmt.Fprintf(w, "skipped %q: %s\n", title, perr.Message)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "saving design %d (%q)", i, d.Title)
		}
		imported++
		fmt.Fprintf(w, "imported %q as %s (%s)\n", title, res.ID, res.Checksum)
	}
	fmt.Fprintf(w, "%d imported, %d skipped\n", imported, skipped)
	return nil
}

func (cli *commandLine) export(ctx context.Context, w io.Writer, id string) error {
	rc, _, err := cli.designs.Raster(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return errors.Wrap(err, "writing certificate")
}
