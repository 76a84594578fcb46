package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

const (
	rasterContentType = "image/png"
	checksumHeader    = "X-Certificate-Checksum"
)

type designApi struct {
	svc *certificate.Service
}

func registerDesignAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *certificate.Service) {
	api := designApi{svc: svc}

	dg := g.Group("/designs")

	// un-authed endpoints
	dg.GET("/:id/verify", api.verify)

	// authed endpoints
	ag := dg.Group("", jwt, instructorMiddleware())
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.GET("/:id/raster", api.raster)
	ag.DELETE("/:id", api.destroy)
}

// owned fetches design `id`; designs of other owners are reported as not found.
func (api *designApi) owned(ctx echo.Context) (certificate.Design, error) {
	owner, err := contextOwner(ctx)
	if err != nil {
		return certificate.Design{}, err
	}
	d, err := api.svc.Fetch(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return certificate.Design{}, err
	}
	if d.OwnerID != owner {
		return certificate.Design{}, errHttpNotFound
	}
	return d, nil
}

// Handlers

func (api *designApi) query(ctx echo.Context) error {
	owner, err := contextOwner(ctx)
	if err != nil {
		return err
	}
	var filter certificate.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if filter.Mode != "" && !filter.Mode.IsValid() {
		return core.NewValidationError(nil, core.FieldError{Field: "mode", Error: "must be one of freeform, templated"})
	}
	var ord Ordering
	ord.Bind(ctx)
	filter.OwnerID = owner
	filter.Ordering = ord.Orderings

	designs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, designs)
}

func (api *designApi) retrieve(ctx echo.Context) error {
	d, err := api.owned(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *designApi) raster(ctx echo.Context) error {
	d, err := api.owned(ctx)
	if err != nil {
		return err
	}
	rc, _, err := api.svc.Raster(ctx.Request().Context(), d.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := ctx.Response().Header()
	h.Set(checksumHeader, d.Checksum)
	h.Set(echo.HeaderContentDisposition, "attachment; filename="+strconv.Quote(d.FileName))
	return ctx.Stream(http.StatusOK, rasterContentType, rc)
}

func (api *designApi) destroy(ctx echo.Context) error {
	d, err := api.owned(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), d.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *designApi) verify(ctx echo.Context) error {
	checksum := ctx.QueryParam("checksum")
	if core.CleanString(checksum) == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "checksum", Error: "this field is required"})
	}
	id := ctx.Param("id")
	valid, err := api.svc.Verify(ctx.Request().Context(), id, checksum)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, VerifyResponse{ID: id, Valid: valid})
}
