package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core/certificate"
)

type sessionApi struct {
	registry *SessionRegistry
	opts     certificate.SessionOptions
	viewport certificate.Viewport // default render target
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	registry *SessionRegistry,
	opts certificate.SessionOptions,
	viewport certificate.Viewport,
	validate *validator.Validate,
) {
	api := sessionApi{
		registry: registry,
		opts:     opts,
		viewport: viewport,
		validate: validate,
	}

	sg := g.Group("/sessions", jwt, instructorMiddleware())
	sg.POST("", api.create)

	dg := sg.Group("/:sid")
	dg.GET("", api.retrieve)
	dg.DELETE("", api.destroy)

	dg.POST("/images", api.addImage)
	dg.POST("/texts", api.addText)
	dg.PATCH("/elements/:eid", api.updateElement)
	dg.DELETE("/elements/:eid", api.deleteElement)
	dg.POST("/elements/:eid/order", api.reorderElement)

	dg.POST("/select", api.selectElement)
	dg.POST("/deselect", api.deselect)
	dg.POST("/drag", api.drag)
	dg.POST("/resize", api.resize)
	dg.POST("/undo", api.undo)
	dg.POST("/redo", api.redo)

	dg.PUT("/background", api.setBackground)
	dg.PUT("/template", api.setTemplate)
	dg.PUT("/placeholders", api.setPlaceholders)
	dg.PUT("/mode", api.setMode)
	dg.PUT("/viewport", api.setViewport)

	dg.GET("/preview", api.preview)
	dg.GET("/export", api.export)
	dg.POST("/save", api.save)
}

func (api *sessionApi) session(ctx echo.Context) (*certificate.Session, error) {
	owner, err := contextOwner(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := api.registry.Get(ctx.Param("sid"), owner)
	if !ok {
		return nil, errSessionNotFound
	}
	return s, nil
}

// Handlers

func (api *sessionApi) create(ctx echo.Context) error {
	owner, err := contextOwner(ctx)
	if err != nil {
		return err
	}
	var data NewSessionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSessionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	vp := api.viewport
	if data.Width > 0 && data.Height > 0 {
		vp = certificate.Viewport{Width: data.Width, Height: data.Height}
	}

	var s *certificate.Session
	if data.DesignID != "" {
		s, err = certificate.LoadSession(ctx.Request().Context(), data.DesignID, owner, vp, api.opts)
		if err != nil {
			return err
		}
		if data.Mode != "" {
			if err := s.SetMode(data.Mode); err != nil {
				return err
			}
		}
	} else {
		s = certificate.NewSession(owner, data.Mode, vp, api.opts)
	}
	api.registry.Add(s)

	return ctx.JSON(http.StatusCreated, s.State())
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	owner, err := contextOwner(ctx)
	if err != nil {
		return err
	}
	if !api.registry.Remove(ctx.Param("sid"), owner) {
		return errSessionNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) addImage(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ImageRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ImageRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newElementResponse(s.AddImage(data.Src)))
}

func (api *sessionApi) addText(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data TextRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TextRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, newElementResponse(s.AddText(data.patch())))
}

func (api *sessionApi) updateElement(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data certificate.Patch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Patch")
	}
	el, err := s.UpdateElement(ctx.Param("eid"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newElementResponse(el))
}

func (api *sessionApi) deleteElement(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	if !s.DeleteElement(ctx.Param("eid")) {
		return errElementNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *sessionApi) reorderElement(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data OrderRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OrderRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	if data.Position == "front" {
		err = s.BringToFront(ctx.Param("eid"))
	} else {
		err = s.SendToBack(ctx.Param("eid"))
	}
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) selectElement(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data SelectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	if err := s.Select(data.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) deselect(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	s.Deselect()
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) drag(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data DragRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DragRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	el, err := s.Drag(data.ID, data.X, data.Y)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newElementResponse(el))
}

func (api *sessionApi) resize(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ResizeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResizeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	el, err := s.Resize(data.ID, data.ScaleX, data.ScaleY)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newElementResponse(el))
}

// undo and redo are no-ops on an empty stack; the state tells the client.
func (api *sessionApi) undo(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	s.Undo()
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) redo(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	s.Redo()
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) setBackground(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data BackgroundRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BackgroundRequest")
	}
	s.SetBackground(data.Src)
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) setTemplate(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data TemplateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TemplateRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	s.SetTemplate(data.Template)
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) setPlaceholders(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data PlaceholdersRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PlaceholdersRequest")
	}
	if err := certificate.ValidatePlaceholders(api.validate, data.Placeholders); err != nil {
		return err
	}
	s.SetPlaceholders(data.Placeholders)
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) setMode(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ModeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ModeRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	if err := s.SetMode(data.Mode); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) setViewport(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data ViewportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ViewportRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	s.AttachViewport(certificate.Viewport{Width: data.Width, Height: data.Height})
	return ctx.JSON(http.StatusOK, s.State())
}

func (api *sessionApi) preview(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	markup, err := s.Preview()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, PreviewResponse{Markup: markup})
}

func (api *sessionApi) export(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	raster, err := s.Export(ctx.Request().Context())
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(checksumHeader, raster.Checksum)
	return ctx.Blob(http.StatusOK, rasterContentType, raster.PNG)
}

func (api *sessionApi) save(ctx echo.Context) error {
	s, err := api.session(ctx)
	if err != nil {
		return err
	}
	var data certificate.SaveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	res, err := s.Save(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, res)
}
