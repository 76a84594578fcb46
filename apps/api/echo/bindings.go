package echoapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

type (
	NewSessionRequest struct {
		DesignID string                 `json:"design_id"`
		Mode     certificate.DesignMode `json:"mode" validate:"omitempty,designmode"`
		Width    int                    `json:"width" validate:"gte=0,lte=10000"`
		Height   int                    `json:"height" validate:"gte=0,lte=10000"`
	}

	ImageRequest struct {
		Src string `json:"src" validate:"required"`
	}

	// TextRequest fields left out take the defaults.
	TextRequest struct {
		X          *float64 `json:"x"`
		Y          *float64 `json:"y"`
		Text       *string  `json:"text"`
		FontSize   *float64 `json:"font_size" validate:"omitempty,gte=0"`
		FontFamily *string  `json:"font_family" validate:"omitempty,max=100"`
		Fill       *string  `json:"fill" validate:"omitempty,hexcolor"`
		Width      *float64 `json:"width" validate:"omitempty,gte=0"`
		Height     *float64 `json:"height" validate:"omitempty,gte=0"`
	}

	SelectRequest struct {
		ID string `json:"id" validate:"required"`
	}

	DragRequest struct {
		ID string  `json:"id" validate:"required"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	}

	ResizeRequest struct {
		ID     string  `json:"id" validate:"required"`
		ScaleX float64 `json:"scale_x" validate:"gt=0"`
		ScaleY float64 `json:"scale_y" validate:"gt=0"`
	}

	OrderRequest struct {
		Position string `json:"position" validate:"required,oneof=front back"`
	}

	BackgroundRequest struct {
		Src string `json:"src"`
	}

	TemplateRequest struct {
		Template string `json:"template" validate:"max=200000"`
	}

	PlaceholdersRequest struct {
		Placeholders certificate.Placeholders `json:"placeholders"`
	}

	ModeRequest struct {
		Mode certificate.DesignMode `json:"mode" validate:"required,designmode"`
	}

	ViewportRequest struct {
		Width  int `json:"width" validate:"gt=0,lte=10000"`
		Height int `json:"height" validate:"gt=0,lte=10000"`
	}

	// ElementResponse tags an element with its kind.
	ElementResponse struct {
		Kind    certificate.Kind    `json:"kind"`
		Element certificate.Element `json:"element"`
	}

	PreviewResponse struct {
		Markup string `json:"markup"`
	}

	VerifyResponse struct {
		ID    string `json:"id"`
		Valid bool   `json:"valid"`
	}
)

func (req *NewSessionRequest) Validate(validate *validator.Validate) error {
	req.DesignID = core.CleanString(req.DesignID)
	req.Mode = certificate.DesignMode(core.CleanString(string(req.Mode), true))
	return validate.Struct(req)
}

func (req *TextRequest) Validate(validate *validator.Validate) error {
	for _, s := range []*string{req.FontFamily, req.Fill} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if req.Fill != nil && *req.Fill == "" {
		req.Fill = nil
	}
	return validate.Struct(req)
}

func (req TextRequest) patch() certificate.Patch {
	return certificate.Patch{
		X:          req.X,
		Y:          req.Y,
		Text:       req.Text,
		FontSize:   req.FontSize,
		FontFamily: req.FontFamily,
		Fill:       req.Fill,
		Width:      req.Width,
		Height:     req.Height,
	}
}

func newElementResponse(el certificate.Element) ElementResponse {
	return ElementResponse{Kind: el.Kind(), Element: el}
}
