package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/fomu/core"
	"github.com/trezcool/fomu/core/form"
)

type formApi struct {
	svc        *form.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerFormAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *form.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := formApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	// a token is optional everywhere; role-gated forms check the claims
	fg := g.Group("/forms", jwt)
	fg.GET("", api.query)
	fg.GET("/:form", api.retrieve)
	fg.POST("/:form/sessions", api.open)

	// session endpoints; a session id is a bearer capability
	sg := g.Group("/sessions/:id", jwt)
	sg.GET("", api.get)
	sg.DELETE("", api.discard)
	sg.PUT("/fields/:field", api.setField)
	sg.GET("/fields/:field/options", api.fieldOptions)
	sg.POST("/next", api.next)
	sg.POST("/back", api.back)
	sg.POST("/verifications/:field", api.requestVerification)
	sg.PUT("/verifications/:field", api.confirmVerification)
	sg.POST("/submit", api.submit)
}

// Handlers

func (api *formApi) query(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Forms(contextRoles(ctx)...))
}

func (api *formApi) retrieve(ctx echo.Context) error {
	info, err := api.svc.FormInfo(ctx.Param("form"), contextRoles(ctx)...)
	if err != nil {
		return errors.Wrap(err, "describing form")
	}
	return ctx.JSON(http.StatusOK, info)
}

func (api *formApi) open(ctx echo.Context) error {
	snap, err := api.svc.Open(ctx.Request().Context(), ctx.Param("form"), contextRoles(ctx)...)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	return ctx.JSON(http.StatusCreated, snap)
}

func (api *formApi) get(ctx echo.Context) error {
	snap, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) discard(ctx echo.Context) error {
	if err := api.svc.Discard(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "discarding session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *formApi) setField(ctx echo.Context) error {
	var data FieldValueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FieldValueRequest")
	}

	snap, err := api.svc.SetField(ctx.Request().Context(), ctx.Param("id"), ctx.Param("field"), data.Value)
	if err != nil {
		return errors.Wrap(err, "setting field")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) fieldOptions(ctx echo.Context) error {
	opts, err := api.svc.FieldOptions(ctx.Request().Context(), ctx.Param("id"), ctx.Param("field"))
	if err != nil {
		return errors.Wrap(err, "fetching field options")
	}
	if opts == nil {
		opts = []form.Option{}
	}
	return ctx.JSON(http.StatusOK, opts)
}

func (api *formApi) next(ctx echo.Context) error {
	snap, err := api.svc.Next(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "advancing session")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) back(ctx echo.Context) error {
	snap, err := api.svc.Back(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "stepping session back")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) requestVerification(ctx echo.Context) error {
	snap, err := api.svc.RequestVerification(ctx.Request().Context(), ctx.Param("id"), ctx.Param("field"))
	if err != nil {
		return errors.Wrap(err, "requesting verification")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) confirmVerification(ctx echo.Context) error {
	var data VerificationCodeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerificationCodeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	snap, err := api.svc.ConfirmVerification(ctx.Request().Context(), ctx.Param("id"), ctx.Param("field"), data.Code)
	if err != nil {
		return errors.Wrap(err, "confirming verification")
	}
	return ctx.JSON(http.StatusOK, snap)
}

func (api *formApi) submit(ctx echo.Context) error {
	snap, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "submitting session")
	}
	return ctx.JSON(http.StatusOK, snap)
}

type (
	FieldValueRequest struct {
		Value string `json:"value"` // blank clears the field
	}

	VerificationCodeRequest struct {
		Code string `json:"code" validate:"required"`
	}
)

func (vr *VerificationCodeRequest) Validate(validate *validator.Validate) error {
	vr.Code = core.CleanString(vr.Code)
	return validate.Struct(vr)
}
