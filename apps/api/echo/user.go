package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

type userApi struct {
	conf       *core.Config
	svc        user.Service
	progSvc    program.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{
		conf:       deps.Conf,
		svc:        deps.UserSvc,
		progSvc:    deps.ProgramSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	// authed endpoints
	ug := g.Group("/user", jwt)
	ug.GET("/profile", api.profile)
	ug.PUT("/profile", api.updateProfile)
	ug.GET("/docs", api.listDocs)
	ug.GET("/timeline", api.listTimeline)
	ug.GET("/use-cases", api.listUseCases)

	g.GET("/periods", api.listPeriods, jwt)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	// the batch is derived from the registration date
	data.BatchID = ""
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	token, usr, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc, api.conf)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}

	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) listDocs(ctx echo.Context) error {
	docs, err := api.progSvc.ListDocs(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing docs")
	}
	if docs == nil {
		docs = []program.Doc{}
	}
	return ctx.JSON(http.StatusOK, docs)
}

func (api *userApi) listTimeline(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entries, err := api.progSvc.ListTimeline(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing timeline")
	}
	if entries == nil {
		entries = []program.TimelineEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *userApi) listUseCases(ctx echo.Context) error {
	useCases, err := api.progSvc.ListUseCases(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing use cases")
	}
	if useCases == nil {
		useCases = []program.UseCase{}
	}
	return ctx.JSON(http.StatusOK, useCases)
}

// listPeriods lists the periods of the user's batch; admins may pick one with ?batch_id.
func (api *userApi) listPeriods(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	batchID := usr.BatchID
	if b := queryParam(ctx, "batch_id"); b != "" && usr.IsAdmin() {
		batchID = b
	}

	periods, err := api.progSvc.ListPeriods(ctx.Request().Context(), batchID)
	if err != nil {
		return errors.Wrap(err, "listing periods")
	}
	if periods == nil {
		periods = []program.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}
