package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core/deliverable"
	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/core/worksheet"
)

// groupApi serves the student side of teams: registration, check-ins, peer feedback and deliverables.
type groupApi struct {
	usrSvc   user.Service
	svc      group.Service
	wsSvc    worksheet.Service
	fbSvc    feedback.Service
	delivSvc deliverable.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := groupApi{
		usrSvc:   deps.UserSvc,
		svc:      deps.GroupSvc,
		wsSvc:    deps.WorksheetSvc,
		fbSvc:    deps.FeedbackSvc,
		delivSvc: deps.DeliverableSvc,
		validate: deps.Validate,
	}

	gg := g.Group("/group", jwt)
	gg.POST("/register", api.register)
	gg.GET("/my-team", api.myTeam)
	gg.GET("/rules", api.rules)

	gg.POST("/worksheets", api.submitWorksheet)
	gg.GET("/worksheets", api.listWorksheets)

	gg.POST("/feedback", api.submitFeedback)
	gg.GET("/feedback/status", api.feedbackStatus)

	gg.POST("/docs", api.submitDeliverable)
	gg.POST("/deliverables", api.submitDeliverable)
}

func (api *groupApi) ctxUserID(ctx echo.Context) (string, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	return usr.ID, nil
}

// Handlers

func (api *groupApi) register(ctx echo.Context) error {
	var data group.RegisterTeam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterTeam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.RegisterTeam(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "registering team")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

func (api *groupApi) myTeam(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	detail, err := api.svc.MyTeam(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting team")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *groupApi) rules(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	rules, err := api.svc.RulesForUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing rules")
	}
	if rules == nil {
		rules = []group.Rule{}
	}
	return ctx.JSON(http.StatusOK, rules)
}

func (api *groupApi) submitWorksheet(ctx echo.Context) error {
	var data worksheet.NewWorksheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWorksheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	ws, err := api.wsSvc.Submit(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "submitting worksheet")
	}
	return ctx.JSON(http.StatusCreated, ws)
}

func (api *groupApi) listWorksheets(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	sheets, err := api.wsSvc.ListMine(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing worksheets")
	}
	if sheets == nil {
		sheets = []worksheet.Worksheet{}
	}
	return ctx.JSON(http.StatusOK, sheets)
}

func (api *groupApi) submitFeedback(ctx echo.Context) error {
	var data feedback.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	fb, err := api.fbSvc.Submit(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "submitting feedback")
	}
	return ctx.JSON(http.StatusCreated, fb)
}

func (api *groupApi) feedbackStatus(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	statuses, err := api.fbSvc.Status(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "getting feedback status")
	}
	if statuses == nil {
		statuses = []feedback.TeammateStatus{}
	}
	return ctx.JSON(http.StatusOK, statuses)
}

func (api *groupApi) submitDeliverable(ctx echo.Context) error {
	var data deliverable.NewDeliverable
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeliverable")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	d, err := api.delivSvc.Submit(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "submitting deliverable")
	}
	return ctx.JSON(http.StatusCreated, d)
}
