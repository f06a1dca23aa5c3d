package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core/deliverable"
	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/core/worksheet"
	exportsvc "github.com/trezcool/capstone/services/export"
)

type adminApi struct {
	usrSvc   user.Service
	progSvc  program.Service
	grpSvc   group.Service
	wsSvc    worksheet.Service
	delivSvc deliverable.Service
	fbSvc    feedback.Service
	validate *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{
		usrSvc:   deps.UserSvc,
		progSvc:  deps.ProgramSvc,
		grpSvc:   deps.GroupSvc,
		wsSvc:    deps.WorksheetSvc,
		delivSvc: deps.DeliverableSvc,
		fbSvc:    deps.FeedbackSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/admin", jwt, adminMiddleware)

	// groups
	ag.POST("/groups", api.createGroup)
	ag.GET("/groups", api.listGroups)
	ag.POST("/groups/auto-assign", api.autoAssign)
	ag.GET("/groups/export", api.exportGroups)
	ag.GET("/groups/:id", api.retrieveGroup)
	ag.PUT("/groups/:id", api.updateGroup)
	ag.PUT("/groups/:id/validate", api.validateGroup)
	ag.POST("/groups/:id/validate", api.validateGroup)
	ag.POST("/groups/:id/members", api.addMember)
	ag.DELETE("/groups/:id/members/:userId", api.removeMember)
	ag.PUT("/project/:id", api.startProject)

	// rules
	ag.POST("/rules", api.setRules)
	ag.GET("/rules", api.listRules)
	ag.POST("/rules/check", api.checkComposition)

	// users
	ag.GET("/users/unassigned", api.listUnassigned)
	ag.PUT("/users/:id/learning-path", api.setLearningPath)

	// program
	ag.POST("/use-cases", api.createUseCase)
	ag.POST("/docs", api.createDoc)
	ag.POST("/timeline", api.createTimelineEntry)
	ag.POST("/periods", api.createPeriod)
	ag.GET("/periods", api.listPeriods)
	ag.POST("/periods/:id/remind", api.sendReminder)

	// monitoring
	ag.GET("/deliverables", api.listDeliverables)
	ag.GET("/worksheets", api.listWorksheets)
	ag.PUT("/worksheets/:id/validate", api.validateWorksheet)
	ag.GET("/feedback/export", api.exportFeedback)
}

// Groups

func (api *adminApi) createGroup(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	detail, err := api.grpSvc.Create(ctx.Request().Context(), admin.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

func (api *adminApi) listGroups(ctx echo.Context) error {
	filter := group.QueryFilter{
		BatchID: queryParam(ctx, "batch_id"),
		Status:  queryParam(ctx, "status"),
	}
	groups, err := api.grpSvc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	if groups == nil {
		groups = []group.Summary{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *adminApi) retrieveGroup(ctx echo.Context) error {
	detail, err := api.grpSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *adminApi) updateGroup(ctx echo.Context) error {
	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.grpSvc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *adminApi) startProject(ctx echo.Context) error {
	grp, err := api.grpSvc.StartProject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting project")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *adminApi) validateGroup(ctx echo.Context) error {
	var data group.Validation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Validation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.grpSvc.ValidateRegistration(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "validating registration")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *adminApi) addMember(ctx echo.Context) error {
	var data AddMemberRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	member, err := api.grpSvc.AddMember(ctx.Request().Context(), ctx.Param("id"), data.UserID)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusCreated, member)
}

func (api *adminApi) removeMember(ctx echo.Context) error {
	if err := api.grpSvc.RemoveMember(ctx.Request().Context(), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) autoAssign(ctx echo.Context) error {
	var data AutoAssignRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AutoAssignRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	admin, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	report, err := api.grpSvc.AutoAssign(ctx.Request().Context(), data.BatchID, admin.ID, data.TeamSize)
	if err != nil {
		return errors.Wrap(err, "auto-assigning")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *adminApi) exportGroups(ctx echo.Context) error {
	format, err := exportFormat(ctx)
	if err != nil {
		return err
	}
	rows, err := api.grpSvc.Export(ctx.Request().Context(), queryParam(ctx, "batch_id"))
	if err != nil {
		return errors.Wrap(err, "exporting groups")
	}

	if format == formatXLSX {
		xrows := make([]exportsvc.Row, 0, len(rows))
		for _, r := range rows {
			xrows = append(xrows, r)
		}
		return sendXLSX(ctx, "groups.xlsx", "Groups", group.ExportHeader, xrows)
	}
	if rows == nil {
		rows = []group.ExportRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

// Rules

func (api *adminApi) setRules(ctx echo.Context) error {
	var data group.SetRules
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRules")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rules, err := api.grpSvc.SetRules(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting rules")
	}
	return ctx.JSON(http.StatusCreated, rules)
}

func (api *adminApi) listRules(ctx echo.Context) error {
	filter := group.RuleFilter{
		BatchID:   queryParam(ctx, "batch_id"),
		UseCaseID: queryParam(ctx, "use_case_id"),
	}
	rules, err := api.grpSvc.ListActiveRules(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing rules")
	}
	if rules == nil {
		rules = []group.Rule{}
	}
	return ctx.JSON(http.StatusOK, rules)
}

func (api *adminApi) checkComposition(ctx echo.Context) error {
	var data group.CheckComposition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckComposition")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	result, err := api.grpSvc.CheckComposition(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "checking composition")
	}
	return ctx.JSON(http.StatusOK, result)
}

// Users

func (api *adminApi) listUnassigned(ctx echo.Context) error {
	users, err := api.grpSvc.ListUnassigned(ctx.Request().Context(), queryParam(ctx, "batch_id"))
	if err != nil {
		return errors.Wrap(err, "listing unassigned students")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *adminApi) setLearningPath(ctx echo.Context) error {
	var data LearningPathRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LearningPathRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.SetLearningPath(ctx.Request().Context(), ctx.Param("id"), data.LearningPath)
	if err != nil {
		return errors.Wrap(err, "setting learning path")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// Program

func (api *adminApi) createUseCase(ctx echo.Context) error {
	var data program.NewUseCase
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUseCase")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	uc, err := api.progSvc.CreateUseCase(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating use case")
	}
	return ctx.JSON(http.StatusCreated, uc)
}

func (api *adminApi) createDoc(ctx echo.Context) error {
	var data program.NewDoc
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDoc")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	doc, err := api.progSvc.CreateDoc(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating doc")
	}
	return ctx.JSON(http.StatusCreated, doc)
}

func (api *adminApi) createTimelineEntry(ctx echo.Context) error {
	var data program.NewTimelineEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTimelineEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.progSvc.CreateTimelineEntry(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating timeline entry")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

func (api *adminApi) createPeriod(ctx echo.Context) error {
	var data program.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	period, err := api.progSvc.CreatePeriod(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating period")
	}
	return ctx.JSON(http.StatusCreated, period)
}

func (api *adminApi) listPeriods(ctx echo.Context) error {
	periods, err := api.progSvc.ListPeriods(ctx.Request().Context(), queryParam(ctx, "batch_id"))
	if err != nil {
		return errors.Wrap(err, "listing periods")
	}
	if periods == nil {
		periods = []program.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *adminApi) sendReminder(ctx echo.Context) error {
	result, err := api.wsSvc.SendReminder(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "sending reminder")
	}
	return ctx.JSON(http.StatusOK, result)
}

// Monitoring

func (api *adminApi) listDeliverables(ctx echo.Context) error {
	filter := deliverable.QueryFilter{
		DocumentType: queryParam(ctx, "document_type"),
		UseCaseID:    queryParam(ctx, "use_case_id"),
	}
	rows, err := api.delivSvc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing deliverables")
	}
	if rows == nil {
		rows = []deliverable.Row{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *adminApi) listWorksheets(ctx echo.Context) error {
	filter := worksheet.QueryFilter{
		BatchID: queryParam(ctx, "batch_id"),
		Status:  queryParam(ctx, "status"),
		UserID:  queryParam(ctx, "user_id"),
	}
	rows, err := api.wsSvc.List(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "listing worksheets")
	}
	if rows == nil {
		rows = []worksheet.Row{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *adminApi) validateWorksheet(ctx echo.Context) error {
	var data worksheet.Review
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ws, err := api.wsSvc.Validate(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "validating worksheet")
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *adminApi) exportFeedback(ctx echo.Context) error {
	format, err := exportFormat(ctx)
	if err != nil {
		return err
	}
	filter := feedback.ExportFilter{
		BatchID: queryParam(ctx, "batch_id"),
		GroupID: queryParam(ctx, "group_id"),
	}
	rows, err := api.fbSvc.Export(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "exporting feedback")
	}

	if format == formatXLSX {
		xrows := make([]exportsvc.Row, 0, len(rows))
		for _, r := range rows {
			xrows = append(xrows, r)
		}
		return sendXLSX(ctx, "feedback.xlsx", "Feedback", feedback.ExportHeader, xrows)
	}
	if rows == nil {
		rows = []feedback.ExportRow{}
	}
	return ctx.JSON(http.StatusOK, rows)
}
