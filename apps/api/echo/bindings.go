package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/user"
	exportsvc "github.com/trezcool/capstone/services/export"
)

const (
	formatParam = "format"
	formatXLSX  = "xlsx"
	formatJSON  = "json"

	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	LearningPathRequest struct {
		LearningPath string `json:"learning_path" validate:"required,learningpath"`
	}

	AutoAssignRequest struct {
		BatchID  string `json:"batch_id" validate:"required,notblank"`
		TeamSize int    `json:"team_size" validate:"gte=0"`
	}

	AddMemberRequest struct {
		UserID string `json:"user_id" validate:"required,uuid"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (lr *LearningPathRequest) Validate(validate *validator.Validate) error {
	lr.LearningPath = user.NormalizeLearningPath(core.CleanString(lr.LearningPath))
	return validate.Struct(lr)
}

func (ar *AutoAssignRequest) Validate(validate *validator.Validate) error {
	ar.BatchID = core.CleanString(ar.BatchID)
	return validate.Struct(ar)
}

func (ar *AddMemberRequest) Validate(validate *validator.Validate) error {
	ar.UserID = core.CleanString(ar.UserID)
	return validate.Struct(ar)
}

func queryParam(ctx echo.Context, name string) string {
	return core.CleanString(ctx.QueryParam(name))
}

// exportFormat returns the requested export format, json by default.
func exportFormat(ctx echo.Context) (string, error) {
	switch f := strings.ToLower(queryParam(ctx, formatParam)); f {
	case "", formatJSON:
		return formatJSON, nil
	case formatXLSX:
		return formatXLSX, nil
	default:
		return "", errInvalidFormat
	}
}

// sendXLSX streams rows as an xlsx attachment.
func sendXLSX(ctx echo.Context, filename, sheet string, header []string, rows []exportsvc.Row) error {
	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, mimeXLSX)
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	resp.WriteHeader(http.StatusOK)
	return errors.Wrap(exportsvc.WriteXLSX(resp, sheet, header, rows), "writing xlsx")
}
