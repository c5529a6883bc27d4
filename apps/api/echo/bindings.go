package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

var errInvalidYear = "year must be a number"

// bindFilter reads a classroom.ClassroomFilter from the query string.
func bindFilter(ctx echo.Context) (classroom.ClassroomFilter, error) {
	filter := classroom.ClassroomFilter{
		Grade:      ctx.QueryParam("grade"),
		CenterCode: ctx.QueryParam("center_code"),
	}
	if y := ctx.QueryParam("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil || year <= 0 {
			return classroom.ClassroomFilter{}, core.NewValidationError(nil, core.FieldError{Field: "year", Error: errInvalidYear})
		}
		filter.Year = year
	}
	filter.Clean()
	return filter, nil
}
