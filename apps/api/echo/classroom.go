package echoapi

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
	"github.com/trezcool/uniforme/services/export"
)

type classroomApi struct {
	svc       *classroom.Service
	exportSvc *export.Service
}

func registerClassroomAPI(g *echo.Group, svc *classroom.Service, exportSvc *export.Service) {
	api := classroomApi{
		svc:       svc,
		exportSvc: exportSvc,
	}

	g.GET("/me", api.me)
	g.GET("/schools", api.querySchools, adminMiddleware)

	cg := g.Group("/classrooms")
	cg.POST("/load", api.load)
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/finalize", api.finalize)

	g.PUT("/students/:id/uniform", api.recordEntry)

	g.GET("/reports/summary", api.report)
	g.GET("/export/excel", api.exportExcel)
}

type (
	// EntryRequest is the body of PUT /students/:id/uniform.
	EntryRequest struct {
		ShirtSize  string `json:"shirt_size"`
		BottomSize string `json:"bottom_size"`
		ShoeSize   string `json:"shoe_size"`
	}

	MeResponse struct {
		Actor  core.Actor        `json:"actor"`
		School *classroom.School `json:"school"`
	}

	// StudentResponse adds the derived age to a Student.
	StudentResponse struct {
		classroom.Student
		CurrentAge *int `json:"current_age"`
		Complete   bool `json:"complete"`
	}

	RosterResponse struct {
		School     *classroom.School   `json:"school,omitempty"`
		Classroom  classroom.Classroom `json:"classroom"`
		Students   []StudentResponse   `json:"students"`
		Completion float64             `json:"completion"`
	}
)

func newRosterResponse(school *classroom.School, c classroom.Classroom, students []classroom.Student) RosterResponse {
	now := classroom.NowFunc()
	resp := RosterResponse{
		School:     school,
		Classroom:  c,
		Students:   make([]StudentResponse, 0, len(students)),
		Completion: classroom.CompletionRatio(students),
	}
	for _, s := range students {
		resp.Students = append(resp.Students, StudentResponse{Student: s, CurrentAge: s.CurrentAge(now), Complete: s.IsComplete()})
	}
	return resp
}

// Handlers

func (api *classroomApi) me(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	resp := MeResponse{Actor: actor}
	if actor.CenterCode != "" {
		school, err := api.svc.GetSchool(ctx.Request().Context(), actor, actor.CenterCode)
		if err == nil {
			resp.School = &school
		} else if errors.Cause(err) != core.ErrNotFound {
			return errors.Wrap(err, "getting school")
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *classroomApi) querySchools(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	schools, err := api.svc.ListSchools(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "listing schools")
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *classroomApi) load(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data classroom.LoadClassroom
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoadClassroom")
	}

	roster, err := api.svc.LoadClassroom(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "loading classroom")
	}
	return ctx.JSON(http.StatusOK, newRosterResponse(&roster.School, roster.Classroom, roster.Students))
}

func (api *classroomApi) retrieve(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	cr, err := api.svc.GetClassroom(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting classroom")
	}
	return ctx.JSON(http.StatusOK, newRosterResponse(nil, cr.Classroom, cr.Students))
}

func (api *classroomApi) finalize(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.Finalize(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finalizing classroom")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *classroomApi) recordEntry(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	var data EntryRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EntryRequest")
	}

	entry, err := api.svc.RecordEntry(ctx.Request().Context(), actor, classroom.RecordEntry{
		StudentID:  ctx.Param("id"),
		ShirtSize:  data.ShirtSize,
		BottomSize: data.BottomSize,
		ShoeSize:   data.ShoeSize,
	})
	if err != nil {
		return errors.Wrap(err, "recording entry")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *classroomApi) report(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	report, err := api.svc.Report(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "computing report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *classroomApi) exportExcel(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	year, err := api.exportSvc.Excel(ctx.Request().Context(), actor, filter, ctx.QueryParam("type"), &buf)
	if err != nil {
		return errors.Wrap(err, "exporting excel")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+export.Filename(year)+`"`)
	ctx.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(buf.Len()))
	return ctx.Blob(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}
