// Package export renders classroom rosters as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetDetail  = "Uniformes"
	sheetSummary = "Resumen"

	KindDetail  = "detalle"
	KindSummary = "resumen"
)

var (
	detailHeaders  = []interface{}{"Centro", "Grado", "Alumno", "Camisa", "Pantalón/Falda", "Zapatos"}
	summaryHeaders = []interface{}{"Prenda", "Talla", "Cantidad"}

	errUnknownKind = errors.New("kind must be detalle or resumen")
)

// RosterSource is the read side of the classroom service used by the exporter.
type RosterSource interface {
	QueryRosters(ctx context.Context, actor core.Actor, filter classroom.ClassroomFilter) ([]classroom.ClassroomRoster, error)
}

type Service struct {
	rosters RosterSource
	audit   core.AuditSink
	logger  core.Logger
	year    int
}

func NewService(rosters RosterSource, audit core.AuditSink, logger core.Logger, conf *core.Config) *Service {
	return &Service{rosters: rosters, audit: audit, logger: logger, year: conf.CollectionYear}
}

// Filename is the attachment name for the given year.
func Filename(year int) string {
	return fmt.Sprintf("uniformes-%d.xlsx", year)
}

// Excel writes the workbook of every roster visible to actor under filter to w and returns the
// year actually exported. kind is KindDetail (one row per student, default) or KindSummary.
func (svc *Service) Excel(ctx context.Context, actor core.Actor, filter classroom.ClassroomFilter, kind string, w io.Writer) (int, error) {
	if kind == "" {
		kind = KindDetail
	}
	if kind != KindDetail && kind != KindSummary {
		return 0, core.NewValidationError(errUnknownKind, core.FieldError{Field: "type", Error: errUnknownKind.Error()})
	}
	if filter.Year == 0 {
		filter.Year = svc.year
	}

	rosters, err := svc.rosters.QueryRosters(ctx, actor, filter)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if kind == KindSummary {
		err = writeSummary(f, rosters)
	} else {
		err = writeDetail(f, rosters)
	}
	if err != nil {
		return 0, err
	}
	if err = f.Write(w); err != nil {
		return 0, errors.Wrap(err, "writing workbook")
	}

	core.EmitAudit(ctx, svc.audit, svc.logger, actor, core.AuditExportExcel, map[string]interface{}{
		"year":        filter.Year,
		"grade":       filter.Grade,
		"center_code": actor.ResolveCenter(filter.CenterCode),
	})
	return filter.Year, nil
}

// useSheet renames the default sheet to name.
func useSheet(f *excelize.File, name string) error {
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return errors.Wrapf(err, "naming sheet %s", name)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "computing cell name")
	}
	return errors.Wrapf(f.SetSheetRow(sheet, cell, &values), "writing row %d", row)
}

func writeDetail(f *excelize.File, rosters []classroom.ClassroomRoster) error {
	if err := useSheet(f, sheetDetail); err != nil {
		return err
	}
	if err := setRow(f, sheetDetail, 1, detailHeaders); err != nil {
		return err
	}

	row := 2
	for _, r := range rosters {
		for _, s := range r.Students {
			values := []interface{}{r.Classroom.CenterCode, r.Classroom.Grade, s.Name, "", "", ""}
			if e := s.UniformEntry; e != nil {
				values[3], values[4], values[5] = e.ShirtSize, e.BottomSize, e.ShoeSize
			}
			if err := setRow(f, sheetDetail, row, values); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func writeSummary(f *excelize.File, rosters []classroom.ClassroomRoster) error {
	if err := useSheet(f, sheetSummary); err != nil {
		return err
	}
	if err := setRow(f, sheetSummary, 1, summaryHeaders); err != nil {
		return err
	}

	var students []classroom.Student
	for _, r := range rosters {
		students = append(students, r.Students...)
	}
	summary := classroom.Summarize(students)

	row := 2
	for _, garment := range []struct {
		name   string
		counts map[string]int
	}{
		{"Camisa", summary.Shirt},
		{"Pantalón/Falda", summary.Bottom},
		{"Zapatos", summary.Shoes},
	} {
		sizes := make([]string, 0, len(garment.counts))
		for size := range garment.counts {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)
		for _, size := range sizes {
			if err := setRow(f, sheetSummary, row, []interface{}{garment.name, size, garment.counts[size]}); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}
