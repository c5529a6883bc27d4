package main

import (
	"context"
	"fmt"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

// sync loads a classroom roster from the registry as the system actor.
func (cli *commandLine) sync(centerCode, grade string, year int) error {
	roster, err := cli.svc.LoadClassroom(context.Background(), core.SystemActor, classroom.LoadClassroom{
		CenterCode: centerCode,
		Grade:      grade,
		Year:       year,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "%s (%s) grade %s %d [%s]: %d students, %.0f%% complete\n",
		roster.School.Name, roster.School.CenterCode,
		roster.Classroom.Grade, roster.Classroom.Year, roster.Classroom.Status,
		len(roster.Students), classroom.CompletionRatio(roster.Students)*100,
	)
	return nil
}
