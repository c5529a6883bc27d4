package main

import (
	"fmt"

	echoapi "github.com/trezcool/uniforme/apps/api/echo"
	"github.com/trezcool/uniforme/core"
)

// token prints a bearer token for the given actor. Meant for development & integrations.
func (cli *commandLine) token(id, name, role, centerCode string) error {
	r, err := core.ParseRole(role)
	if err != nil {
		return err
	}
	actor := core.Actor{ID: id, Name: name, Role: r, CenterCode: core.CleanString(centerCode)}
	if actor.IsAdmin() {
		actor.CenterCode = ""
	} else if actor.CenterCode == "" {
		return fmt.Errorf("%s tokens need a center", r)
	}

	tkn, err := echoapi.GenerateToken(echoapi.NewClaims(actor, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, tkn)
	return nil
}
