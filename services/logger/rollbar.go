package logsvc

import (
	"io"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/uniforme/core"
)

// RollbarLogger reports to Rollbar and mirrors every entry on a logrus.Logger.
type RollbarLogger struct {
	std     *logrus.Entry
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(out io.Writer, component string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	std := logrus.New()
	std.SetOutput(out)
	if conf.Debug {
		std.SetLevel(logrus.DebugLevel)
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		std.SetLevel(logrus.InfoLevel)
		std.SetFormatter(&logrus.JSONFormatter{})
	}
	return &RollbarLogger{std: std.WithField("component", component)}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, core.Actor
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, *logrus.Entry) {
	var actorSet bool
	entry := l.std
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case core.Actor:
			if !actorSet { // only set one Actor
				rollbar.SetPerson(v.ID, v.Name, "")
				entry = entry.WithFields(logrus.Fields{"actor_id": v.ID, "actor_role": string(v.Role)})
				actorSet = true
			}
		case error:
			entry = entry.WithError(v)
			rbArgs = append(rbArgs, v)
		case map[string]interface{}:
			entry = entry.WithFields(v)
			rbArgs = append(rbArgs, v)
		default:
			entry = entry.WithField("extra", v)
			rbArgs = append(rbArgs, v)
		}
	}
	if !actorSet {
		rollbar.ClearPerson()
	}
	return rbArgs, entry
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.enabled {
		rollbar.Debug(rbArgs...)
	}
	entry.Debug(msg)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.enabled {
		rollbar.Info(rbArgs...)
	}
	entry.Info(msg)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.enabled {
		rollbar.Warning(rbArgs...)
	}
	entry.Warn(msg)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.enabled {
		rollbar.Error(rbArgs...)
	}
	entry.Error(msg)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, entry := l.prepare(msg, args)
	if l.enabled {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	entry.Fatal(msg)
}
