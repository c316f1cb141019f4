// Package logging provides the small leveled-logger surface used across every
// subsystem, mirroring the teacher's internal/logger usage: construct one
// named logger per subsystem instance and call Debugln/Infof/Warningln/Errorln
// on it.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the interface every package depends on instead of *logrus.Entry
// directly, so call sites never need to know which backend is plugged in.
type Logger interface {
	Debugln(args ...interface{})
	Debugf(format string, args ...interface{})
	Infoln(args ...interface{})
	Infof(format string, args ...interface{})
	Warningln(args ...interface{})
	Warningf(format string, args ...interface{})
	Errorln(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	With(key string, value interface{}) Logger
}

type entry struct {
	*logrus.Entry
}

var (
	once sync.Once
	base *logrus.Logger
)

func root() *logrus.Logger {
	once.Do(func() {
		base = logrus.New()
		base.SetOutput(os.Stderr)
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		base.SetLevel(logrus.InfoLevel)
	})
	return base
}

// SetLevel adjusts the verbosity of every logger created through this package.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	root().SetLevel(lvl)
	return nil
}

// New returns a named logger, e.g. New("hub:" + url) or New("queue").
func New(name string) Logger {
	return &entry{root().WithField("component", name)}
}

func (e *entry) Debugln(args ...interface{})                 { e.Entry.Debugln(args...) }
func (e *entry) Debugf(format string, args ...interface{})   { e.Entry.Debugf(format, args...) }
func (e *entry) Infoln(args ...interface{})                  { e.Entry.Infoln(args...) }
func (e *entry) Infof(format string, args ...interface{})    { e.Entry.Infof(format, args...) }
func (e *entry) Warningln(args ...interface{})                { e.Entry.Warnln(args...) }
func (e *entry) Warningf(format string, args ...interface{})  { e.Entry.Warnf(format, args...) }
func (e *entry) Errorln(args ...interface{})                  { e.Entry.Errorln(args...) }
func (e *entry) Errorf(format string, args ...interface{})    { e.Entry.Errorf(format, args...) }
func (e *entry) Error(args ...interface{})                    { e.Entry.Error(args...) }

func (e *entry) With(key string, value interface{}) Logger {
	return &entry{e.Entry.WithField(key, value)}
}
