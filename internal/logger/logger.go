package logger

import (
	"fmt"
	"io"
	"log"
)

type Logger struct {
	level   Level
	loggers [LevelTrace + 1]*log.Logger
}

func (l *Logger) output(level Level, s string) {
	if lg := l.loggers[level]; lg != nil {
		_ = lg.Output(3, s)
	}
}

func (l *Logger) Trace(v ...any) { l.output(LevelTrace, fmt.Sprintln(v...)) }
func (l *Logger) Debug(v ...any) { l.output(LevelDebug, fmt.Sprintln(v...)) }
func (l *Logger) Info(v ...any)  { l.output(LevelInfo, fmt.Sprintln(v...)) }
func (l *Logger) Warn(v ...any)  { l.output(LevelWarn, fmt.Sprintln(v...)) }
func (l *Logger) Error(v ...any) { l.output(LevelError, fmt.Sprintln(v...)) }

func (l *Logger) Tracef(format string, v ...any) { l.output(LevelTrace, fmt.Sprintf(format, v...)) }
func (l *Logger) Debugf(format string, v ...any) { l.output(LevelDebug, fmt.Sprintf(format, v...)) }
func (l *Logger) Infof(format string, v ...any)  { l.output(LevelInfo, fmt.Sprintf(format, v...)) }
func (l *Logger) Warnf(format string, v ...any)  { l.output(LevelWarn, fmt.Sprintf(format, v...)) }
func (l *Logger) Errorf(format string, v ...any) { l.output(LevelError, fmt.Sprintf(format, v...)) }

// Level returns the most verbose level that is written.
func (l *Logger) Level() Level {
	return l.level
}

// NewLogger writes every level up to and including level to out.
// Errors and fatals also go to errOut when it is not nil.
func NewLogger(level Level, out io.Writer, errOut io.Writer) *Logger {
	flag := log.LstdFlags | log.Lshortfile
	l := &Logger{level: level}
	for lv := LevelFatal; lv <= LevelTrace; lv++ {
		if !level.Enables(lv) {
			continue
		}
		w := out
		if lv <= LevelError && errOut != nil {
			w = io.MultiWriter(out, errOut)
		}
		l.loggers[lv] = log.New(w, fmt.Sprintf("%-5s:", lv), flag)
	}
	return l
}

// Discard returns a Logger that writes nothing.
func Discard() *Logger {
	return NewLogger(LevelOff, io.Discard, nil)
}
