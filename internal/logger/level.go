package logger

import (
	"github.com/pkg/errors"
	"strings"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type=Level -linecomment

// Level orders verbosity, a Logger writes every level up to its own.
type Level int

const (
	LevelOff   Level = iota // OFF
	LevelFatal              // FATAL
	LevelError              // ERROR
	LevelWarn               // WARN
	LevelInfo               // INFO
	LevelDebug              // DEBUG
	LevelTrace              // TRACE
)

// ParseLevel accepts level names in any case, "warning" included.
func ParseLevel(s string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn, nil
	}
	for lv := LevelOff; lv <= LevelTrace; lv++ {
		if lv.String() == name {
			return lv, nil
		}
	}
	return -1, errors.Errorf("invalid level: %s", s)
}

// Enables reports whether a Logger at l writes messages of level lv.
func (l Level) Enables(lv Level) bool {
	return lv > LevelOff && lv <= l
}

func (l Level) MarshalText() ([]byte, error) {
	if l < LevelOff || l > LevelTrace {
		return nil, errors.Errorf("invalid level: %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	lv, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = lv
	return nil
}
