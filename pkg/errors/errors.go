// Errors annotated with the location they were raised or passed through.
//
// Usage:
//
//	if err := tx.Commit(ctx); err != nil {
//		return xe.WrapWithNote("committing analysis", err)
//	}
//
// Message of an annotated error reads like
//
//	@ pkg.func "file.go" l42 (note) <- cause
//
// Replace `<-` with newlines and you get a trail of where the error has been.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

type Located struct {
	funcname string
	file     string
	line     int
	note     string
	err      error
}

func (e *Located) Func() string {
	return e.funcname
}

func (e *Located) File() string {
	return e.file
}

func (e *Located) Line() int {
	return e.line
}

func (e *Located) Note() string {
	return e.note
}

func (e *Located) Error() string {
	if e.note == "" {
		return fmt.Sprintf(`@ %s "%s" l%d <- %s`, e.funcname, e.file, e.line, e.err)
	}
	return fmt.Sprintf(`@ %s "%s" l%d (%s) <- %s`, e.funcname, e.file, e.line, e.note, e.err)
}

func (e *Located) Unwrap() error {
	return e.err
}

// New creates a new error which knows where it is created.
func New(text string) error {
	return locate("", errors.New(text), 1)
}

// Wrap annotates err with the caller's location.
//
// Wrap(nil) is nil.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return locate("", err, 1)
}

// WrapWithNote annotates err with the caller's location and a short note.
//
// WrapWithNote(_, nil) is nil.
func WrapWithNote(note string, err error) error {
	if err == nil {
		return nil
	}
	return locate(note, err, 1)
}

func locate(note string, err error, depth int) error {
	pc, file, line, ok := runtime.Caller(depth + 1)
	if !ok {
		file = "?"
		line = -1
	}
	funcname := "(unknown func)"
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcname = fn.Name()
	}

	return &Located{
		funcname: funcname,
		file:     file,
		line:     line,
		note:     note,
		err:      err,
	}
}
