// Package baseerror provides sentinel errors that form a hierarchy: an error
// created from a parent matches the parent with errors.Is.
package baseerror

type Error struct {
	parent error
	msg    string
}

func New(msg string) *Error {
	return &Error{msg: msg}
}

// New derives a more specific sentinel from err.
func (err *Error) New(msg string) *Error {
	return &Error{
		parent: err,
		msg:    msg,
	}
}

func (err *Error) Error() string {
	if err.parent != nil {
		return err.parent.Error() + ": " + err.msg
	}

	return err.msg
}

func (err *Error) Unwrap() error {
	return err.parent
}
