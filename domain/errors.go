package domain

import (
	"sort"
	"strings"
)

// FieldErrors maps a form field name to the message shown next to it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f+": "+e[f])
	}
	return "invalid form: " + strings.Join(msgs, "; ")
}

func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
