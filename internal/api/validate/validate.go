package validate

import (
	"strconv"
	"strings"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func NonEmptyList(field string, n int) *ErrField {
	if n == 0 {
		return &ErrField{Field: field, Msg: "must not be empty"}
	}
	return nil
}

func MaxItems(field string, n, max int) *ErrField {
	if n > max {
		return &ErrField{Field: field, Msg: "must have <= " + strconv.Itoa(max) + " items"}
	}
	return nil
}
