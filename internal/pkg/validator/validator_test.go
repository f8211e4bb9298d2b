package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name  string `validate:"required"`
	Inner struct {
		Port int `validate:"gt=0"`
	}
}

func TestValidate(t *testing.T) {
	ok := sample{Name: "automax"}
	ok.Inner.Port = 587
	assert.Nil(t, Validate(ok))

	errs := Validate(sample{})
	assert.Equal(t, "required", errs["sample.Name"])
	assert.Equal(t, "gt", errs["sample.Inner.Port"])
}

func TestValidate_NotAStruct(t *testing.T) {
	errs := Validate(42)
	assert.Contains(t, errs, "_")
}
