// Confluence - Composite API Gateway for Users, Events and Feed Services
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confluence

// Package validation wraps go-playground/validator v10 with a shared
// singleton and translates failures into the 422 detail format returned by
// the API.
//
// Field names in messages come from the `query`, `path` or `json` struct
// tag, in that order, so clients see the parameter names they sent:
//
//	type feedParams struct {
//	    LimitPosts int `query:"limit_posts" validate:"min=1,max=100"`
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed constraint.
type FieldError struct {
	// Location is "query", "path" or "body" depending on the tag that named the field.
	Location string
	Field    string
	Tag      string
	Param    string
	Value    any
	Message  string
}

func (e *FieldError) Error() string {
	return e.Message
}

// RequestValidationError collects every failed constraint of one struct.
type RequestValidationError struct {
	errors []FieldError
}

// Errors returns the individual field failures.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for i := range ve.errors {
		messages = append(messages, ve.errors[i].Error())
	}
	return strings.Join(messages, "; ")
}

// DetailItem is one entry of a 422 response's detail list.
type DetailItem struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// Detail renders the failures as the detail list clients already parse:
//
//	[{"loc":["query","limit_posts"],"msg":"limit_posts must be at most 100","type":"value_error.max"}]
func (ve *RequestValidationError) Detail() []DetailItem {
	items := make([]DetailItem, 0, len(ve.errors))
	for _, fe := range ve.errors {
		items = append(items, DetailItem{
			Loc:  []string{fe.Location, fe.Field},
			Msg:  fe.Message,
			Type: "value_error." + fe.Tag,
		})
	}
	return items
}

// GetValidator returns the singleton validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
	})
	return validate
}

// fieldName encodes the location and name as "location:name" so translate
// can split them again.
func fieldName(fld reflect.StructField) string {
	for _, loc := range []string{"query", "path", "json"} {
		name := strings.SplitN(fld.Tag.Get(loc), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			if loc == "json" {
				loc = "body"
			}
			return loc + ":" + name
		}
	}
	return ""
}

// ValidateStruct validates s and returns nil or a *RequestValidationError.
func ValidateStruct(s any) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{errors: []FieldError{{
			Location: "body",
			Field:    "unknown",
			Tag:      "unknown",
			Message:  err.Error(),
		}}}
	}

	fieldErrors := make([]FieldError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		loc, name := splitField(fieldErr.Field())
		fieldErrors[i] = FieldError{
			Location: loc,
			Field:    name,
			Tag:      fieldErr.Tag(),
			Param:    fieldErr.Param(),
			Value:    fieldErr.Value(),
			Message:  translateError(fieldErr, name),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

func splitField(field string) (string, string) {
	if loc, name, ok := strings.Cut(field, ":"); ok {
		return loc, name
	}
	return "body", field
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"url":      "%s must be a valid URL",
	"hostname": "%s must be a valid hostname",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError, field string) string {
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
