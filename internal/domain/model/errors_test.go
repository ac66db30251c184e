package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

func TestValidationError_RejectionsBeforeKeyRewrites(t *testing.T) {
	err := &model.ValidationError{Findings: []model.Finding{
		{Path: "a b", Message: "key rewritten to a_b", KeyRewrite: true},
		{Path: "c d", Message: "key rewritten to c_d", KeyRewrite: true},
		{Path: "e f", Message: "key rewritten to e_f", KeyRewrite: true},
		{Path: "Title", Message: "contains markup"},
	}}

	msg := err.Error()
	assert.Equal(t, "Title: contains markup; a b: key rewritten to a_b; c d: key rewritten to c_d", msg)
	assert.Equal(t, msg, model.UserMessage(fmt.Errorf("add row: %w", err)))
}

func TestValidationError_KeepsFindingOrderWithinKind(t *testing.T) {
	err := &model.ValidationError{Findings: []model.Finding{
		{Path: "x", Message: "first"},
		{Path: "k", Message: "renamed", KeyRewrite: true},
		{Path: "y", Message: "second"},
		{Path: "z", Message: "third"},
		{Path: "w", Message: "fourth"},
	}}

	assert.Equal(t, "x: first; y: second; z: third", err.Error())
	assert.True(t, errors.Is(err, model.ErrValidationFailed))
}

func TestValidationError_Empty(t *testing.T) {
	err := &model.ValidationError{}
	assert.Equal(t, model.ErrValidationFailed.Error(), err.Error())
}
