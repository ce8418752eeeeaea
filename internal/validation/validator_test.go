package validation

import (
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Username string `json:"username" binding:"required,min=4,max=20,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, RegisterRules(v))
	return v
}

func TestUsernameRule(t *testing.T) {
	v := newValidate(t)

	valid := []string{"alice", "bob_99", "ABCD", strings.Repeat("a", 20)}
	for _, name := range valid {
		err := v.Struct(registerInput{Username: name, Email: "a@example.com", Password: "password1"})
		assert.NoError(t, err, name)
	}

	invalid := []string{"abc", "has space", "dash-name", "emoji😀", strings.Repeat("a", 21), ""}
	for _, name := range invalid {
		err := v.Struct(registerInput{Username: name, Email: "a@example.com", Password: "password1"})
		assert.Error(t, err, name)
	}
}

func TestFieldViolationsUseJSONNames(t *testing.T) {
	v := newValidate(t)
	err := v.Struct(registerInput{Username: "a b", Email: "nope", Password: "short"})
	require.Error(t, err)

	fields := FieldViolations(err)
	byField := map[string]string{}
	for _, f := range fields {
		byField[f.Field] = f.Constraint
	}

	assert.Equal(t, "must be at least 4 characters", byField["username"])
	assert.Equal(t, "must be a valid email address", byField["email"])
	assert.Equal(t, "must be at least 8 characters", byField["password"])
	assert.NotContains(t, byField, "fullName")
}

func TestFieldViolationsForDecodeErrors(t *testing.T) {
	var dst struct {
		Amount float64 `json:"amount"`
	}
	err := json.Unmarshal([]byte(`{"amount":"lots"}`), &dst)
	fields := FieldViolations(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "amount", fields[0].Field)

	fields = FieldViolations(io.EOF)
	assert.Equal(t, "body", fields[0].Field)
	assert.Equal(t, "is required", fields[0].Constraint)
}

func TestBindError(t *testing.T) {
	v := newValidate(t)
	err := v.Struct(registerInput{Username: "alice", Email: "a@example.com"})

	appErr := BindError(err)
	assert.Equal(t, 422, appErr.HTTPStatus())
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "password", appErr.Fields[0].Field)
	assert.Equal(t, "Invalid request: password is required", appErr.Details)
}

func TestRegisterGinRulesIsIdempotent(t *testing.T) {
	require.NoError(t, RegisterGinRules())
	require.NoError(t, RegisterGinRules())
}
