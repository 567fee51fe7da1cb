package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrInvalidState.WithDetail("state mismatch"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_STATE", body["code"])
	assert.Equal(t, "state mismatch", body["detail"])
}

func TestWriteError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	cause := stderrors.New("cognito: AdminInitiateAuth: NotAuthorizedException")
	WriteError(rec, ErrLoginFailed.WithCause(cause))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "cognito")
}

func TestFromError_Generic(t *testing.T) {
	cause := stderrors.New("boom")
	appErr := FromError(cause)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.ErrorIs(t, appErr, cause)
	// Las variables base no se mutan.
	assert.Nil(t, ErrInternalServerError.Err)
}
