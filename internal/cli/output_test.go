package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepsync/internal/api"
	"github.com/roach88/stepsync/internal/devicesync"
	"github.com/roach88/stepsync/internal/gateway"
	"github.com/roach88/stepsync/internal/reminder"
	"github.com/roach88/stepsync/internal/session"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "step count must be a number", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "step count must be a number", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := map[string]string{"date": "2026-02-03", "status": "500"}
	err := formatter.Error("E002", "Database is on fire", details)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Signed out")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Signed out")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "step count must be a number", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "step count must be a number")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"date": "2026-02-01"}
	err := formatter.Error("E001", "step count must be a number", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Submitting %s", "2026-02-03")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Submitting 2026-02-03")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E100",
		Message: "targets must be positive",
		Details: []string{"daily_target: 0"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E100", decoded.Code)
	assert.Equal(t, "targets must be positive", decoded.Message)
}

func TestFailure_Mapping(t *testing.T) {
	remote := &api.RemoteError{Status: http.StatusConflict, Message: "Entry is locked"}

	tests := []struct {
		name    string
		err     error
		code    int
		errCode string
		message string
	}{
		{"invalid credentials",
			fmt.Errorf("sign in: %w: %w", session.ErrInvalidCredentials, &api.RemoteError{Status: 401, Message: "Invalid email or password"}),
			ExitFailure, ErrCodeInvalidCredentials, "Invalid email or password"},
		{"invalid count",
			&gateway.SubmitError{Code: gateway.CodeInvalidCount, Message: "step count must be a number"},
			ExitCommandError, ErrCodeInvalidInput, "step count must be a number"},
		{"window closed",
			&gateway.SubmitError{Code: gateway.CodeEditWindowClosed, Date: "2026-02-01"},
			ExitFailure, ErrCodeEditWindowClosed, "that date can no longer be edited"},
		{"remote rejected verbatim",
			&gateway.SubmitError{Code: gateway.CodeRemoteRejected, Date: "2026-02-03", Err: remote},
			ExitFailure, ErrCodeRemoteRejected, "Entry is locked"},
		{"network",
			fmt.Errorf("GET /goals: %w: %w", api.ErrNetwork, errors.New("connection refused")),
			ExitFailure, ErrCodeNetwork, "network error, please try again"},
		{"sync in progress", devicesync.ErrSyncInProgress, ExitFailure, ErrCodeSyncInProgress, devicesync.MsgInProgress},
		{"permission denied", reminder.ErrPermissionDenied, ExitFailure, ErrCodePermissionDenied, "notifications are not permitted"},
		{"unknown", errors.New("boom"), ExitFailure, ErrCodeGeneric, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := failure(tt.err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.errCode, got.ErrCode)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestFailure_KeepsExitError(t *testing.T) {
	orig := NewExitError(ExitCommandError, "bad flag")
	assert.Same(t, orig, failure(fmt.Errorf("wrapped: %w", orig)))
	assert.Equal(t, ErrCodeGeneric, envelopeCode(orig))
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := formatter.Fail(WrapExitError(ExitFailure, "sync failed", devicesync.ErrNotAuthorized))
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotAuthorized, resp.Error.Code)
	assert.Equal(t, "sync failed", resp.Error.Message)
}
