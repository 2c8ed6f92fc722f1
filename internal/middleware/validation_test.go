package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "carecohort/internal/errors"
)

type createRoundRequest struct {
	Name      string `json:"name" validate:"required,max=120,safename"`
	Reference string `json:"reference,omitempty" validate:"refdate"`
	Window    int    `json:"janela,omitempty" validate:"gte=0"`
}

func TestValidatorDecodeJSON(t *testing.T) {
	v := NewValidator(nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{name: "valid", body: `{"name":"Rodada 1","reference":"31/01/2024"}`},
		{name: "iso reference", body: `{"name":"Rodada 1","reference":"2024-01-31"}`},
		{name: "missing name", body: `{"reference":"2024-01-31"}`, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "empty body still validated", body: ``, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "bad reference", body: `{"name":"r","reference":"ontem"}`, wantStatus: http.StatusBadRequest, wantField: "reference"},
		{name: "path separator", body: `{"name":"../etc"}`, wantStatus: http.StatusBadRequest, wantField: "name"},
		{name: "negative window", body: `{"name":"r","janela":-1}`, wantStatus: http.StatusBadRequest, wantField: "janela"},
		{name: "malformed json", body: `{"name":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var req createRoundRequest
			err := v.DecodeJSON(r, &req)

			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, "Rodada 1", req.Name)
				return
			}

			var apiErr *apierrors.APIError
			require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			if tt.wantField != "" {
				details, ok := apiErr.Details.(apierrors.ValidationErrors)
				require.True(t, ok)
				require.NotEmpty(t, details.Errors)
				assert.Equal(t, tt.wantField, details.Errors[0].Field)
			}
		})
	}
}

func TestValidatorBodyTooLarge(t *testing.T) {
	v := NewValidator(nil)
	v.maxBodySize = 8

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a long project name"}`))
	err := v.DecodeJSON(r, &createRoundRequest{})

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.StatusCode)
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 24},
		{query: "janela=12", want: 12},
		{query: "janela=0", want: 0},
		{query: "janela=abc", wantErr: true},
		{query: "janela=500", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := QueryInt(r, "janela", 0, 240, 24)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryBool(t *testing.T) {
	tests := []struct {
		query   string
		want    bool
		wantErr bool
	}{
		{query: "", want: false},
		{query: "momento_zero=true", want: true},
		{query: "momento_zero=sim", want: true},
		{query: "momento_zero=1", want: true},
		{query: "momento_zero=nao", want: false},
		{query: "momento_zero=talvez", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := QueryBool(r, "momento_zero", false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?grupos=TP_01&grupos=+&grupos=TP_03&agrupamento=Consultas%2C+exames", nil)

	assert.Equal(t, []string{"TP_01", "TP_03"}, QueryList(r, "grupos"))
	assert.Equal(t, []string{"Consultas, exames"}, QueryList(r, "agrupamento"))
	assert.Nil(t, QueryList(r, "missing"))
}
