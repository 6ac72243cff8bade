package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mergeRequest struct {
	SurvivorID   string   `json:"survivor_id" validate:"required"`
	DuplicateIDs []string `json:"duplicate_ids" validate:"required,min=1,dive,required"`
}

func bindBody(t *testing.T, body string) (mergeRequest, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return Bind[mergeRequest](e.NewContext(req, httptest.NewRecorder()))
}

func TestBind(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		malformed bool
		wantErr   string
	}{
		{name: "valid", body: `{"survivor_id":"s","duplicate_ids":["d1","d2"]}`},
		{name: "malformed json", body: `{"survivor_id":`, malformed: true},
		{name: "missing survivor", body: `{"duplicate_ids":["d1"]}`, wantErr: "SurvivorID"},
		{name: "no duplicates", body: `{"survivor_id":"s","duplicate_ids":[]}`, wantErr: "min=1"},
		{name: "blank duplicate", body: `{"survivor_id":"s","duplicate_ids":[""]}`, wantErr: "DuplicateIDs[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := bindBody(t, tt.body)
			if tt.malformed {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
				return
			}
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "s", req.SurvivorID)
				assert.Equal(t, []string{"d1", "d2"}, req.DuplicateIDs)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
			assert.Contains(t, Message(validate.Struct(req)), tt.wantErr)
		})
	}
}
