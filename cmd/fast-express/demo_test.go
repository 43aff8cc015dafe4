package main

import (
	"bytes"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchktools/fast-express/core/router"
)

func TestDemoRoutes(t *testing.T) {
	r := router.New()
	registerDemo(r)

	do := func(method, target, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "fast-express", do("GET", "/", "").Body.String())
	assert.JSONEq(t, `{"id":1,"name":"ada"}`, do("GET", "/api/users/1", "").Body.String())
	assert.Equal(t, stdhttp.StatusNotFound, do("GET", "/api/users/9", "").Code)
	assert.Equal(t, stdhttp.StatusBadRequest, do("GET", "/api/users/x", "").Code)

	rec := do("POST", "/api/users", `{"name":"bob"}`)
	assert.Equal(t, stdhttp.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":2,"name":"bob"}`, rec.Body.String())
	assert.Equal(t, stdhttp.StatusBadRequest, do("POST", "/api/users", `{}`).Code)
}

func TestRoutesCommand(t *testing.T) {
	t.Setenv("TRANSPORT", "native")
	cmd := routesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--native"})
	require.NoError(t, cmd.Execute())

	s := out.String()
	assert.Regexp(t, `GET\s+/healthz\s+native`, s)
	assert.Contains(t, s, "/api/users")
	assert.NotContains(t, s, "/api/users/:id")
	assert.NotContains(t, s, "middleware")
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("port", 0, "")
	cmd.Flags().String("transport", "", "")
	cmd.Flags().String("env", "", "")
	require.NoError(t, cmd.Flags().Set("port", "9999"))

	cfg, err := loadConfig(cmd, 9999, "", "")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)

	require.NoError(t, cmd.Flags().Set("transport", "bogus"))
	_, err = loadConfig(cmd, 9999, "bogus", "")
	assert.Error(t, err)
}
