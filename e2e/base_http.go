package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

// BaseHTTPSuite targets a running node over its public REST and
// realtime surfaces. Suites embedding it skip when SERVER_ADDR is not
// set, so the package stays inert in unit runs.
type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping e2e suite")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
}

func (s *BaseHTTPSuite) baseURL() string {
	return "http://" + s.Config.ServerAddr
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// DoJSON posts or gets a JSON endpoint, logging timing and, when
// E2E_DEBUG_JSON is enabled, the full bodies. The response body is
// decoded into out when out is non-nil.
func (s *BaseHTTPSuite) DoJSON(method, path, token string, body any, out any) *http.Response {
	t := s.T()

	var reader io.Reader
	var requestJSON []byte
	if body != nil {
		var err error
		requestJSON, err = json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(requestJSON)
	}

	request, err := http.NewRequest(method, s.baseURL()+path, reader)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(request)
	s.Require().NoError(err, "request to "+path+" failed")
	defer resp.Body.Close()

	responseJSON, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(requestJSON))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(responseJSON))
	}
	t.Log(logBuilder.String())

	if out != nil {
		s.Require().NoError(json.Unmarshal(responseJSON, out),
			"decoding response of "+path)
	}
	return resp
}

// DialWS opens the realtime channel authenticated by token.
func (s *BaseHTTPSuite) DialWS(token string) *websocket.Conn {
	url := "ws://" + s.Config.ServerAddr + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "websocket dial failed")
	return conn
}
