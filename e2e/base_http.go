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
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
	tokens map[string]string
}

// SetupSuite loads the environment configuration before running tests.
// The suite targets a server that is already running; SERVER_URL selects it.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerURL == "" {
		s.T().Skip("SERVER_URL not set, skipping end-to-end suite")
	}
	s.client = &http.Client{Timeout: 30 * time.Second}
	s.tokens = map[string]string{}
}

// Step prints a colorized header so scenario phases stand out in logs.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs one authenticated JSON request and decodes the response into
// target (which may be nil). It returns the status code for assertions.
func (s *BaseHTTPSuite) Call(username, method, path string, payload, target any) int {
	var body bytes.Buffer
	if payload != nil {
		s.Require().NoError(json.NewEncoder(&body).Encode(payload))
	}
	request, err := http.NewRequest(method, s.Config.ServerURL+path, &body)
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	if token, ok := s.tokens[username]; ok {
		request.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(request)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if target != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, target))
	}
	return resp.StatusCode
}

// RegisterUser creates an account and keeps its bearer token for later calls.
// Duplicate registrations fall back to login so suites are re-runnable
// against the same server.
func (s *BaseHTTPSuite) RegisterUser(username, password string) {
	var body map[string]string
	status := s.Call("", http.MethodPost, "/api/auth/register", map[string]string{
		"email":    username + "@example.com",
		"username": username,
		"password": password,
	}, &body)
	if status == http.StatusConflict {
		status = s.Call("", http.MethodPost, "/api/auth/login", map[string]string{
			"email":    username + "@example.com",
			"password": password,
		}, &body)
		s.Require().Equal(http.StatusOK, status)
	} else {
		s.Require().Equal(http.StatusCreated, status)
	}
	s.Require().NotEmpty(body["token"])
	s.tokens[username] = body["token"]
}
