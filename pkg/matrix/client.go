package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
)

// maxResponseSize bounds how much of a homeserver response is read.
const maxResponseSize = 16 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the Matrix homeserver (e.g., "https://matrix.org").
	HomeserverURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client is an unauthenticated Matrix client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new unauthenticated Matrix client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("matrix: HomeserverURL is required")
	}
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("matrix: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: httpClient,
		logger:     config.Logger,
	}, nil
}

// ServerVersions returns the Matrix protocol versions supported by the homeserver.
func (c *Client) ServerVersions(ctx context.Context) (*ServerVersionsResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/versions", "", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("matrix: server versions failed: %w", err)
	}

	var response ServerVersionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("matrix: failed to parse versions response: %w", err)
	}
	return &response, nil
}

// SupportsVersion reports whether any advertised client-server API version is at least minimum.
// Legacy "r0.x" versions are ignored.
func (r *ServerVersionsResponse) SupportsVersion(minimum string) (bool, error) {
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return false, fmt.Errorf("matrix: invalid minimum version %q: %w", minimum, err)
	}
	for _, v := range r.Versions {
		version, err := semver.NewVersion(v)
		if err != nil {
			continue
		}
		if constraint.Check(version) {
			return true, nil
		}
	}
	return false, nil
}

// Login authenticates with username and password, returning a Session.
// username may be a localpart or a fully qualified user ID.
func (c *Client) Login(ctx context.Context, username, password, deviceName string) (*Session, error) {
	if username == "" {
		return nil, fmt.Errorf("matrix: username is required for login")
	}
	if password == "" {
		return nil, fmt.Errorf("matrix: password is required for login")
	}

	request := LoginRequest{
		Type:                     "m.login.password",
		Identifier:               Identifier{Type: "m.id.user", User: username},
		Password:                 password,
		InitialDeviceDisplayName: deviceName,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", "", request, nil)
	if err != nil {
		return nil, fmt.Errorf("matrix: login failed: %w", err)
	}

	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("matrix: failed to parse login response: %w", err)
	}
	if auth.AccessToken == "" {
		return nil, fmt.Errorf("matrix: login response carried no access token")
	}

	c.logger.Info().
		Str("user_id", auth.UserID).
		Str("device_id", auth.DeviceID).
		Msg("Logged in to Matrix homeserver")

	return &Session{
		client:      c,
		accessToken: auth.AccessToken,
		userID:      auth.UserID,
		deviceID:    auth.DeviceID,
	}, nil
}

// doRequest performs an HTTP request to the homeserver and returns the response body.
// On 2xx, returns the body. On 4xx/5xx, returns a *Error.
func (c *Client) doRequest(ctx context.Context, method, path, accessToken string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("matrix: failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to create request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("matrix: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("matrix: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All Matrix error responses use the same JSON shape.
	var matrixErr Error
	if jsonErr := json.Unmarshal(responseBody, &matrixErr); jsonErr != nil {
		return nil, fmt.Errorf("matrix: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	matrixErr.StatusCode = response.StatusCode
	return nil, &matrixErr
}
