package a1ctf_client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/a1ctf/gamesync/go/clients"
	"github.com/a1ctf/gamesync/go/internal/models"
)

// ErrGameNotFound is returned when the game does not exist or is not visible.
var ErrGameNotFound = models.ErrGameNotFound

// Client talks to the game server's participant API.
type Client struct {
	*clients.BaseClient
}

// NewClient creates a client for baseURL authenticated with token. A token
// containing "=" is sent as a cookie, anything else as a bearer token.
func NewClient(baseURL, token string) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}

	client.SetHeader(JsonHeader, JsonContentType)
	switch {
	case token == "":
	case strings.Contains(token, "="):
		client.SetHeader(CookieHeader, token)
	default:
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}

	return client
}

// envelope is the {code, message, data} wrapper of every response.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if env.Code != 0 && env.Code != 200 {
		return fmt.Errorf("API returned code %d: %s", env.Code, env.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

// HubURL returns the websocket URL of the push hub for gameID.
func (c *Client) HubURL(gameID int64) (string, error) {
	u, err := url.Parse(c.BaseURL())
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + HubEndpoint
	q := url.Values{}
	q.Set(HubGameParam, strconv.FormatInt(gameID, 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}
