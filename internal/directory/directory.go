package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"group-chat-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// Directory is the external user service: the source of truth for display
// names and avatars.
type Directory interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// HTTPDirectory talks to the user service over its REST API.
type HTTPDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// GetUser fetches a single user. A 404 maps to ErrUserNotFound.
func (d *HTTPDirectory) GetUser(ctx context.Context, userID int) (models.User, error) {
	url := fmt.Sprintf("%s/api/users/%d", d.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.User{}, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return models.User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return models.User{}, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return models.User{}, fmt.Errorf("user service status %d", resp.StatusCode)
	}

	var body struct {
		User models.User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.User{}, err
	}
	if body.User.ID == 0 {
		return models.User{}, ErrUserNotFound
	}
	return body.User, nil
}
