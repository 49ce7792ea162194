// services/push_client.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// PushClient talks to the push delivery provider (Expo-compatible endpoint).
// Delivery is best-effort: callers treat errors as log-and-continue.
type PushClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPushClient(baseURL, token string) *PushClient {
	return &PushClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// Send delivers one push message to a device token.
func (c *PushClient) Send(pushToken, title, body string, data map[string]string) error {
	url := fmt.Sprintf("%s/--/api/v2/push/send", c.BaseURL)

	msg := pushMessage{
		To:    pushToken,
		Title: title,
		Body:  body,
		Data:  data,
		Sound: "default",
	}
	jsonData, _ := json.Marshal(msg)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK {
		log.Printf("Push provider returned %d: %s", resp.StatusCode, string(respBody))
		return fmt.Errorf("push delivery failed: %d", resp.StatusCode)
	}

	return nil
}
