package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HttpSender is a thin adapter over the message-dispatch service.
type HttpSender struct {
	baseUrl string
	token   string
	client  *http.Client
}

var _ Sender = new(HttpSender)

func NewHttpSender(baseUrl string, token string) *HttpSender {
	return &HttpSender{
		baseUrl: baseUrl,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HttpSender) Configured() bool {
	return len(s.baseUrl) > 0 && len(s.token) > 0
}

type sendRequest struct {
	To         string            `json:"to"`
	Template   string            `json:"template"`
	Language   string            `json:"language"`
	Components map[string]string `json:"components,omitempty"`
}

func (s *HttpSender) SendTemplatedMessage(to string, template string, language string, components map[string]string) (*SendResult, error) {
	body, err := json.Marshal(sendRequest{To: to, Template: template, Language: language, Components: components})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, s.baseUrl+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dispatch service returned status %d", resp.StatusCode)
	}
	var result SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}
