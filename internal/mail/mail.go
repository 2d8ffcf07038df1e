package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

const VerificationSubject = "Verify Your Email - Cookie Craze"

type Sender interface {
	SendVerificationEmail(ctx context.Context, toEmail string, name string, verifyURL string) error
}

var verificationTemplate = template.Must(template.New("verify").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for signing up at Cookie Craze. Please verify your email by clicking the link below:</p>
<p><a href="{{.URL}}">Verify Email</a></p>
<p>This link expires in 24 hours.</p>`))

func renderVerification(name string, verifyURL string) (string, error) {
	var buf bytes.Buffer
	err := verificationTemplate.Execute(&buf, struct{ Name, URL string }{Name: name, URL: verifyURL})
	return buf.String(), err
}

// LogSender writes verification links to the operational log. It is the
// fallback when no mail provider is configured.
type LogSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *LogSender) SendVerificationEmail(_ context.Context, toEmail string, _ string, verifyURL string) error {
	s.mu.Lock()
	s.sent = append(s.sent, verifyURL)
	s.mu.Unlock()
	log.Printf("[mail] verification for %s: %s", toEmail, verifyURL)
	return nil
}

// Sent returns the links logged so far.
func (s *LogSender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type ResendSender struct {
	apiKey  string
	from    string
	client  *http.Client
	baseURL string
}

func NewResendSender(apiKey string, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("resend api key is empty")
	}
	return &ResendSender{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		baseURL: "https://api.resend.com",
	}, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (m *ResendSender) SendVerificationEmail(ctx context.Context, toEmail string, name string, verifyURL string) error {
	html, err := renderVerification(name, verifyURL)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{toEmail},
		Subject: VerificationSubject,
		HTML:    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("failed to send verification email: %s", strings.TrimSpace(string(body)))
	}
	return nil
}
