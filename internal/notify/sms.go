package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"
)

// Sender delivers a rendered message to one phone number. Implementations
// must be safe for concurrent use. Send failures are the caller's problem to
// log; booking code never treats them as booking failures.
type Sender interface {
	Send(phone, message string) error
}

// Noop logs instead of sending. Used in dev and tests, and whenever SENS
// credentials are not configured.
type Noop struct{}

func (Noop) Send(phone, message string) error {
	log.Printf("notify: (noop) sms to %s: %d bytes", phone, len(message))
	return nil
}

const sensBaseURL = "https://sens.apigw.ntruss.com"

// SENS sends LMS messages through Naver Cloud's SENS API.
type SENS struct {
	ServiceID string
	AccessKey string
	SecretKey string
	From      string

	Client  *http.Client
	BaseURL string // overridable for tests

	// now is stubbed in tests; zero value uses time.Now.
	now func() time.Time
}

func NewSENS(serviceID, accessKey, secretKey, from string) *SENS {
	return &SENS{
		ServiceID: serviceID,
		AccessKey: accessKey,
		SecretKey: secretKey,
		From:      from,
		Client:    &http.Client{Timeout: 10 * time.Second},
		BaseURL:   sensBaseURL,
	}
}

type sensMessage struct {
	To string `json:"to"`
}

type sensRequest struct {
	Type        string        `json:"type"`
	ContentType string        `json:"contentType"`
	CountryCode string        `json:"countryCode"`
	From        string        `json:"from"`
	Content     string        `json:"content"`
	Messages    []sensMessage `json:"messages"`
}

func (s *SENS) Send(phone, message string) error {
	uri := "/sms/v2/services/" + s.ServiceID + "/messages"

	nowFn := s.now
	if nowFn == nil {
		nowFn = time.Now
	}
	ts := strconv.FormatInt(nowFn().UnixMilli(), 10)

	body, err := json.Marshal(sensRequest{
		Type:        "LMS",
		ContentType: "COMM",
		CountryCode: "82",
		From:        s.From,
		Content:     message,
		Messages:    []sensMessage{{To: phone}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.BaseURL+uri, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("x-ncp-apigw-timestamp", ts)
	req.Header.Set("x-ncp-iam-access-key", s.AccessKey)
	req.Header.Set("x-ncp-apigw-signature-v2", s.sign(http.MethodPost, uri, ts))

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sens: status %d: %s", resp.StatusCode, b)
	}
	return nil
}

// sign builds the SENS v2 request signature:
// base64(HMAC-SHA256(secret, "METHOD URI\nTIMESTAMP\nACCESSKEY")).
func (s *SENS) sign(method, uri, ts string) string {
	mac := hmac.New(sha256.New, []byte(s.SecretKey))
	mac.Write([]byte(method + " " + uri + "\n" + ts + "\n" + s.AccessKey))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
