package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
	"time"
)

// Env holds the target server and an ID token of an allow-listed owner.
type Env struct {
	AppURL string
	Token  string
	Client *http.Client
}

// LoadEnv skips the test unless APP_URL and OWNER_TOKEN are set.
func LoadEnv(t *testing.T) *Env {
	t.Helper()
	appURL := os.Getenv("APP_URL")
	token := os.Getenv("OWNER_TOKEN")
	if appURL == "" || token == "" {
		t.Skip("APP_URL and OWNER_TOKEN are required for integration tests")
	}
	return &Env{AppURL: appURL, Token: token, Client: &http.Client{Timeout: 30 * time.Second}}
}

// TestSlug returns a listing slug that no other run uses.
func TestSlug() string {
	return fmt.Sprintf("it-%d", time.Now().UnixNano())
}

// Do sends the request with the owner token unless anonymous is set.
func (e *Env) Do(req *http.Request, anonymous bool) (*http.Response, []byte, error) {
	if !anonymous {
		req.Header.Set("Authorization", "Bearer "+e.Token)
	}
	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return resp, body, err
}

// JSON sends v as the JSON body of an owner request.
func (e *Env) JSON(method, path string, v interface{}) (*http.Response, []byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(method, e.AppURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.Do(req, false)
}

// Upload posts files to the batch upload endpoint.
func (e *Env) Upload(slug, folder, space string, files map[string][]byte) (*http.Response, []byte, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	fields := map[string]string{"slug": slug, "folder": folder, "space": space}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, nil, err
		}
	}
	for name, content := range files {
		part, err := writer.CreateFormFile("file", name)
		if err != nil {
			return nil, nil, err
		}
		if _, err := part.Write(content); err != nil {
			return nil, nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequest(http.MethodPost, e.AppURL+"/api/admin/upload/batch", body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.Do(req, false)
}
