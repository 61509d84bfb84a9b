package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// RecaptchaVerifyURL is Google's verification endpoint
const RecaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// RecaptchaVerifier validates reCAPTCHA responses.
type RecaptchaVerifier struct {
	secret   string
	endpoint string
	client   *http.Client
}

// NewRecaptchaVerifier returns a verifier, an empty secret disables checks.
func NewRecaptchaVerifier(secret string, client *http.Client) CaptchaVerifier {
	if secret == "" {
		return noopCaptcha{}
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RecaptchaVerifier{secret: secret, endpoint: RecaptchaVerifyURL, client: client}
}

// WithEndpoint overrides the verification URL
func (v *RecaptchaVerifier) WithEndpoint(endpoint string) *RecaptchaVerifier {
	v.endpoint = endpoint
	return v
}

type recaptchaResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, response string) error {
	if strings.TrimSpace(response) == "" {
		return ErrCaptchaFailed
	}

	form := url.Values{"secret": {v.secret}, "response": {response}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build captcha request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "captcha verification unavailable")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return goerrors.New(fmt.Sprintf("captcha verification returned %d", res.StatusCode), goerrors.CategoryExternal)
	}

	var out recaptchaResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to decode captcha response")
	}

	if !out.Success {
		return fmt.Errorf("%s: %w", strings.Join(out.ErrorCodes, ","), ErrCaptchaFailed)
	}
	return nil
}
