package gcalstats

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
)

// GoogleScopes grants read access to calendars and the user's profile.
var GoogleScopes = []string{
	calendar.CalendarReadonlyScope,
	oauth2api.UserinfoProfileScope,
	oauth2api.UserinfoEmailScope,
}

// NewOAuthConfig builds the installed-app OAuth configuration for Google.
func NewOAuthConfig(config *Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  config.RedirectURL,
		Scopes:       GoogleScopes,
	}
}

// CodePrompt shows the consent URL to the user and returns the authorization
// code they paste back.
type CodePrompt func(ctx context.Context, authURL string) (string, error)

// ReaderCodePrompt prints authURL to out and reads the code from the next line of in.
func ReaderCodePrompt(in io.Reader, out io.Writer) CodePrompt {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, authURL string) (string, error) {
		fmt.Fprintf(out, "Go to the following link in your browser then type the "+
			"authorization code: \n%v\n", authURL)

		type result struct {
			code string
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			line, err := reader.ReadString('\n')
			ch <- result{code: strings.TrimSpace(line), err: err}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-ch:
			if r.code == "" {
				if r.err != nil {
					return "", fmt.Errorf("unable to read authorization code: %w", r.err)
				}
				return "", fmt.Errorf("empty authorization code")
			}
			return r.code, nil
		}
	}
}
