package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// OAuth2Credentials mirrors the client section of a Google Cloud Console
// credentials.json.
type OAuth2Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
}

// GoogleCredentialsFile supports both the "installed" and "web" layouts of
// credentials.json.
type GoogleCredentialsFile struct {
	Installed *OAuth2Credentials `json:"installed,omitempty"`
	Web       *OAuth2Credentials `json:"web,omitempty"`
}

// SheetsMirror appends one spreadsheet row per payload via the Google
// Sheets API.
type SheetsMirror struct {
	service       *sheets.Service
	spreadsheetID string
	writeRange    string
}

// NewSheets builds a mirror from Cloud Console credentials JSON plus a
// pre-obtained refresh token; the oauth2 client refreshes access tokens on
// its own.
func NewSheets(ctx context.Context, credentialsJSON, refreshToken, spreadsheetID, writeRange string) (*SheetsMirror, error) {
	credentials, err := parseGoogleCredentials([]byte(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth2 credentials: %w", err)
	}

	config := &oauth2.Config{
		ClientID:     credentials.ClientID,
		ClientSecret: credentials.ClientSecret,
		Scopes:       []string{sheets.SpreadsheetsScope},
		Endpoint:     google.Endpoint,
	}
	httpClient := config.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})

	service, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsMirror{
		service:       service,
		spreadsheetID: spreadsheetID,
		writeRange:    writeRange,
	}, nil
}

func (m *SheetsMirror) Send(ctx context.Context, p Payload) error {
	row := make([]interface{}, 0, len(p.Row)+1)
	row = append(row, p.Kind)
	for _, field := range p.Row {
		row = append(row, field)
	}

	_, err := m.service.Spreadsheets.Values.
		Append(m.spreadsheetID, m.writeRange, &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets append: %w", err)
	}
	return nil
}

func parseGoogleCredentials(data []byte) (*OAuth2Credentials, error) {
	var file GoogleCredentialsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	switch {
	case file.Installed != nil:
		return file.Installed, nil
	case file.Web != nil:
		return file.Web, nil
	}
	// Tolerate a bare credentials object without the wrapper
	var bare OAuth2Credentials
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, err
	}
	if bare.ClientID == "" {
		return nil, fmt.Errorf("credentials JSON has no installed/web section")
	}
	return &bare, nil
}
