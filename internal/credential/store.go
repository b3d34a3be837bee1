package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// Store persists a single credential.
type Store interface {
	Load() (*Credential, error)
	Save(cred *Credential) error
}

// FileStore keeps the credential in an "authorized user" JSON file, the same
// shape Google's client libraries write, so existing token files keep working.
type FileStore struct {
	Path string
}

type authorizedUser struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`
}

// Load reads the token file. A missing file yields ErrNoCredential.
func (s FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, s.Path, err)
	}
	var doc authorizedUser
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrStorage, s.Path, err)
	}
	tok := &oauth2.Token{
		AccessToken:  doc.Token,
		RefreshToken: doc.RefreshToken,
		TokenType:    doc.TokenType,
	}
	if doc.Expiry != "" {
		expiry, err := time.Parse(time.RFC3339Nano, doc.Expiry)
		if err != nil {
			return nil, fmt.Errorf("%w: parse expiry in %s: %w", ErrStorage, s.Path, err)
		}
		tok.Expiry = expiry.UTC()
	}
	return &Credential{
		Token:        tok,
		ClientID:     doc.ClientID,
		ClientSecret: doc.ClientSecret,
		TokenURI:     doc.TokenURI,
		Scopes:       doc.Scopes,
	}, nil
}

// Save overwrites the token file with cred. The write goes through a temp file
// in the same directory so readers never observe a partial file.
func (s FileStore) Save(cred *Credential) error {
	if cred == nil || cred.Token == nil {
		return fmt.Errorf("%w: nothing to save", ErrStorage)
	}
	doc := authorizedUser{
		Token:        cred.Token.AccessToken,
		RefreshToken: cred.Token.RefreshToken,
		TokenType:    cred.Token.TokenType,
		TokenURI:     cred.TokenURI,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       cred.Scopes,
	}
	if !cred.Token.Expiry.IsZero() {
		doc.Expiry = cred.Token.Expiry.UTC().Format(time.RFC3339)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode token: %w", ErrStorage, err)
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrStorage, dir, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod %s: %w", ErrStorage, tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStorage, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorage, tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrStorage, s.Path, err)
	}
	return nil
}

var _ Store = FileStore{}
