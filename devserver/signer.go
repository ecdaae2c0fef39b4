package devserver

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterationCount = 10000 // PBKDF2 iterations
	keyLength      = 32
)

// signingSalt is fixed so a restarted server still accepts urls it issued
var signingSalt = []byte("partycam-presigned-upload")

// UploadGrant is what a presigned url authorizes: one PUT of one object
type UploadGrant struct {
	FileName    string
	EventID     int
	ContentType string
	Expires     time.Time
}

// Signer issues and verifies HMAC signatures for presigned upload urls
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner derives the HMAC key from secret
func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		key: pbkdf2.Key([]byte(secret), signingSalt, iterationCount, keyLength, sha256.New),
		ttl: ttl,
		now: time.Now,
	}
}

// Grant creates a grant for fileName that expires after the signer's ttl
func (s *Signer) Grant(fileName string, eventID int, contentType string) UploadGrant {
	return UploadGrant{
		FileName:    fileName,
		EventID:     eventID,
		ContentType: contentType,
		Expires:     s.now().Add(s.ttl).Truncate(time.Second),
	}
}

// SignedURL returns the absolute PUT url for grant under baseURL
func (s *Signer) SignedURL(baseURL string, grant UploadGrant) string {
	query := url.Values{}
	query.Set("eventId", strconv.Itoa(grant.EventID))
	query.Set("contentType", grant.ContentType)
	query.Set("expires", strconv.FormatInt(grant.Expires.Unix(), 10))
	query.Set("sig", s.sign(grant))
	return baseURL + "/objects/" + url.PathEscape(grant.FileName) + "?" + query.Encode()
}

// Verify parses the query of a signed url for fileName and checks it
func (s *Signer) Verify(fileName string, query url.Values) (UploadGrant, error) {
	eventID, err := strconv.Atoi(query.Get("eventId"))
	if err != nil {
		return UploadGrant{}, fmt.Errorf("%w: bad eventId", ErrInvalidSignature)
	}
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		return UploadGrant{}, fmt.Errorf("%w: bad expires", ErrInvalidSignature)
	}

	grant := UploadGrant{
		FileName:    fileName,
		EventID:     eventID,
		ContentType: query.Get("contentType"),
		Expires:     time.Unix(expires, 0),
	}

	given, err := hex.DecodeString(query.Get("sig"))
	if err != nil || !hmac.Equal(given, s.mac(grant)) {
		return UploadGrant{}, ErrInvalidSignature
	}
	if !s.now().Before(grant.Expires) {
		return UploadGrant{}, ErrExpired
	}
	return grant, nil
}

func (s *Signer) sign(grant UploadGrant) string {
	return hex.EncodeToString(s.mac(grant))
}

func (s *Signer) mac(grant UploadGrant) []byte {
	h := hmac.New(sha256.New, s.key)
	fmt.Fprintf(h, "PUT\n%s\n%d\n%s\n%d", grant.FileName, grant.EventID, grant.ContentType, grant.Expires.Unix())
	return h.Sum(nil)
}
