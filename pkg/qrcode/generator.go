package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var (
	ErrEmptyContent     = errors.New("qrcode: content cannot be empty")
	ErrFailedToGenerate = errors.New("qrcode: failed to generate")
	ErrInvalidBadge     = errors.New("qrcode: invalid badge payload")
)

const (
	DefaultSize    = 256
	badgeSeparator = "|"
	dataURIPrefix  = "data:image/png;base64,"
)

// Generate encodes content as a PNG of size pixels. A non-positive size
// uses DefaultSize.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrFailedToGenerate, err)
	}
	return png, nil
}

// GenerateDataURI returns the PNG as a base64 data URI.
func GenerateDataURI(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// BadgePayload is the text encoded in a student badge.
func BadgePayload(userID, tenantID bson.ObjectID) string {
	return userID.Hex() + badgeSeparator + tenantID.Hex()
}

// StudentBadge renders the login badge of a student as a data URI.
func StudentBadge(userID, tenantID bson.ObjectID) (string, error) {
	return GenerateDataURI(BadgePayload(userID, tenantID), DefaultSize)
}

// ParseBadge splits a scanned badge payload into user and tenant ids.
func ParseBadge(payload string) (userID, tenantID bson.ObjectID, err error) {
	user, tenant, ok := strings.Cut(strings.TrimSpace(payload), badgeSeparator)
	if !ok {
		return bson.NilObjectID, bson.NilObjectID, ErrInvalidBadge
	}
	if userID, err = bson.ObjectIDFromHex(user); err != nil {
		return bson.NilObjectID, bson.NilObjectID, errors.Join(ErrInvalidBadge, err)
	}
	if tenantID, err = bson.ObjectIDFromHex(tenant); err != nil {
		return bson.NilObjectID, bson.NilObjectID, errors.Join(ErrInvalidBadge, err)
	}
	return userID, tenantID, nil
}
