package qrcode_test

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dmitrymomot/leveledu/pkg/qrcode"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("rejects blank content", func(t *testing.T) {
		t.Parallel()
		for _, content := range []string{"", "   \t\n"} {
			got, err := qrcode.Generate(content, 128)
			require.ErrorIs(t, err, qrcode.ErrEmptyContent)
			assert.Nil(t, got)
		}
	})

	t.Run("produces png of requested size", func(t *testing.T) {
		t.Parallel()
		data, err := qrcode.Generate("hello", 128)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 128, img.Bounds().Dx())
	})

	t.Run("falls back to default size", func(t *testing.T) {
		t.Parallel()
		data, err := qrcode.Generate("hello", -1)
		require.NoError(t, err)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, qrcode.DefaultSize, img.Bounds().Dx())
	})
}

func TestGenerateDataURI(t *testing.T) {
	t.Parallel()

	uri, err := qrcode.GenerateDataURI("hello", 0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = qrcode.GenerateDataURI(" ", 0)
	require.ErrorIs(t, err, qrcode.ErrEmptyContent)
}

func TestStudentBadge(t *testing.T) {
	t.Parallel()

	userID, tenantID := bson.NewObjectID(), bson.NewObjectID()

	t.Run("payload round trip", func(t *testing.T) {
		t.Parallel()
		payload := qrcode.BadgePayload(userID, tenantID)
		assert.Equal(t, userID.Hex()+"|"+tenantID.Hex(), payload)

		gotUser, gotTenant, err := qrcode.ParseBadge(payload)
		require.NoError(t, err)
		assert.Equal(t, userID, gotUser)
		assert.Equal(t, tenantID, gotTenant)
	})

	t.Run("renders data uri", func(t *testing.T) {
		t.Parallel()
		uri, err := qrcode.StudentBadge(userID, tenantID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		t.Parallel()
		for _, payload := range []string{"", "abc", "abc|def", userID.Hex() + "|nope"} {
			_, _, err := qrcode.ParseBadge(payload)
			assert.ErrorIs(t, err, qrcode.ErrInvalidBadge, payload)
		}
	})
}
