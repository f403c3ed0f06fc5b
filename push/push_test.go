package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"kinship/models"
	"kinship/services"
)

func subscription(t *testing.T, endpoint string) *models.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &models.PushSubscription{
		ID:       primitive.NewObjectID(),
		UserID:   primitive.NewObjectID(),
		Endpoint: endpoint,
		Keys: models.PushKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newSender(t *testing.T) *Sender {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	s, err := NewSender(pub, priv, "mailto:ops@example.com", zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestSendStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"created", http.StatusCreated, func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"gone", http.StatusGone, func(t *testing.T, err error) { assert.ErrorIs(t, err, services.ErrSubscriptionGone) }},
		{"not found", http.StatusNotFound, func(t *testing.T, err error) { assert.ErrorIs(t, err, services.ErrSubscriptionGone) }},
		{"server error", http.StatusInternalServerError, func(t *testing.T, err error) {
			require.Error(t, err)
			assert.NotErrorIs(t, err, services.ErrSubscriptionGone)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEncoding string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotEncoding = r.Header.Get("Content-Encoding")
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			err := newSender(t).Send(context.Background(), subscription(t, srv.URL), []byte(`{"title":"hi"}`))
			tt.check(t, err)
			assert.Equal(t, "aes128gcm", gotEncoding)
		})
	}
}

func TestNewSenderGeneratesMissingKeys(t *testing.T) {
	s, err := NewSender("", "", "mailto:ops@example.com", zap.NewNop())
	require.NoError(t, err)
	assert.NotEmpty(t, s.PublicKey())
}
