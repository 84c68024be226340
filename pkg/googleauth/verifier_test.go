package googleauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"aud": "client-123", "email": "jane@example.com", "email_verified": "true", "name": "Jane Doe", "picture": "https://img.example/jane.png"}`,
		},
		{
			name:    "rejected_token",
			status:  http.StatusBadRequest,
			body:    `{"error": "invalid_token"}`,
			wantErr: "token rejected",
		},
		{
			name:    "wrong_audience",
			status:  http.StatusOK,
			body:    `{"aud": "other-client", "email": "jane@example.com", "email_verified": "true"}`,
			wantErr: "audience mismatch",
		},
		{
			name:    "unverified_email",
			status:  http.StatusOK,
			body:    `{"aud": "client-123", "email": "jane@example.com", "email_verified": "false"}`,
			wantErr: "email not verified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/tokeninfo", r.URL.Path)
				assert.Equal(t, "raw-id-token", r.URL.Query().Get("id_token"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			v := NewVerifier("client-123", WithBaseURL(srv.URL))
			identity, err := v.Verify(context.Background(), "raw-id-token")

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, identity)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", identity.Email)
			assert.Equal(t, "Jane Doe", identity.Name)
			assert.Equal(t, "https://img.example/jane.png", identity.PictureURL)
		})
	}
}

func TestVerifyRequiresToken(t *testing.T) {
	v := NewVerifier("client-123")
	_, err := v.Verify(context.Background(), "")
	assert.Error(t, err)
}
