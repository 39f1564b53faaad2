package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const rawMessage = "Subject: Pedido de exames\r\nFrom: recepcao@clinica.com.br\r\n\r\nHemograma completo\r\n"

func fakeGmail(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{{"id": "m1"}, {"id": "m2"}},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		switch r.URL.Query().Get("format") {
		case "raw":
			raw := ""
			if id == "m1" {
				raw = base64.RawURLEncoding.EncodeToString([]byte(rawMessage))
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": id, "raw": raw})
		case "metadata":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": id,
				"payload": map[string]any{"headers": []map[string]string{
					{"name": "Subject", "value": "Pedido de exames"},
					{"name": "From", "value": "recepcao@clinica.com.br"},
					{"name": "Date", "value": "Mon, 09 Mar 2026 10:15:00 -0300"},
					{"name": "Message-ID", "value": "<req-1@clinica.com.br>"},
				}},
			})
		default:
			http.Error(w, "bad format", http.StatusBadRequest)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchInbox(t *testing.T) {
	srv := fakeGmail(t)
	c, err := NewConnectorWithOptions(context.Background(), nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	msgs, err := c.FetchInbox(context.Background(), "INBOX", 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "gmail", msgs[0].Provider)
	assert.Equal(t, "<req-1@clinica.com.br>", msgs[0].MessageID)
	assert.Equal(t, "2026-03-09T13:15:00Z", msgs[0].ReceivedAt)
	assert.Equal(t, rawMessage, string(msgs[0].Raw))
}

func TestParseMailDate(t *testing.T) {
	got, err := parseMailDate("Mon, 9 Mar 2026 10:15:00 -0300 (BRT)")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2026, 3, 9, 13, 15, 0, 0, time.UTC)))

	_, err = parseMailDate("ontem")
	assert.Error(t, err)
}

func TestDecodeBase64URLPadded(t *testing.T) {
	got, err := decodeBase64URL(base64.URLEncoding.EncodeToString([]byte("ab")))
	require.NoError(t, err)
	assert.Equal(t, "ab", string(got))
}
