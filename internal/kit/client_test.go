package kit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/kitsync/internal/config"
	"github.com/ignite/kitsync/internal/domain"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{
		baseURL: server.URL,
		apiKey:  "kit-test-key",
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(config.KitConfig{APIKey: "k", BaseURL: "https://api.kit.com/v4", TimeoutSeconds: 30}, 3)
	assert.Equal(t, "k", client.apiKey)
	assert.Equal(t, "https://api.kit.com/v4", client.baseURL)
}

func TestListTagsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tags", r.URL.Path)
		assert.Equal(t, "kit-test-key", r.Header.Get("X-Kit-Api-Key"))

		switch r.URL.Query().Get("after") {
		case "":
			io.WriteString(w, `{"tags":[{"id":1,"name":"Newsletter"}],"pagination":{"has_next_page":true,"end_cursor":"abc"}}`)
		case "abc":
			io.WriteString(w, `{"tags":[{"id":2,"name":"VIP"}],"pagination":{"has_next_page":false,"end_cursor":"def"}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("after"))
		}
	}))
	defer server.Close()

	tags, err := newTestClient(server).ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Tag{{ID: 1, Name: "Newsletter"}, {ID: 2, Name: "VIP"}}, tags)
}

func TestDirectoryCachesListings(t *testing.T) {
	tagCalls, segmentCalls := 0, 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tags":
			tagCalls++
			io.WriteString(w, `{"tags":[{"id":10,"name":"Newsletter"}],"pagination":{"has_next_page":false}}`)
		case "/segments":
			segmentCalls++
			io.WriteString(w, `{"segments":[{"id":20,"name":"Engaged Readers"}],"pagination":{"has_next_page":false}}`)
		}
	}))
	defer server.Close()

	dir := NewDirectory(newTestClient(server))
	ctx := context.Background()

	id, ok, err := dir.TagID(ctx, "newsletter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)

	_, ok, err = dir.TagID(ctx, "Engaged Readers")
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err = dir.SegmentID(ctx, "ENGAGED READERS")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(20), id)

	_, _, _ = dir.SegmentID(ctx, "other")
	assert.Equal(t, 1, tagCalls)
	assert.Equal(t, 1, segmentCalls)
}

func TestDirectoryReset(t *testing.T) {
	name := "Newsletter"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"tags":[{"id":10,"name":%q}],"pagination":{"has_next_page":false}}`, name)
	}))
	defer server.Close()

	dir := NewDirectory(newTestClient(server))
	ctx := context.Background()

	_, ok, err := dir.TagID(ctx, "Weekly")
	require.NoError(t, err)
	assert.False(t, ok)

	name = "Weekly"
	_, ok, _ = dir.TagID(ctx, "Weekly")
	assert.False(t, ok, "cached listing is reused until Reset")

	dir.Reset()
	id, ok, err := dir.TagID(ctx, "Weekly")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestDirectoryPropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errors":["The access token is invalid"]}`)
	}))
	defer server.Close()

	_, _, err := NewDirectory(newTestClient(server)).TagID(context.Background(), "x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, err.Error(), "access token is invalid")
}

func TestCreateBroadcast(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/broadcasts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"broadcast":{"id":987654,"subject":"Hi"}}`)
	}))
	defer server.Close()

	id, err := newTestClient(server).CreateBroadcast(context.Background(), BroadcastRequest{
		Subject:     "Hi",
		PreviewText: "Preview",
		Content:     "<p>Body</p>",
		SendAt:      time.Date(2025, 3, 10, 22, 30, 0, 750_000_000, time.FixedZone("EDT", -4*3600)),
		Filter: domain.RecipientFilter{
			Kind:       domain.FilterConjunction,
			TagIDs:     []int64{1},
			SegmentIDs: []int64{2, 3},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "987654", id)

	assert.Equal(t, "Hi", got["subject"])
	assert.Equal(t, "Preview", got["preview_text"])
	assert.Equal(t, "<p>Body</p>", got["content"])
	assert.Equal(t, false, got["public"])
	assert.Equal(t, "2025-03-11T02:30:00Z", got["send_at"])

	filter := got["subscriber_filter"].([]interface{})
	require.Len(t, filter, 1)
	group := filter[0].(map[string]interface{})
	assert.Nil(t, group["any"])
	assert.Nil(t, group["none"])
	all := group["all"].([]interface{})
	require.Len(t, all, 2)
	assert.Equal(t, map[string]interface{}{"type": "segment", "ids": []interface{}{2.0, 3.0}}, all[0])
	assert.Equal(t, map[string]interface{}{"type": "tag", "ids": []interface{}{1.0}}, all[1])
}

func TestCreateBroadcastEveryoneOmitsFilter(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"broadcast":{"id":5}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).CreateBroadcast(context.Background(), BroadcastRequest{
		Subject: "All",
		Filter:  domain.RecipientFilter{Kind: domain.FilterEveryone},
	})
	require.NoError(t, err)
	assert.NotContains(t, got, "subscriber_filter")
}

func TestSubscriberFilterTestEmail(t *testing.T) {
	groups := subscriberFilter(domain.RecipientFilter{Kind: domain.FilterTestEmail, Email: "qa@example.com"})
	raw, err := json.Marshal(groups)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"all":[{"type":"email","email":"qa@example.com"}],"any":null,"none":null}]`, string(raw))
}

func TestCreateBroadcastNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(config.KitConfig{BaseURL: server.URL, TimeoutSeconds: 5}, 3)
	_, err := client.CreateBroadcast(context.Background(), everyone("x"))
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCreateBroadcastMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"broadcast":{}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server).CreateBroadcast(context.Background(), everyone("x"))
	assert.ErrorIs(t, err, ErrNoBroadcastID)
}

func everyone(subject string) BroadcastRequest {
	return BroadcastRequest{Subject: subject, Filter: domain.RecipientFilter{Kind: domain.FilterEveryone}}
}

func TestCreateBroadcastRejectsUnresolvedFilter(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.CreateBroadcast(context.Background(), BroadcastRequest{Subject: "x"})
	assert.Error(t, err)
	_, err = client.CreateBroadcast(context.Background(), BroadcastRequest{Subject: "x", Filter: domain.RecipientFilter{Kind: domain.FilterConjunction}})
	assert.Error(t, err)
	_, err = client.CreateBroadcast(context.Background(), BroadcastRequest{Subject: "x", Filter: domain.RecipientFilter{Kind: domain.FilterTestEmail}})
	assert.Error(t, err)
	assert.Zero(t, calls)
}
