package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"gigline/internal/classify"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/engine"
	"gigline/internal/migrate"
)

type matchAll struct{}

func (matchAll) Classify(context.Context, classify.Artifact, classify.MatchContext) (classify.Verdict, error) {
	return classify.Verdict{IsMatch: true, Confidence: 1}, nil
}

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	e.Classifier = matchAll{}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(actorID string) map[string]string {
	return map[string]string{"X-Actor-Id": actorID}
}

func postMission(t *testing.T, srv *testServer, actorID, title string, reward int64) MissionResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/missions", map[string]any{
		"title":         title,
		"category":      "project_work",
		"reward_amount": reward,
	}, asActor(actorID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("post mission status %d: %s", res.StatusCode, string(data))
	}
	var m MissionResponse
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal mission: %v", err)
	}
	return m
}

func TestMissionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	m := postMission(t, srv, "poster", "Ship the widget", 100)

	// The feed hides the poster's own mission but shows it to others.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/missions", nil, asActor("poster"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("feed status %d: %s", res.StatusCode, string(data))
	}
	var feed []MissionResponse
	if err := json.Unmarshal(data, &feed); err != nil {
		t.Fatal(err)
	}
	if len(feed) != 0 {
		t.Fatalf("poster's feed has %d missions, want 0", len(feed))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/missions", nil, asActor("worker"))
	if err := json.Unmarshal(data, &feed); err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].ID != m.ID {
		t.Fatalf("worker feed = %s", string(data))
	}

	// Accept, then submit matching work and get paid.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/accept", nil, asActor("worker"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("accept status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/submission", map[string]any{
		"data_base64": base64.StdEncoding.EncodeToString([]byte("the widget")),
		"mime_type":   "text/plain",
	}, asActor("worker"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	var sub SubmissionResponse
	if err := json.Unmarshal(data, &sub); err != nil {
		t.Fatal(err)
	}
	if !sub.Matched || sub.Amount != 100 {
		t.Fatalf("submission = %+v, want match paying 100", sub)
	}

	// The mission is gone and the worker's account reflects the payout.
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/missions/"+m.ID, nil, asActor("worker"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("retired mission status %d, want 404", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/account", nil, asActor("worker"))
	var acc AccountResponse
	if err := json.Unmarshal(data, &acc); err != nil {
		t.Fatal(err)
	}
	if acc.Balance != 100 || acc.TrustScore != 5 {
		t.Fatalf("account = %+v, want balance 100 trust 5", acc)
	}
}

func TestErrorEnvelopes(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	// No credentials at all.
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/missions", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status %d: %s", res.StatusCode, string(data))
	}

	// Unknown mission maps to the not_found envelope.
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/nope/accept", nil, asActor("worker"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown mission status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("error code = %q, want not_found", envelope.Error.Code)
	}

	// Undercutting the reward maps to invalid_proposal.
	m := postMission(t, srv, "poster", "Underbid me", 100)
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/offers", map[string]any{
		"amount": 50,
	}, asActor("bidder"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("underbid status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "invalid_proposal" {
		t.Fatalf("error code = %q, want invalid_proposal", envelope.Error.Code)
	}

	// The fourth accept maps to capacity_exceeded.
	for i := 0; i < 3; i++ {
		extra := postMission(t, srv, "poster", "Filler", 10)
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+extra.ID+"/accept", nil, asActor("busy"))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("accept %d status %d: %s", i, res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/accept", nil, asActor("busy"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("over-capacity status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "capacity_exceeded" {
		t.Fatalf("error code = %q, want capacity_exceeded", envelope.Error.Code)
	}
}

func TestNegotiationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	m := postMission(t, srv, "poster", "Negotiable gig", 100)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/offers", map[string]any{
		"amount":  120,
		"message": "premium service",
	}, asActor("bidder"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("propose status %d: %s", res.StatusCode, string(data))
	}
	var offer OfferResponse
	if err := json.Unmarshal(data, &offer); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/missions/"+m.ID+"/offers/"+offer.ID, map[string]any{
		"amount": 80,
	}, asActor("bidder"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("renegotiate status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/missions/"+m.ID+"/offers/"+offer.ID+"/accept", nil, asActor("poster"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept offer status %d: %s", res.StatusCode, string(data))
	}
	var assigned MissionResponse
	if err := json.Unmarshal(data, &assigned); err != nil {
		t.Fatal(err)
	}
	if assigned.Status != "assigned" || assigned.AgreedPrice == nil || *assigned.AgreedPrice != 80 {
		t.Fatalf("assigned mission = %s", string(data))
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "jwt-user",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatal(err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/account", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("account via jwt status %d: %s", res.StatusCode, string(data))
	}
	var acc AccountResponse
	if err := json.Unmarshal(data, &acc); err != nil {
		t.Fatal(err)
	}
	if acc.ActorID != "jwt-user" {
		t.Fatalf("actor = %q, want jwt-user", acc.ActorID)
	}

	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/account", nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d, want 401", res.StatusCode)
	}
}
