package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"

	"github.com/Olegcreabuilder/createshorts-backend/analysis"
	"github.com/Olegcreabuilder/createshorts-backend/auth"
	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

const userJSON = `{"code":0,"msg":"success","data":{
	"user":{"id":"u-901","uniqueId":"lucie_fit","nickname":"Lucie","avatarLarger":"https://cdn.example.com/a.jpg","signature":"Fitness & bien-être","verified":false},
	"stats":{"followerCount":10000,"followingCount":120,"heartCount":250000,"videoCount":87}
}}`

const postsJSON = `{"code":0,"msg":"success","data":{"videos":[
	{"video_id":"7301","title":"Routine du matin","cover":"https://cdn.example.com/c1.jpg","duration":34,"play_count":5000,"digg_count":250,"comment_count":25,"share_count":25,"create_time":1721581200},
	{"video_id":"7302","title":"Recette healthy","cover":"https://cdn.example.com/c2.jpg","duration":41,"play_count":4200,"digg_count":180,"comment_count":12,"share_count":9,"create_time":1721494800}
]}}`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/info", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("unique_id") != "lucie_fit" {
			w.Write([]byte(`{"code":-1,"msg":"user not found","data":null}`))
			return
		}
		w.Write([]byte(userJSON))
	})
	mux.HandleFunc("/api/user/posts", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(postsJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestDB(t *testing.T) *db.CompatDB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	raw.SetMaxOpenConns(1)
	if err := db.RunMigrations(raw, db.DialectSQLite); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db.New(raw, db.DialectSQLite)
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	upstream := newUpstream(t)
	return &Handler{
		DB:      newTestDB(t),
		Fetcher: tiktok.NewFetcher(tiktok.NewTikWM(upstream.URL, upstream.Client())),
		// Unconfigured model client; analysis falls back to defaults.
		AI: &analysis.Client{},
	}
}

func authedRequest(method, target, body, userID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := context.WithValue(r.Context(), auth.UserIDKey, userID)
	return r.WithContext(ctx)
}

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"@Lucie_Fit":                                "lucie_fit",
		"  lucie_fit  ":                             "lucie_fit",
		"https://www.tiktok.com/@lucie_fit":         "lucie_fit",
		"https://www.tiktok.com/@lucie_fit?lang=fr": "lucie_fit",
		"https://www.tiktok.com/@lucie_fit/video/7": "lucie_fit",
		"":                                          "",
	}
	for in, want := range cases {
		if got := NormalizeUsername(in); got != want {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandleConnect_Success(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, authedRequest("POST", "/api/connect-tiktok", `{"username":"@lucie_fit"}`, "u1"))

	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Profile tiktok.Profile `json:"profile"`
		Stats   struct {
			AvgViews       int     `json:"avgViews"`
			EngagementRate float64 `json:"engagementRate"`
		} `json:"stats"`
		Analysis analysis.AccountAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Profile.Username != "lucie_fit" || resp.Profile.Followers != 10000 {
		t.Errorf("profile = %+v", resp.Profile)
	}
	if resp.Stats.AvgViews != 4600 {
		t.Errorf("avgViews = %d", resp.Stats.AvgViews)
	}
	if resp.Analysis.Niche == "" {
		t.Error("analysis fallback missing niche")
	}

	// The account row is persisted with stats JSON.
	var username, statsJSON string
	err := h.DB.QueryRowContext(context.Background(),
		"SELECT tiktok_username, stats FROM connected_accounts WHERE user_id = ?", "u1").
		Scan(&username, &statsJSON)
	if err != nil {
		t.Fatalf("load row: %v", err)
	}
	if username != "lucie_fit" {
		t.Errorf("stored username = %q", username)
	}
	if !strings.Contains(statsJSON, "avgViews") {
		t.Errorf("stats json = %s", statsJSON)
	}
}

func TestHandleConnect_Reconnect_Upserts(t *testing.T) {
	h := newHandler(t)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.HandleConnect(rec, authedRequest("POST", "/api/connect-tiktok", `{"username":"lucie_fit"}`, "u1"))
		if rec.Code != 200 {
			t.Fatalf("connect %d: status %d", i+1, rec.Code)
		}
	}

	var count int
	if err := h.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM connected_accounts WHERE user_id = ?", "u1").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestHandleConnect_UnknownAccount(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, authedRequest("POST", "/api/connect-tiktok", `{"username":"ghost"}`, "u1"))
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleConnect_MissingUsername(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, authedRequest("POST", "/api/connect-tiktok", `{"username":"  "}`, "u1"))
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleGetAccount_RoundTrip(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.HandleConnect(rec, authedRequest("POST", "/api/connect-tiktok", `{"username":"lucie_fit"}`, "u1"))
	if rec.Code != 200 {
		t.Fatalf("connect: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleGetAccount(rec, authedRequest("GET", "/api/account", "", "u1"))
	if rec.Code != 200 {
		t.Fatalf("get: status %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Profile  tiktok.Profile           `json:"profile"`
		Analysis analysis.AccountAnalysis `json:"analysis"`
		LastSync string                   `json:"last_sync"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Profile.Username != "lucie_fit" {
		t.Errorf("profile = %+v", resp.Profile)
	}
	if len(resp.Analysis.Recommendations) == 0 {
		t.Error("stored recommendations lost")
	}
	if resp.LastSync == "" {
		t.Error("missing last_sync")
	}
}

func TestHandleGetAccount_NotConnected(t *testing.T) {
	h := newHandler(t)

	rec := httptest.NewRecorder()
	h.HandleGetAccount(rec, authedRequest("GET", "/api/account", "", "u-nobody"))
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleTestLookup(t *testing.T) {
	h := newHandler(t)

	r := httptest.NewRequest("GET", "/api/test-tiktok/lucie_fit", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("username", "lucie_fit")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.HandleTestLookup(rec, r)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		VideosFound int `json:"videos_found"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.VideosFound != 2 {
		t.Errorf("videos_found = %d", resp.VideosFound)
	}

	// Nothing is persisted by a test lookup.
	var count int
	if err := h.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM connected_accounts").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("persisted rows = %d", count)
	}
}
