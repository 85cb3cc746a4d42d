package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/handler"
	"github.com/festival-platform/program-scheduler/internal/model"
	"github.com/festival-platform/program-scheduler/internal/router"
	"github.com/festival-platform/program-scheduler/internal/scheduler"
	"github.com/festival-platform/program-scheduler/internal/testfixtures"
	"github.com/festival-platform/program-scheduler/internal/utils"
)

const jwtSecret = "handler-test-secret"

var at = testfixtures.At

type invalidations struct {
	mu  sync.Mutex
	ids []uint64
	err error
}

func (i *invalidations) Invalidate(_ context.Context, festivalID uint64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, festivalID)
	return i.err
}

func (i *invalidations) seen() []uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]uint64(nil), i.ids...)
}

type api struct {
	t     *testing.T
	e     *echo.Echo
	h     *testfixtures.SQLiteHarness
	cache *invalidations
	token string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	h := testfixtures.NewSQLiteHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := scheduler.NewService(scheduler.Deps{
		DB:           h.DB,
		Festivals:    h.Festivals,
		Stages:       h.Stages,
		Artists:      h.Artists,
		Performances: h.Performances,
		Logger:       logger,
	})
	lineups := scheduler.NewLineupService(h.Festivals, h.Stages, h.Performances, scheduler.LineupConfig{}, logger)
	cache := &invalidations{}

	catalog := handler.NewCatalogHandler(h.Festivals, h.Stages, h.Artists, h.Performances, cache)
	program := handler.NewProgramHandler(svc)

	e := echo.New()
	router.RegisterRoutes(e, &handler.HealthHandler{DB: h.DB})
	router.RegisterPublic(e, router.Public{Catalog: catalog, Program: program, Lineup: handler.NewLineupHandler(lineups)})
	router.RegisterAdmin(e, catalog, program, jwtSecret)

	tok, err := utils.NewAccessToken(jwtSecret, "ops-1", utils.RoleOrganizer, time.Hour)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return &api{t: t, e: e, h: h, cache: cache, token: tok.Token}
}

// do sends a request and decodes a JSON response into out when out is non-nil.
func (a *api) do(method, target string, body any, out any) int {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if len(target) > len("/v1/admin") && target[:len("/v1/admin")] == "/v1/admin" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+a.token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type errorBody struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Conflicts []uint64 `json:"conflicts"`
}

func rfc(t time.Time) string { return t.Format(time.RFC3339) }

func id(v uint64) string { return strconv.FormatUint(v, 10) }

func TestPerformanceLifecycle(t *testing.T) {
	a := newAPI(t)
	f := a.h.Festival(t, "Summer Sound")
	main := a.h.Stage(t, f.ID, "Main")
	tent := a.h.Stage(t, f.ID, "Tent")
	daft := a.h.Artist(t, "Daft Punk", "electronic")
	justice := a.h.Artist(t, "Justice", "electronic")

	createURL := "/v1/admin/festivals/" + id(f.ID) + "/performances"
	var created model.PerformanceDetail
	status := a.do(http.MethodPost, createURL, map[string]any{
		"artistId": daft.ID, "stageId": main.ID,
		"startsAt": rfc(at(20, 0)), "endsAt": rfc(at(21, 0)),
		"description": "headline set",
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	if created.ID == 0 || created.Artist.Name != "Daft Punk" || created.Stage.Name != "Main" || created.Stage.FestivalID != f.ID {
		t.Fatalf("created = %+v", created)
	}

	var eb errorBody
	status = a.do(http.MethodPost, createURL, map[string]any{
		"artistId": justice.ID, "stageId": main.ID,
		"startsAt": rfc(at(20, 30)), "endsAt": rfc(at(21, 30)),
	}, &eb)
	if status != http.StatusConflict || eb.Error != "stage_conflict" || len(eb.Conflicts) != 1 || eb.Conflicts[0] != created.ID {
		t.Fatalf("stage clash = %d %+v", status, eb)
	}

	eb = errorBody{}
	status = a.do(http.MethodPost, createURL, map[string]any{
		"artistId": daft.ID, "stageId": tent.ID,
		"startsAt": rfc(at(20, 59)), "endsAt": rfc(at(22, 0)),
	}, &eb)
	if status != http.StatusConflict || eb.Error != "artist_conflict" {
		t.Fatalf("artist clash = %d %+v", status, eb)
	}

	// back to back on the same stage is fine
	var next model.PerformanceDetail
	if status := a.do(http.MethodPost, createURL, map[string]any{
		"artistId": justice.ID, "stageId": main.ID,
		"startsAt": rfc(at(21, 0)), "endsAt": rfc(at(22, 0)),
	}, &next); status != http.StatusCreated {
		t.Fatalf("back-to-back status = %d", status)
	}

	var cancelled model.PerformanceDetail
	for range 2 {
		if status := a.do(http.MethodPost, "/v1/admin/performances/"+id(created.ID)+"/cancel", nil, &cancelled); status != http.StatusOK {
			t.Fatalf("cancel status = %d", status)
		}
		if !cancelled.IsCancelled {
			t.Fatal("performance not cancelled")
		}
	}

	// the slot is free again once the original is cancelled
	if status := a.do(http.MethodPost, createURL, map[string]any{
		"artistId": daft.ID, "stageId": tent.ID,
		"startsAt": rfc(at(20, 0)), "endsAt": rfc(at(21, 0)),
	}, nil); status != http.StatusCreated {
		t.Fatalf("rebook status = %d", status)
	}

	var updated model.PerformanceDetail
	status = a.do(http.MethodPatch, "/v1/admin/performances/"+id(next.ID), map[string]any{
		"endsAt": rfc(at(22, 30)), "description": "",
	}, &updated)
	if status != http.StatusOK || !updated.EndsAt.Equal(at(22, 30)) || updated.Description != nil {
		t.Fatalf("update = %d %+v", status, updated)
	}

	var got model.PerformanceDetail
	if status := a.do(http.MethodGet, "/v1/performances/"+id(next.ID), nil, &got); status != http.StatusOK || got.ID != next.ID {
		t.Fatalf("get = %d %+v", status, got)
	}

	if status := a.do(http.MethodDelete, "/v1/admin/performances/"+id(next.ID), nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete status = %d", status)
	}
	eb = errorBody{}
	if status := a.do(http.MethodGet, "/v1/performances/"+id(next.ID), nil, &eb); status != http.StatusNotFound || eb.Error != "not_found" {
		t.Fatalf("get deleted = %d %+v", status, eb)
	}
}

func TestCreatePerformanceValidation(t *testing.T) {
	a := newAPI(t)
	f := a.h.Festival(t, "Validation Fest")
	other := a.h.Festival(t, "Other Fest")
	stage := a.h.Stage(t, f.ID, "Main")
	foreign := a.h.Stage(t, other.ID, "Foreign")
	artist := a.h.Artist(t, "Solo", "pop")

	cases := []struct {
		name       string
		festivalID string
		body       map[string]any
		status     int
		code       string
	}{
		{"unknown festival", "9999", map[string]any{"artistId": artist.ID, "stageId": stage.ID, "startsAt": rfc(at(10, 0)), "endsAt": rfc(at(11, 0))}, http.StatusNotFound, "not_found"},
		{"unknown artist", id(f.ID), map[string]any{"artistId": 9999, "stageId": stage.ID, "startsAt": rfc(at(10, 0)), "endsAt": rfc(at(11, 0))}, http.StatusNotFound, "not_found"},
		{"unknown stage", id(f.ID), map[string]any{"artistId": artist.ID, "stageId": 9999, "startsAt": rfc(at(10, 0)), "endsAt": rfc(at(11, 0))}, http.StatusNotFound, "not_found"},
		{"stage of another festival", id(f.ID), map[string]any{"artistId": artist.ID, "stageId": foreign.ID, "startsAt": rfc(at(10, 0)), "endsAt": rfc(at(11, 0))}, http.StatusBadRequest, "invalid_reference"},
		{"end before start", id(f.ID), map[string]any{"artistId": artist.ID, "stageId": stage.ID, "startsAt": rfc(at(11, 0)), "endsAt": rfc(at(10, 0))}, http.StatusBadRequest, "invalid_time_range"},
		{"zero length", id(f.ID), map[string]any{"artistId": artist.ID, "stageId": stage.ID, "startsAt": rfc(at(11, 0)), "endsAt": rfc(at(11, 0))}, http.StatusBadRequest, "invalid_time_range"},
		{"bad timestamp", id(f.ID), map[string]any{"artistId": artist.ID, "stageId": stage.ID, "startsAt": "tomorrow", "endsAt": rfc(at(11, 0))}, http.StatusBadRequest, "bad_request"},
		{"missing ids", id(f.ID), map[string]any{"startsAt": rfc(at(10, 0)), "endsAt": rfc(at(11, 0))}, http.StatusBadRequest, "bad_request"},
		{"bad path id", "abc", map[string]any{}, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var eb errorBody
			status := a.do(http.MethodPost, "/v1/admin/festivals/"+tc.festivalID+"/performances", tc.body, &eb)
			if status != tc.status || eb.Error != tc.code {
				t.Fatalf("got %d %+v, want %d %s", status, eb, tc.status, tc.code)
			}
		})
	}
	if n := a.h.CountPerformances(t); n != 0 {
		t.Fatalf("%d performances written by failed requests", n)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	a := newAPI(t)
	f := a.h.Festival(t, "Locked Fest")

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/festivals/"+id(f.ID)+"/performances", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestLineupEndpoint(t *testing.T) {
	a := newAPI(t)
	f := a.h.Festival(t, "Lineup Fest")
	main := a.h.Stage(t, f.ID, "Main")
	tent := a.h.Stage(t, f.ID, "Tent")
	x := a.h.Artist(t, "X", "rock")
	y := a.h.Artist(t, "Y", "rock")
	a.h.Performance(t, x.ID, main.ID, at(18, 0), at(19, 0), false)
	a.h.Performance(t, y.ID, tent.ID, at(18, 0), at(19, 0), false)
	a.h.Performance(t, y.ID, main.ID, at(20, 0), at(21, 0), true)

	var page scheduler.Lineup
	if status := a.do(http.MethodGet, "/v1/festivals/"+id(f.ID)+"/lineup", nil, &page); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if page.Total != 2 || page.Page != 1 || page.Limit != 50 || page.TotalPages != 1 || page.FestivalID != f.ID {
		t.Fatalf("meta = %+v", page)
	}
	if page.Data[0].Stage.Name != "Main" || page.Data[1].Stage.Name != "Tent" {
		t.Fatalf("order = %s, %s", page.Data[0].Stage.Name, page.Data[1].Stage.Name)
	}

	page = scheduler.Lineup{}
	q := "?stageId=" + id(main.ID) + "&includeCancelled=true&date=2025-07-12&limit=1&page=2"
	if status := a.do(http.MethodGet, "/v1/festivals/"+id(f.ID)+"/lineup"+q, nil, &page); status != http.StatusOK {
		t.Fatalf("filtered status = %d", status)
	}
	if page.Total != 2 || page.TotalPages != 2 || len(page.Data) != 1 || !page.Data[0].IsCancelled {
		t.Fatalf("filtered page = %+v", page)
	}

	bad := map[string]string{
		"page zero":        "?page=0",
		"negative limit":   "?limit=-5",
		"non numeric page": "?page=two",
		"bad bool":         "?includeCancelled=maybe",
		"bad date":         "?date=12-07-2025",
		"bad stage":        "?stageId=x",
	}
	for name, q := range bad {
		t.Run(name, func(t *testing.T) {
			if status := a.do(http.MethodGet, "/v1/festivals/"+id(f.ID)+"/lineup"+q, nil, nil); status != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", status)
			}
		})
	}

	var eb errorBody
	if status := a.do(http.MethodGet, "/v1/festivals/9999/lineup", nil, &eb); status != http.StatusNotFound {
		t.Fatalf("unknown festival status = %d", status)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	a := newAPI(t)

	var f model.Festival
	status := a.do(http.MethodPost, "/v1/admin/festivals", map[string]any{
		"name": "Night & Day 2025", "startsAt": rfc(at(0, 0)), "endsAt": rfc(at(72, 0)),
	}, &f)
	if status != http.StatusCreated || f.Slug != "night-day-2025" {
		t.Fatalf("create festival = %d %+v", status, f)
	}
	if status := a.do(http.MethodPost, "/v1/admin/festivals", map[string]any{
		"name": "Again", "slug": "night-day-2025", "startsAt": rfc(at(0, 0)), "endsAt": rfc(at(1, 0)),
	}, nil); status != http.StatusConflict {
		t.Fatalf("duplicate slug status = %d", status)
	}
	var eb errorBody
	if status := a.do(http.MethodPost, "/v1/admin/festivals", map[string]any{
		"name": "Backwards", "startsAt": rfc(at(5, 0)), "endsAt": rfc(at(1, 0)),
	}, &eb); status != http.StatusBadRequest || eb.Error != "invalid_time_range" {
		t.Fatalf("backwards window = %d %+v", status, eb)
	}

	var stage model.Stage
	if status := a.do(http.MethodPost, "/v1/admin/festivals/"+id(f.ID)+"/stages", map[string]any{"name": "Main", "capacity": 5000}, &stage); status != http.StatusCreated {
		t.Fatalf("create stage status = %d", status)
	}
	if status := a.do(http.MethodPost, "/v1/admin/festivals/"+id(f.ID)+"/stages", map[string]any{"name": "Main"}, nil); status != http.StatusConflict {
		t.Fatalf("duplicate stage status = %d", status)
	}
	if status := a.do(http.MethodPost, "/v1/admin/festivals/9999/stages", map[string]any{"name": "Ghost"}, nil); status != http.StatusNotFound {
		t.Fatalf("stage for unknown festival status = %d", status)
	}

	var artist model.Artist
	if status := a.do(http.MethodPost, "/v1/admin/artists", map[string]any{
		"name": "Röyksopp", "genre": "electronic", "imageUrl": "https://img.example/r.png",
		"links": map[string]string{"website": "https://royksopp.example"},
	}, &artist); status != http.StatusCreated {
		t.Fatalf("create artist status = %d", status)
	}
	var fetched model.Artist
	if status := a.do(http.MethodGet, "/v1/artists/"+id(artist.ID), nil, &fetched); status != http.StatusOK || fetched.Links["website"] != "https://royksopp.example" {
		t.Fatalf("get artist = %d %+v", status, fetched)
	}

	a.h.Performance(t, artist.ID, stage.ID, at(20, 0), at(21, 0), true)

	if status := a.do(http.MethodDelete, "/v1/admin/stages/"+id(stage.ID), nil, nil); status != http.StatusConflict {
		t.Fatalf("delete referenced stage status = %d", status)
	}
	if status := a.do(http.MethodDelete, "/v1/admin/artists/"+id(artist.ID), nil, nil); status != http.StatusConflict {
		t.Fatalf("delete referenced artist status = %d", status)
	}

	var list struct {
		Items []model.PerformanceDetail `json:"items"`
	}
	if status := a.do(http.MethodGet, "/v1/artists/"+id(artist.ID)+"/performances", nil, &list); status != http.StatusOK || len(list.Items) != 0 {
		t.Fatalf("artist performances = %d %d", status, len(list.Items))
	}
	if status := a.do(http.MethodGet, "/v1/artists/"+id(artist.ID)+"/performances?includeCancelled=true", nil, &list); status != http.StatusOK || len(list.Items) != 1 {
		t.Fatalf("artist performances incl. cancelled = %d %d", status, len(list.Items))
	}

	if status := a.do(http.MethodGet, "/v1/stages/"+id(stage.ID)+"/performances", nil, &list); status != http.StatusOK || len(list.Items) != 0 {
		t.Fatalf("stage performances = %d %d", status, len(list.Items))
	}
	if status := a.do(http.MethodGet, "/v1/stages/"+id(stage.ID)+"/performances?includeCancelled=true", nil, &list); status != http.StatusOK || len(list.Items) != 1 || list.Items[0].Stage.Name != "Main" {
		t.Fatalf("stage performances incl. cancelled = %d %+v", status, list.Items)
	}
	if status := a.do(http.MethodGet, "/v1/stages/"+id(stage.ID)+"/performances?includeCancelled=maybe", nil, nil); status != http.StatusBadRequest {
		t.Fatalf("bad includeCancelled status = %d", status)
	}
	if status := a.do(http.MethodGet, "/v1/stages/9999/performances", nil, nil); status != http.StatusNotFound {
		t.Fatalf("unknown stage performances status = %d", status)
	}

	empty := a.h.Stage(t, f.ID, "Empty")
	if status := a.do(http.MethodDelete, "/v1/admin/stages/"+id(empty.ID), nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete free stage status = %d", status)
	}
	if status := a.do(http.MethodDelete, "/v1/admin/stages/"+id(empty.ID), nil, nil); status != http.StatusNotFound {
		t.Fatalf("delete missing stage status = %d", status)
	}

	var stages struct {
		Items []model.Stage `json:"items"`
	}
	if status := a.do(http.MethodGet, "/v1/festivals/"+id(f.ID)+"/stages", nil, &stages); status != http.StatusOK || len(stages.Items) != 1 {
		t.Fatalf("stages = %d %+v", status, stages.Items)
	}

	// stage create and delete both drop the festival's cached pages
	if got := a.cache.seen(); len(got) != 2 || got[0] != f.ID || got[1] != f.ID {
		t.Fatalf("invalidations = %v", got)
	}
}

func TestFailuresWithoutRequestLogger(t *testing.T) {
	a := newAPI(t)
	f := a.h.Festival(t, "Closing Fest")

	a.cache.err = errors.New("redis down")
	if status := a.do(http.MethodPost, "/v1/admin/festivals/"+id(f.ID)+"/stages", map[string]any{"name": "Main"}, nil); status != http.StatusCreated {
		t.Fatalf("stage create with failing invalidation = %d", status)
	}

	if err := a.h.DB.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	var eb errorBody
	if status := a.do(http.MethodGet, "/v1/festivals", nil, &eb); status != http.StatusInternalServerError || eb.Error != "internal_error" {
		t.Fatalf("list festivals on closed db = %d %+v", status, eb)
	}
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var body map[string]string
	if status := a.do(http.MethodGet, "/healthz", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", status, body)
	}
}
