package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/scoreline/internal/adapters/feed"
	"github.com/okian/scoreline/internal/adapters/http/api"
	"github.com/okian/scoreline/internal/adapters/repository"
	service "github.com/okian/scoreline/internal/app"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/ranking"
	"github.com/okian/scoreline/internal/domain/scoring"
	"github.com/okian/scoreline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
}

var kickoff = time.Date(2024, 3, 2, 12, 30, 0, 0, time.UTC)

type testEnv struct {
	store  *repository.MemoryStore
	svc    *service.Service
	router *mux.Router
}

func newTestEnv(opts ...service.Option) *testEnv {
	store := repository.NewMemoryStore()
	opts = append([]service.Option{service.WithStore(store), service.WithWorkerCount(1)}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)

	router := mux.NewRouter()
	api.NewServer(svc, svc, api.WithMaxLeaderboardLimit(50)).Register(context.Background(), router)
	return &testEnv{store: store, svc: svc, router: router}
}

func (e *testEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = e.svc.Stop(ctx)
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Operational(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		env := newTestEnv()
		defer env.close()

		Convey("When calling /healthz", func() {
			w := do(env.router, http.MethodGet, "/healthz", "")

			Convey("Then it reports ok as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldEqual, "application/json; charset=utf-8")
				So(decode(w)["status"], ShouldEqual, "ok")
			})
		})

		Convey("When calling /metrics after a request", func() {
			_ = do(env.router, http.MethodGet, "/healthz", "")
			w := do(env.router, http.MethodGet, "/metrics", "")

			Convey("Then the custom registry is exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "scoreline_http_requests_total")
			})
		})

		Convey("When calling /stats", func() {
			w := do(env.router, http.MethodGet, "/stats", "")

			Convey("Then service statistics are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["started"], ShouldEqual, true)
			})
		})

		Convey("When using the wrong method", func() {
			w := do(env.router, http.MethodGet, "/points", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Points(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		env := newTestEnv()
		defer env.close()

		cases := []struct {
			body   string
			points float64
			tier   string
		}{
			{`{"predicted":{"home":2,"away":1},"actual":{"home":2,"away":1}}`, 10, "exact"},
			{`{"predicted":{"home":3,"away":2},"actual":{"home":2,"away":1}}`, 7, "outcome_margin"},
			{`{"predicted":{"home":2,"away":2},"actual":{"home":3,"away":3}}`, 7, "outcome_margin"},
			{`{"predicted":{"home":2,"away":0},"actual":{"home":2,"away":1}}`, 5, "outcome_one_side"},
			{`{"predicted":{"home":4,"away":0},"actual":{"home":2,"away":1}}`, 3, "outcome"},
			{`{"predicted":{"home":0,"away":1},"actual":{"home":2,"away":1}}`, 1, "wrong_outcome_one_side"},
			{`{"predicted":{"home":0,"away":3},"actual":{"home":2,"away":1}}`, 0, "miss"},
		}

		Convey("When scoring each tier", func() {
			for _, c := range cases {
				w := do(env.router, http.MethodPost, "/points", c.body)
				So(w.Code, ShouldEqual, http.StatusOK)
				got := decode(w)
				So(got["points"], ShouldEqual, c.points)
				So(got["tier"], ShouldEqual, c.tier)
			}
		})

		Convey("When the body is malformed", func() {
			w := do(env.router, http.MethodPost, "/points", `{"predicted":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When a score is missing", func() {
			w := do(env.router, http.MethodPost, "/points", `{"predicted":{"home":1,"away":0}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a goal count is negative", func() {
			w := do(env.router, http.MethodPost, "/points", `{"predicted":{"home":-1,"away":0},"actual":{"home":0,"away":0}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

const round27Feed = `{"event_id":"sync-27","round":27,"fixtures":[
 {"fixture":{"id":1,"date":"2024-03-02T12:30:00Z","status":{"short":"FT"}},"goals":{"home":2,"away":1}},
 {"fixture":{"id":2,"date":"2024-03-02T15:00:00Z","status":{"short":"NS"}},"goals":{"home":null,"away":null}}]}`

func TestServer_FeedAndMatchdays(t *testing.T) {
	Convey("Given a server with predictions for round 27", t, func() {
		env := newTestEnv(service.WithDeadlineEnforcement(false))
		defer env.close()

		for _, body := range []string{
			`{"user_id":"alice","round":27,"scores":{"1":{"home":2,"away":1}}}`,
			`{"user_id":"bob","round":27,"scores":{"1":{"home":1,"away":0}}}`,
		} {
			So(do(env.router, http.MethodPost, "/predictions", body).Code, ShouldEqual, http.StatusCreated)
		}

		Convey("When posting a feed update", func() {
			w := do(env.router, http.MethodPost, "/feed/results", round27Feed)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decode(w)["event_id"], ShouldEqual, "sync-27")
			})

			Convey("And posting it again is a duplicate", func() {
				again := do(env.router, http.MethodPost, "/feed/results", round27Feed)
				So(again.Code, ShouldEqual, http.StatusOK)
				So(decode(again)["duplicate"], ShouldEqual, true)
			})

			Convey("And once settled the round can be read", func() {
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					if _, ok := env.svc.LastSettlement(27); ok {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}

				md := do(env.router, http.MethodGet, "/matchdays/27", "")
				So(md.Code, ShouldEqual, http.StatusOK)
				So(decode(md)["matches"], ShouldHaveLength, 2)

				lb := do(env.router, http.MethodGet, "/matchdays/27/leaderboard?limit=1", "")
				So(lb.Code, ShouldEqual, http.StatusOK)
				standings := decode(lb)["standings"].([]any)
				So(standings, ShouldHaveLength, 1)
				So(standings[0].(map[string]any)["user_id"], ShouldEqual, "alice")

				rank := do(env.router, http.MethodGet, "/matchdays/27/rank/bob", "")
				So(rank.Code, ShouldEqual, http.StatusOK)
				body := decode(rank)
				So(body["rank"], ShouldEqual, 2.0)
				So(body["points"], ShouldEqual, 7.0)

				unranked := do(env.router, http.MethodGet, "/matchdays/27/rank/zoe", "")
				So(unranked.Code, ShouldEqual, http.StatusOK)
				So(decode(unranked)["rank"], ShouldBeNil)
			})
		})

		Convey("When posting an invalid feed update", func() {
			w := do(env.router, http.MethodPost, "/feed/results",
				`{"round":27,"fixtures":[{"fixture":{"id":1,"status":{"short":"FT"}},"goals":{"home":null,"away":1}}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When reading an unknown round", func() {
			So(do(env.router, http.MethodGet, "/matchdays/99", "").Code, ShouldEqual, http.StatusNotFound)
			So(decode(do(env.router, http.MethodGet, "/matchdays/99/leaderboard", ""))["code"], ShouldEqual, "not_found")
		})

		Convey("When the leaderboard limit is invalid", func() {
			So(do(env.router, http.MethodGet, "/matchdays/27/leaderboard?limit=0", "").Code, ShouldEqual, http.StatusBadRequest)
			w := do(env.router, http.MethodGet, "/matchdays/27/leaderboard?limit=51", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "limit_exceeded")
		})

		Convey("When the round is not a number", func() {
			So(do(env.router, http.MethodGet, "/matchdays/abc", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(env.router, http.MethodGet, "/matchdays/0", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Predictions(t *testing.T) {
	Convey("Given a server with a round that kicks off in an hour", t, func() {
		now := kickoff.Add(-time.Hour)
		env := newTestEnv(service.WithClock(func() time.Time { return now }))
		defer env.close()
		So(env.store.PutResults(context.Background(), model.ResultSet{
			Round:   28,
			Matches: []model.MatchResult{{ID: 7, Status: "NS", Kickoff: kickoff}},
		}), ShouldBeNil)

		w := do(env.router, http.MethodPost, "/predictions", `{"user_id":"alice","round":28,"scores":{"7":{"home":1,"away":1}}}`)
		So(w.Code, ShouldEqual, http.StatusCreated)
		created := decode(w)
		id := created["id"].(string)

		Convey("Then the created prediction is returned", func() {
			So(id, ShouldNotBeEmpty)
			So(created["status"], ShouldEqual, "saved")
			So(created["scores"], ShouldResemble, map[string]any{"7": map[string]any{"home": 1.0, "away": 1.0}})
		})

		Convey("When creating a second one for the round", func() {
			w := do(env.router, http.MethodPost, "/predictions", `{"user_id":"alice","round":28,"scores":{}}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decode(w)["code"], ShouldEqual, "conflict")
		})

		Convey("When a match id is not numeric", func() {
			w := do(env.router, http.MethodPost, "/predictions", `{"user_id":"bob","round":28,"scores":{"x":{"home":1,"away":1}}}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching it", func() {
			w := do(env.router, http.MethodGet, "/predictions/"+id, "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode(w)
			So(body["user_id"], ShouldEqual, "alice")
			So(body["breakdown"], ShouldHaveLength, 1)
			So(body["points"], ShouldEqual, 0.0)
		})

		Convey("When listing", func() {
			w := do(env.router, http.MethodGet, "/predictions?user_id=alice", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var list []map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &list), ShouldBeNil)
			So(list, ShouldHaveLength, 1)

			So(do(env.router, http.MethodGet, "/predictions", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When updating", func() {
			ok := do(env.router, http.MethodPatch, "/predictions/"+id, `{"user_id":"alice","scores":{"7":{"home":2,"away":0}}}`)
			So(ok.Code, ShouldEqual, http.StatusOK)

			other := do(env.router, http.MethodPatch, "/predictions/"+id, `{"user_id":"mallory","scores":{}}`)
			So(other.Code, ShouldEqual, http.StatusForbidden)
			So(decode(other)["code"], ShouldEqual, "forbidden")

			now = kickoff
			late := do(env.router, http.MethodPatch, "/predictions/"+id, `{"user_id":"alice","scores":{}}`)
			So(late.Code, ShouldEqual, http.StatusForbidden)
			So(decode(late)["code"], ShouldEqual, "deadline_passed")
		})

		Convey("When deleting", func() {
			So(do(env.router, http.MethodDelete, "/predictions/"+id, "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(env.router, http.MethodDelete, "/predictions/"+id+"?user_id=bob", "").Code, ShouldEqual, http.StatusForbidden)
			So(do(env.router, http.MethodDelete, "/predictions/"+id+"?user_id=alice", "").Code, ShouldEqual, http.StatusNoContent)
			So(do(env.router, http.MethodGet, "/predictions/"+id, "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When creating after kickoff", func() {
			now = kickoff.Add(time.Minute)
			w := do(env.router, http.MethodPost, "/predictions", `{"user_id":"bob","round":28,"scores":{}}`)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})
	})
}

func TestServer_CurrentMatchday(t *testing.T) {
	Convey("Given a server with no stored round", t, func() {
		now := kickoff.Add(-time.Hour)
		env := newTestEnv(service.WithClock(func() time.Time { return now }))
		defer env.close()

		w := do(env.router, http.MethodGet, "/matchdays/current", "")
		So(w.Code, ShouldEqual, http.StatusNotFound)
		So(decode(w)["code"], ShouldEqual, "not_found")

		Convey("When rounds 27 and 28 are stored", func() {
			So(env.store.PutResults(context.Background(), model.ResultSet{
				Round:   27,
				Matches: []model.MatchResult{{ID: 3, Status: "FT", Kickoff: kickoff.Add(-7 * 24 * time.Hour)}},
			}), ShouldBeNil)
			So(env.store.PutResults(context.Background(), model.ResultSet{
				Round:   28,
				Matches: []model.MatchResult{{ID: 7, Status: "NS", Kickoff: kickoff}},
			}), ShouldBeNil)

			Convey("Then the latest round is open to anyone", func() {
				w := do(env.router, http.MethodGet, "/matchdays/current", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["round"], ShouldEqual, 28.0)
				So(body["matches"], ShouldHaveLength, 1)
				So(body["allowed"], ShouldBeTrue)
				So(body["prediction_id"], ShouldBeNil)
				So(body["prediction_status"], ShouldBeNil)
			})

			Convey("When alice has predicted it", func() {
				created := do(env.router, http.MethodPost, "/predictions", `{"user_id":"alice","round":28,"scores":{}}`)
				So(created.Code, ShouldEqual, http.StatusCreated)
				id := decode(created)["id"].(string)

				alice := decode(do(env.router, http.MethodGet, "/matchdays/current?user_id=alice", ""))
				So(alice["prediction_id"], ShouldEqual, id)
				So(alice["prediction_status"], ShouldEqual, "saved")
				So(alice["allowed"], ShouldBeFalse)

				bob := decode(do(env.router, http.MethodGet, "/matchdays/current?user_id=bob", ""))
				So(bob["prediction_id"], ShouldBeNil)
				So(bob["allowed"], ShouldBeTrue)
			})

			Convey("When the first match has kicked off", func() {
				now = kickoff
				body := decode(do(env.router, http.MethodGet, "/matchdays/current?user_id=bob", ""))
				So(body["round"], ShouldEqual, 28.0)
				So(body["allowed"], ShouldBeFalse)
			})
		})
	})
}

// stubDeps fails every call with err.
type stubDeps struct {
	err error
}

func (s stubDeps) Points(model.Score, model.Score) (scoring.Tier, error) {
	return 0, s.err
}

func (s stubDeps) IngestFeed(context.Context, feed.Update) (service.IngestResult, error) {
	return service.IngestResult{}, s.err
}

func (s stubDeps) CurrentRound(context.Context, string) (service.CurrentRound, error) {
	return service.CurrentRound{}, s.err
}

func (s stubDeps) Results(context.Context, int) (model.ResultSet, error) {
	return model.ResultSet{}, s.err
}

func (s stubDeps) Leaderboard(context.Context, int, int) ([]ranking.Standing, error) {
	return nil, s.err
}

func (s stubDeps) Rank(context.Context, int, string) (ranking.Result, error) {
	return ranking.Result{}, s.err
}

func (s stubDeps) CreatePrediction(context.Context, service.NewPrediction) (model.Prediction, error) {
	return model.Prediction{}, s.err
}

func (s stubDeps) GetPrediction(context.Context, string) (service.PredictionView, error) {
	return service.PredictionView{}, s.err
}

func (s stubDeps) ListPredictions(context.Context, string) ([]model.Prediction, error) {
	return nil, s.err
}

func (s stubDeps) UpdatePrediction(context.Context, string, string, map[model.MatchID]model.Score) (model.Prediction, error) {
	return model.Prediction{}, s.err
}

func (s stubDeps) DeletePrediction(context.Context, string, string) error {
	return s.err
}

func (s stubDeps) GetStats(context.Context) map[string]interface{} {
	return map[string]interface{}{}
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given handlers over failing dependencies", t, func() {
		serve := func(err error, method, target, body string) *httptest.ResponseRecorder {
			router := mux.NewRouter()
			deps := stubDeps{err: err}
			api.NewServer(deps, deps).Register(context.Background(), router)
			return do(router, method, target, body)
		}

		Convey("Then a full queue answers 429", func() {
			w := serve(service.ErrBackpressure, http.MethodPost, "/feed/results", round27Feed)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decode(w)["code"], ShouldEqual, "backpressure")
		})

		Convey("Then a stopped service answers 503", func() {
			w := serve(service.ErrNotStarted, http.MethodPost, "/feed/results", round27Feed)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then unknown failures answer 500", func() {
			w := serve(errors.New("connection reset"), http.MethodGet, "/matchdays/3/rank/alice", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode(w)["message"], ShouldContainSubstring, "connection reset")
		})

		Convey("Then wrapped not-found errors answer 404", func() {
			w := serve(repository.ErrNotFound, http.MethodGet, "/predictions/abc", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestError(t *testing.T) {
	Convey("Given API errors", t, func() {
		cause := errors.New("eof")

		Convey("Then kinds and causes are both matchable", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: eof")
		})

		Convey("Then a bare kind names the operation", func() {
			So(api.NewKind("api.op", api.ErrBadRequest).Error(), ShouldEqual, "api.op: bad request")
			So(api.Wrap("api.op", cause).Error(), ShouldEqual, "api.op: eof")
		})
	})
}
