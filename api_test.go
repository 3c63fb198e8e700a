package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CodedInternet/carnode/comms"
	"github.com/CodedInternet/carnode/onboard"
	. "github.com/smartystreets/goconvey/convey"
)

func TestControlAPI(t *testing.T) {
	storage, teardown := setupTestEnv()
	defer teardown()
	router := newRouter()

	post := func(url string, payload interface{}) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authorize(jsonRequest("POST", url, payload)))
		return rr
	}
	status := func() onboard.Status { return ENV.Car.Status() }

	Convey("Driving through the API reaches the car", t, func() {
		So(post("/api/pilot", &PilotPayload{On: true}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/drive", &DrivePayload{Speed: 100, Angle: -200}).Code, ShouldEqual, http.StatusOK)

		So(eventually(func() bool {
			s := status()
			return s.PilotStarted && s.Speed == 100 && s.Angle == -200
		}), ShouldBeTrue)

		Convey("and the status endpoint reports it", func() {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, authorize(httptest.NewRequest("GET", "/api/status", nil)))
			So(rr.Code, ShouldEqual, http.StatusOK)

			var payload comms.StatePayload
			So(json.Unmarshal(rr.Body.Bytes(), &payload), ShouldBeNil)
			So(payload.Speed, ShouldEqual, 100)
			So(payload.Name, ShouldEqual, "CarNode-CAFE42")
		})
	})

	Convey("Lights and calibration commands are applied", t, func() {
		So(post("/api/headlights", &HeadlightsPayload{Power: 500, Blink: true}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/color", &ColorPayload{R: 1, G: 2, B: 3}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/trim", &TrimPayload{Trim: -20}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/throttle", &ThrottlePayload{Forward: 120, Backward: 90}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/name", &NamePayload{Name: "Car42"}).Code, ShouldEqual, http.StatusOK)

		So(eventually(func() bool {
			s := status()
			return s.HeadlightsSet == 500 && s.Blink && s.ColorSet == onboard.Color{1, 2, 3} &&
				s.SteeringTrim == -20 && s.ThrottleStartFw == 120 && s.Name == "Car42"
		}), ShouldBeTrue)

		Convey("and saving persists them", func() {
			So(post("/api/save", nil).Code, ShouldEqual, http.StatusOK)
			So(storage.Commits, ShouldBeGreaterThan, 0)
		})
	})

	Convey("A new admin credential enables admin login", t, func() {
		So(post("/api/adminpass", &AdminPassPayload{Pass: "s3cret"}).Code, ShouldEqual, http.StatusOK)
		So(ENV.Admin.Verify("s3cret"), ShouldBeNil)

		So(post("/api/adminpass", &AdminPassPayload{Pass: "far too long"}).Code, ShouldEqual, http.StatusBadRequest)
	})

	Convey("Generic commands use the conductor verbs", t, func() {
		So(post("/api/command", &comms.Cmd{Cmd: "limit", Values: []float64{1000, -1000}}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/command", &comms.Cmd{Cmd: "fly"}).Code, ShouldEqual, http.StatusBadRequest)
		So(post("/api/command", &comms.Cmd{}).Code, ShouldEqual, http.StatusBadRequest)
	})

	Convey("Malformed requests are rejected", t, func() {
		So(post("/api/name", &NamePayload{}).Code, ShouldEqual, http.StatusBadRequest)

		rr := httptest.NewRecorder()
		req := authorize(httptest.NewRequest("POST", "/api/drive", nil))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rr, req)
		So(rr.Code, ShouldEqual, http.StatusBadRequest)
	})

	Convey("Shutdown stops the car for good", t, func() {
		So(post("/api/shutdown", nil).Code, ShouldEqual, http.StatusOK)
		So(eventually(func() bool { return status().Shutdown }), ShouldBeTrue)

		// save is answered from inside the loop, after the pilot command has been drained
		So(post("/api/pilot", &PilotPayload{On: true}).Code, ShouldEqual, http.StatusOK)
		So(post("/api/save", nil).Code, ShouldEqual, http.StatusOK)
		saved := status().Time
		So(eventually(func() bool { return status().Time.After(saved) }), ShouldBeTrue)
		So(status().PilotStarted, ShouldBeFalse)
	})
}
