package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/CodedInternet/carnode/comms"
	"github.com/CodedInternet/carnode/onboard"
	"github.com/CodedInternet/carnode/onboard/hardware"
	"github.com/CodedInternet/carnode/onboard/nvm"
	"golang.org/x/crypto/bcrypt"
)

// setupTestEnv points ENV at a fresh database and a running simulated car.
func setupTestEnv() (storage *nvm.MemoryStorage, teardown func()) {
	dir, err := ioutil.TempDir("", "carnode")
	if err != nil {
		panic(err)
	}
	db, err := openDb(filepath.Join(dir, "test.db"))
	if err != nil {
		panic(err)
	}

	calib := onboard.DefaultCalibration()
	calib.Tick = time.Millisecond
	storage = nvm.NewMemoryStorage(nvm.DEFAULT_SIZE)
	car := onboard.NewCar(onboard.CarOptions{
		Board:       hardware.NewSimulatedBoard(1).Board(),
		Calibration: calib,
		Storage:     storage,
	})

	ENV.DEBUG = false
	ENV.DB = db
	ENV.Car = car
	ENV.Logger = log.New(ioutil.Discard, "", 0)
	ENV.Admin = NewAuthenticator(bcrypt.MinCost)
	ENV.Conductor = comms.NewConductor(car)
	ENV.Conductor.OnAdminPass = ENV.Admin.SetAdminPass

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		car.Run(ctx)
		close(done)
	}()

	return storage, func() {
		cancel()
		<-done
		db.Close()
		os.RemoveAll(dir)
	}
}

// eventually polls cond until it holds or a second passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func jsonRequest(method, url string, payload interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, url, bytes.NewBuffer(body))
	req.Header.Add("Content-Type", "application/json")
	return req
}

func authorize(req *http.Request) *http.Request {
	token, err := newJWT("test")
	if err != nil {
		panic(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// recordingVehicle accepts commands without running them.
type recordingVehicle struct {
	cmds []onboard.Command
}

func (v *recordingVehicle) Submit(cmd onboard.Command) bool {
	v.cmds = append(v.cmds, cmd)
	return true
}

func (v *recordingVehicle) Status() onboard.Status {
	return onboard.Status{}
}
