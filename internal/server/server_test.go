// SPDX-License-Identifier: MIT
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"meowsense/internal/analysis"
	"meowsense/internal/audio"
	"meowsense/internal/classify"
	"meowsense/internal/inference"
	"meowsense/internal/observe"
	"meowsense/internal/transport"
	"meowsense/pkg/utils"
)

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newClassifier(t *testing.T, predict inference.AdapterFunc) *classify.Classifier {
	t.Helper()
	c, err := classify.New(classify.DefaultOptions(), predict, classify.DefaultLabels(),
		classify.WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("classify.New() error = %v", err)
	}
	return c
}

func growl(context.Context, *analysis.FeatureMatrix) ([]float64, error) {
	return []float64{0, 6, 0, 0, 0, 0, 0}, nil
}

func wavBytes(t *testing.T, samples []float64, rate float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := audio.SaveWAV(path, audio.Signal{Samples: samples, SampleRate: rate}); err != nil {
		t.Fatalf("SaveWAV() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func post(t *testing.T, h http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/classify", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestClassifyEndpoint(t *testing.T) {
	pub := &utils.MockTransport{}
	srv := New(newClassifier(t, growl), Options{Publisher: pub, Metrics: testMetrics(t)})

	rec := post(t, srv.Handler(), wavBytes(t, utils.GenerateSineWave(44100, 44100, 600, 0.5), 44100))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var res classify.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Label != "Growl" || res.Outcome != classify.OutcomeClassified {
		t.Errorf("result = %+v, want classified Growl", res)
	}
	if res.ID == "" || rec.Header().Get("X-Request-ID") != res.ID {
		t.Errorf("id = %q, header = %q", res.ID, rec.Header().Get("X-Request-ID"))
	}
	if len(res.Probabilities) != 7 {
		t.Errorf("probabilities = %v", res.Probabilities)
	}

	published := pub.Payloads()
	if len(published) != 1 || published[0].(classify.Result).ID != res.ID {
		t.Errorf("published = %+v, want the returned result", published)
	}
}

func TestClassifyEndpointSilence(t *testing.T) {
	srv := New(newClassifier(t, growl), Options{Metrics: testMetrics(t)})

	rec := post(t, srv.Handler(), wavBytes(t, make([]float64, 22050), 22050))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res classify.Result
	json.NewDecoder(rec.Body).Decode(&res)
	if res.Outcome != classify.OutcomeSilent || res.Confidence != 100 || res.Index != 0 {
		t.Errorf("result = %+v, want silent background", res)
	}
}

func TestClassifyEndpointErrors(t *testing.T) {
	failing := func(context.Context, *analysis.FeatureMatrix) ([]float64, error) {
		return nil, errors.New("model crashed")
	}
	tone := utils.GenerateSineWave(22050, 22050, 600, 0.5)

	tests := []struct {
		name       string
		predict    inference.AdapterFunc
		body       []byte
		maxUpload  int64
		wantStatus int
	}{
		{"not audio", growl, []byte("hello, world"), 0, http.StatusBadRequest},
		{"empty body", growl, nil, 0, http.StatusBadRequest},
		{"inference failure", failing, nil, 0, http.StatusBadGateway},
		{"too large", growl, nil, 1024, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body
			if body == nil && tt.name != "empty body" {
				body = wavBytes(t, tone, 22050)
			}
			pub := &utils.MockTransport{}
			srv := New(newClassifier(t, tt.predict), Options{
				MaxUploadBytes: tt.maxUpload,
				Publisher:      pub,
				Metrics:        testMetrics(t),
			})

			rec := post(t, srv.Handler(), body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			var e errorBody
			if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error == "" {
				t.Errorf("error body = %+v, %v", e, err)
			}
			if len(pub.Payloads()) != 0 {
				t.Error("failed request was published")
			}
		})
	}
}

func TestHealthzAndMethods(t *testing.T) {
	srv := New(newClassifier(t, growl), Options{
		Metrics:        testMetrics(t),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "# metrics") }),
	})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/classify", http.StatusMethodNotAllowed},
		{http.MethodGet, "/ws", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestWebSocketReceivesResults(t *testing.T) {
	wst := transport.NewWebSocketTransport()
	defer wst.Close()
	srv := New(newClassifier(t, growl), Options{
		Publisher: wst,
		WebSocket: wst,
		Metrics:   testMetrics(t),
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for wst.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	body := wavBytes(t, utils.GenerateSineWave(22050, 22050, 600, 0.5), 22050)
	resp, err := http.Post(ts.URL+"/classify", "audio/wav", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var res classify.Result
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if res.Label != "Growl" || res.ID == "" {
		t.Errorf("broadcast result = %+v", res)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	srv := New(newClassifier(t, growl), Options{Metrics: testMetrics(t), ShutdownTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for range 50 {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
