package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/meal"
)

type fakeView struct {
	mu       sync.Mutex
	view     app.View
	views    chan app.View
	refetchN atomic.Int32
}

func newFakeView(phase app.ViewPhase) *fakeView {
	return &fakeView{view: app.View{Phase: phase}, views: make(chan app.View, 1)}
}

func (f *fakeView) Snapshot() app.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeView) Subscribe() <-chan app.View { return f.views }
func (f *fakeView) Refetch()                   { f.refetchN.Add(1) }

func (f *fakeView) publish(v app.View) {
	f.mu.Lock()
	f.view = v
	f.mu.Unlock()
	f.views <- v
}

type fakeVisibility struct {
	mu     sync.Mutex
	values []bool
}

func (f *fakeVisibility) SetVisible(v bool) {
	f.mu.Lock()
	f.values = append(f.values, v)
	f.mu.Unlock()
}

func (f *fakeVisibility) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return false, false
	}
	return f.values[len(f.values)-1], true
}

type fakeImages struct {
	data   []byte
	cached bool
	err    error
}

func (f fakeImages) Get(context.Context, string) ([]byte, bool, error) {
	return f.data, f.cached, f.err
}

func newTestServer(t *testing.T, view *fakeView, vis *fakeVisibility, images ImageSource) (*Server, *httptest.Server) {
	t.Helper()
	var visibility Visibility
	if vis != nil {
		visibility = vis
	}
	s := New(view, visibility, images, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.broadcast(ctx)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		cancel()
		s.closeAll()
		ts.Close()
	})
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read websocket message: %v", err)
	}
	return msg
}

func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, newFakeView(app.ViewLoading), nil, nil)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("health = %d %q, want 200 OK", resp.StatusCode, body)
	}
}

func TestPlate_ReturnsCurrentView(t *testing.T) {
	view := newFakeView(app.ViewDisplay)
	view.view.Price = 23.5
	_, ts := newTestServer(t, view, nil, nil)

	resp, err := http.Get(ts.URL + "/api/plate")
	if err != nil {
		t.Fatalf("GET /api/plate: %v", err)
	}
	defer resp.Body.Close()
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["phase"] != "display" || got["price"] != 23.5 {
		t.Fatalf("plate = %v, want display phase with price 23.5", got)
	}
}

func TestPlate_RejectsPost(t *testing.T) {
	_, ts := newTestServer(t, newFakeView(app.ViewLoading), nil, nil)
	resp, err := http.Post(ts.URL+"/api/plate", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/plate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}

// plateView is a displayed meal whose only photo is http://img/a.png.
func plateView() *fakeView {
	f := newFakeView(app.ViewDisplay)
	f.view.Meal = meal.ProcessedMeal{
		ID:          9,
		ChartSlices: []meal.ChartSlice{{ID: 1, Percentage: 100, Label: "Arroz", ImageSrc: "http://img/a.png"}},
	}
	return f
}

func TestImages_NotServedForEmptyPlate(t *testing.T) {
	_, ts := newTestServer(t, newFakeView(app.ViewScanning), nil, fakeImages{data: []byte("x")})
	resp, err := http.Get(ts.URL + "/api/images?src=http://img/a.png")
	if err != nil {
		t.Fatalf("GET /api/images: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestImages(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	tests := []struct {
		name       string
		images     ImageSource
		query      string
		wantStatus int
		wantCache  string
	}{
		{"missing src", fakeImages{data: png}, "", http.StatusBadRequest, ""},
		{"hit", fakeImages{data: png, cached: true}, "?src=http://img/a.png", http.StatusOK, "hit"},
		{"miss", fakeImages{data: png}, "?src=http://img/a.png", http.StatusOK, "miss"},
		{"fetch failure", fakeImages{err: errors.New("boom")}, "?src=http://img/a.png", http.StatusBadGateway, ""},
		{"not on plate", fakeImages{data: png}, "?src=http://evil.example/x.png", http.StatusNotFound, ""},
		{"query differs", fakeImages{data: png}, "?src=http://img/a.png%3Fv%3D2", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ts := newTestServer(t, plateView(), nil, tt.images)
			resp, err := http.Get(ts.URL + "/api/images" + tt.query)
			if err != nil {
				t.Fatalf("GET /api/images: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("X-Cache"); got != tt.wantCache {
				t.Fatalf("X-Cache = %q, want %q", got, tt.wantCache)
			}
			if tt.wantStatus == http.StatusOK {
				if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
					t.Fatalf("Content-Type = %q, want image/png", ct)
				}
			}
		})
	}
}

func TestImages_DisabledWithoutSource(t *testing.T) {
	_, ts := newTestServer(t, newFakeView(app.ViewLoading), nil, nil)
	resp, err := http.Get(ts.URL + "/api/images?src=x")
	if err != nil {
		t.Fatalf("GET /api/images: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocket_SendsInitialAndBroadcastViews(t *testing.T) {
	view := newFakeView(app.ViewScanning)
	_, ts := newTestServer(t, view, nil, nil)
	conn := dial(t, ts)

	first := readMessage(t, conn)
	if first.Type != TypeView || first.Data == nil || first.Data.Phase != app.ViewScanning {
		t.Fatalf("first message = %+v, want scanning view", first)
	}

	view.publish(app.View{Phase: app.ViewDisplay, Calories: 412})
	next := readMessage(t, conn)
	if next.Data == nil || next.Data.Phase != app.ViewDisplay || next.Data.Calories != 412 {
		t.Fatalf("broadcast = %+v, want display view with 412 kcal", next)
	}
}

func TestWebSocket_RefetchAndUnknownMessages(t *testing.T) {
	view := newFakeView(app.ViewScanning)
	_, ts := newTestServer(t, view, nil, nil)
	conn := dial(t, ts)
	readMessage(t, conn)

	if err := conn.WriteJSON(Message{Type: TypeRefetch}); err != nil {
		t.Fatalf("write refetch: %v", err)
	}
	eventually(t, func() bool { return view.refetchN.Load() == 1 }, "refetch count = %d, want 1", view.refetchN.Load())

	if err := conn.WriteJSON(Message{Type: "dance"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	msg := readMessage(t, conn)
	if msg.Type != TypeError || msg.Message != "unknown message type" {
		t.Fatalf("reply = %+v, want unknown message type error", msg)
	}
}

func TestWebSocket_VisibilityFollowsDisplays(t *testing.T) {
	vis := &fakeVisibility{}
	s, ts := newTestServer(t, newFakeView(app.ViewScanning), vis, nil)

	a := dial(t, ts)
	readMessage(t, a)
	b := dial(t, ts)
	readMessage(t, b)
	eventually(t, func() bool { return s.Clients() == 2 }, "clients = %d, want 2", s.Clients())

	hidden := false
	if err := a.WriteJSON(Message{Type: TypeVisibility, Visible: &hidden}); err != nil {
		t.Fatalf("write visibility: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if v, _ := vis.last(); !v {
		t.Fatal("visible = false while display b still shows the screen")
	}

	if err := b.WriteJSON(Message{Type: TypeVisibility, Visible: &hidden}); err != nil {
		t.Fatalf("write visibility: %v", err)
	}
	eventually(t, func() bool { v, ok := vis.last(); return ok && !v }, "visible never went false")

	// With every display gone the kiosk polls on its own again.
	_ = a.Close()
	_ = b.Close()
	eventually(t, func() bool { v, _ := vis.last(); return v && s.Clients() == 0 }, "visible not restored after disconnect")
}
