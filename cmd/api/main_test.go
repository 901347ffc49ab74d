package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	appbootstrap "github.com/FLANsa/clinic-ai-bot/internal/app/bootstrap"
	appconfig "github.com/FLANsa/clinic-ai-bot/internal/config"
	"github.com/FLANsa/clinic-ai-bot/internal/dispatch"
	"github.com/FLANsa/clinic-ai-bot/pkg/logging"
)

func TestSetupMetricsExposesDialogueMetrics(t *testing.T) {
	handler, registry := setupMetrics()
	if handler == nil || registry == nil {
		t.Fatalf("expected non-nil handler and registry")
	}

	rt, err := appbootstrap.BuildRuntime(context.Background(), &appconfig.Config{LLMProvider: "groq"}, logging.New("error"),
		appbootstrap.WithRegisterer(registry))
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	defer rt.Close()
	rt.Metrics.ObserveTurn("web", "", "fallback", 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinicbot_dialogue_turns_total") {
		t.Fatalf("expected turn counter to be exported")
	}
}

func newTestServer(t *testing.T, cfg *appconfig.Config) (http.Handler, *appbootstrap.Runtime) {
	t.Helper()
	logger := logging.New("error")
	metricsHandler, registry := setupMetrics()
	rt, err := appbootstrap.BuildRuntime(context.Background(), cfg, logger,
		appbootstrap.WithRegisterer(registry),
		appbootstrap.WithCatalogFile(filepath.Join("..", "..", "testdata", "catalog.json")),
	)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	t.Cleanup(rt.Close)

	d, err := appbootstrap.BuildDispatcher(context.Background(), cfg, rt, nil, appbootstrap.RoleProducer, logger)
	if err != nil {
		t.Fatalf("build dispatcher: %v", err)
	}
	t.Cleanup(func() { _ = d.Shutdown(context.Background()) })

	return buildRouter(cfg, rt, d, metricsHandler, logger), rt
}

func TestBuildRouterHandlesMessagesThroughWorkers(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "groq", UseMemoryQueue: true, WorkerCount: 1, ClinicTimezone: "Asia/Riyadh"}
	srv, rt := newTestServer(t, cfg)

	body := `{"channel":"whatsapp","user_id":"966500000009","message":"book teeth whitening at Olaya Branch, my name is Noura Saleh"}`
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	var reply dispatch.Reply
	if err := json.NewDecoder(rr.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Intent != "appointment_booking" || reply.Text == "" {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(rt.MemoryAppointments.List()) != 1 {
		t.Fatalf("expected the booking to commit with the numeric user id as phone")
	}
}

func TestBuildRouterAsyncMessage(t *testing.T) {
	cfg := &appconfig.Config{LLMProvider: "groq", UseMemoryQueue: true, WorkerCount: 1}
	srv, _ := newTestServer(t, cfg)

	body := `{"channel":"web","user_id":"u-7","message":"hello","async":true}`
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}

func TestBuildRouterReadiness(t *testing.T) {
	srv, _ := newTestServer(t, &appconfig.Config{LLMProvider: "groq", UseMemoryQueue: true})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready with in-memory stores, got %d", rr.Code)
	}
}
