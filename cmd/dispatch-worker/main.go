// cmd/dispatch-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cron "github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dispatch-workers/internal/audit"
	commonaws "dispatch-workers/internal/common/aws"
	"dispatch-workers/internal/common/camunda"
	"dispatch-workers/internal/common/config"
	"dispatch-workers/internal/common/database"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/observability"
	"dispatch-workers/internal/explain"
	"dispatch-workers/internal/matching/diversion"
	"dispatch-workers/internal/matching/predictor"
	"dispatch-workers/internal/matching/recommend"
	"dispatch-workers/internal/matching/scoring"
	"dispatch-workers/internal/models"
	"dispatch-workers/internal/notify"
	"dispatch-workers/internal/repository"
	"dispatch-workers/internal/routing"
	"dispatch-workers/internal/tracking"
	"dispatch-workers/internal/tracking/feed"

	rt "dispatch-workers/internal/workers/matching/recommend-technicians"
	ped "dispatch-workers/internal/workers/dispatch/plan-emergency-diversion"
	rlu "dispatch-workers/internal/workers/tracking/record-location-update"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch worker...", zap.String("version", cfg.App.Version))

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	conns := database.Open(ctx, cfg, log)
	defer conns.Close()

	// --- Matching core ---
	scoringCfg := scoring.DefaultConfig()
	scoringCfg.DefaultMaxDistanceKm = cfg.Matching.DefaultMaxDistanceKm
	engine := scoring.NewEngine(scoringCfg, log)

	var learned predictor.Predictor
	if cfg.Predictor.Enabled {
		learned = predictor.NewHTTPPredictor(cfg.Predictor.BaseURL, cfg.Predictor.APIKey, cfg.Predictor.Timeout)
	}
	blender := predictor.NewBlender(learned, predictor.Config{
		Timeout:       cfg.Predictor.Timeout,
		MaxDistanceKm: cfg.Matching.DefaultMaxDistanceKm,
		MaxWorkload:   cfg.Matching.MaxWorkload,
	}, log)

	var explainer explain.Explainer = explain.TemplateExplainer{}
	if cfg.Explainer.Enabled {
		var remote explain.Explainer
		switch cfg.Explainer.Provider {
		case "openai":
			remote = explain.NewOpenAIExplainer(cfg.Explainer.APIKey, cfg.Explainer.BaseURL, cfg.Explainer.Model, cfg.Explainer.Timeout)
		default:
			remote = explain.NewGenAIExplainer(cfg.Explainer.BaseURL, cfg.Explainer.APIKey, cfg.Explainer.Timeout)
		}
		explainer = explain.Chain{remote, explain.TemplateExplainer{}}
		zapLog.Info("Explanations enabled", zap.String("provider", cfg.Explainer.Provider))
	}

	orchestrator := recommend.NewOrchestrator(engine, blender, recommend.Config{
		DefaultMaxResults: cfg.Matching.DefaultMaxRecommendations,
		AverageSpeedKmh:   cfg.Matching.AverageSpeedKmh,
		ExplainTimeout:    cfg.Explainer.Timeout,
	}, log, recommend.WithExplainer(explainer), recommend.WithObservability(obs))

	// --- Routing & tracking ---
	var cache routing.Cache = routing.NewMemoryCache(cfg.Routing.CacheTTL)
	if conns.Redis != nil {
		cache = routing.NewRedisCache(conns.Redis, cfg.Routing.CacheTTL, log)
	}
	var provider routing.Provider
	if cfg.Maps.BaseURL != "" {
		provider = routing.NewHTTPProvider(cfg.Maps.BaseURL, cfg.Maps.APIKey, cfg.Maps.Timeout)
	}
	router := routing.NewRouter(cache, provider, routing.RouterConfig{
		Timeout:          cfg.Diversion.RouteTimeout,
		Precision:        cfg.Routing.CoordinatePrecision,
		IncidentRadiusKm: cfg.Routing.IncidentRadiusKm,
		AverageSpeedKmh:  cfg.Matching.AverageSpeedKmh,
	}, log)

	store := tracking.NewStore(cfg.Tracking.HistoryCap)

	scheduler := cron.New()
	if _, err := tracking.ScheduleEviction(scheduler, store, cfg.Tracking.EvictSchedule, cfg.Tracking.StaleAfter, time.Now, log); err != nil {
		zapLog.Fatal("invalid tracking eviction schedule", zap.String("schedule", cfg.Tracking.EvictSchedule), zap.Error(err))
	}
	scheduler.Start()

	var locationFeed *feed.Feed
	if mcfg := cfg.Tracking.MQTT; mcfg.Enabled {
		feedCfg := feed.Config{Broker: mcfg.Broker, ClientID: mcfg.ClientID, Topic: mcfg.Topic, QoS: mcfg.QoS}
		client, err := feed.Connect(feedCfg)
		if err != nil {
			zapLog.Warn("MQTT broker unavailable, location feed disabled", zap.String("broker", mcfg.Broker), zap.Error(err))
		} else {
			locationFeed = feed.New(client, store, feedCfg, log)
			if err := locationFeed.Start(); err != nil {
				zapLog.Warn("Location feed subscription failed", zap.Error(err))
				locationFeed.Close()
				locationFeed = nil
			}
		}
	}

	planner := diversion.NewPlanner(engine, diversion.Config{
		NotifyCustomerOnFailure: cfg.Diversion.NotifyCustomerOnFailure,
		CustomerService:         models.Contact{ID: "customer-service", Name: "Customer Service", Email: cfg.Notifications.CustomerServiceEmail},
		AverageSpeedKmh:         cfg.Matching.AverageSpeedKmh,
	}, log, diversion.WithTracking(store), diversion.WithRoutes(router))

	// --- Outer surfaces ---
	var technicians repository.TechnicianRepository
	if conns.Postgres != nil {
		technicians = repository.NewPostgresTechnicians(conns.Postgres)
	}

	deps := ped.Dependencies{Technicians: technicians}
	if cfg.Notifications.SMS.Enabled || cfg.Notifications.Email.Enabled {
		awsClients, err := commonaws.NewClients(ctx, cfg.Notifications.Region)
		if err != nil {
			zapLog.Warn("AWS clients unavailable, notifications will not be delivered", zap.Error(err))
		} else {
			sender := notify.NewAWSSender(awsClients.SNS, awsClients.SES, notify.SenderConfig{
				SMSEnabled:   cfg.Notifications.SMS.Enabled,
				SenderID:     cfg.Notifications.SMS.SenderID,
				EmailEnabled: cfg.Notifications.Email.Enabled,
				FromEmail:    cfg.Notifications.Email.FromEmail,
			})
			deps.Dispatcher = notify.NewDispatcher(sender, cfg.Notifications.SendTimeout, log)
		}
	}
	if conns.Elasticsearch != nil {
		deps.Audit = audit.NewIndexer(conns.Elasticsearch, cfg.Database.Elasticsearch.AuditIndex)
	}

	// --- Workers ---
	var workers []worker.JobWorker

	if wcfg := config.GetWorkerConfig(cfg, rt.TaskType); wcfg.Enabled {
		handler, err := rt.NewHandler(&rt.Config{
			Timeout:                   config.GetDuration(wcfg.Timeout),
			DefaultMaxRecommendations: cfg.Matching.DefaultMaxRecommendations,
		}, orchestrator, technicians, log)
		if err != nil {
			zapLog.Fatal("invalid worker config", zap.String("taskType", rt.TaskType), zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebeClient, rt.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, ped.TaskType); wcfg.Enabled {
		pcfg := ped.DefaultConfig()
		pcfg.Timeout = config.GetDuration(wcfg.Timeout)
		handler, err := ped.NewHandler(pcfg, planner, deps, log)
		if err != nil {
			zapLog.Fatal("invalid worker config", zap.String("taskType", ped.TaskType), zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebeClient, ped.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	if wcfg := config.GetWorkerConfig(cfg, rlu.TaskType); wcfg.Enabled {
		handler, err := rlu.NewHandler(&rlu.Config{Timeout: config.GetDuration(wcfg.Timeout)}, store, log)
		if err != nil {
			zapLog.Fatal("invalid worker config", zap.String("taskType", rlu.TaskType), zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebeClient, rlu.TaskType, wcfg, handler.Handle, obs, zapLog))
	}

	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if len(workers) == 0 {
			writeStatus(w, http.StatusServiceUnavailable, "no workers")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	for _, w := range workers {
		w.Close()
	}
	if locationFeed != nil {
		locationFeed.Close()
	}
	<-scheduler.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}
	if err := zeebeClient.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Dispatch worker stopped")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
