// Command pushclient is a headless device that registers for push with the API,
// persists its token and routes notification taps read from stdin.
//
//	AGENT_USER_ID=user-1 AGENT_PERMISSION=granted go run ./cmd/pushclient
//	{"link":"/blogs/12","notificationId":"<id>"}
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authUsecase "karmaterra-backend/internal/auth/usecase"
	"karmaterra-backend/internal/push/domain"
	"karmaterra-backend/internal/push/platform"
	pushUsecase "karmaterra-backend/internal/push/usecase"
	"karmaterra-backend/pkg/config"
	"karmaterra-backend/pkg/pushapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	devicePlatform, _ := domain.ParsePlatform(cfg.Agent.Platform)
	transport := platform.NewLoopback(devicePlatform, domain.ParsePermission(cfg.Agent.Permission))

	store := pushapi.New(cfg.Agent.APIBaseURL, tokenSource(cfg))
	coordinator := pushUsecase.NewTokenCoordinator(store, cfg.Push.MaxAttempts, cfg.Push.RetryBackoff)

	router := pushUsecase.NewRouter(cfg.Push.AllowedRoutes, cfg.Push.HomeRoute)
	receipts := pushUsecase.NewReadReceiptUpdater(store, cfg.Push.ReceiptTimeout)
	actions := pushUsecase.NewActionHandler(router, logNavigator{}, receipts)

	session := pushUsecase.NewRegistrationSession(transport, coordinator, actions)
	if err := session.Start(ctx, cfg.Agent.UserID); err != nil {
		log.Printf("[Agent] Registration failed: %v", err)
	}

	go func() {
		if err := transport.ReadTaps(ctx, os.Stdin); err != nil && ctx.Err() == nil {
			log.Printf("[Agent] Reading taps: %v", err)
		}
	}()

	<-ctx.Done()
	snap := session.Snapshot()
	log.Printf("[Agent] Shutting down (status=%s user=%q token=%s)", snap.Status, snap.ActiveUserID, domain.MaskToken(snap.Token))

	// logout must outlive the cancelled signal context
	logoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	transport.Wait()
	coordinator.Wait()
	if err := session.Logout(logoutCtx); err != nil {
		log.Printf("[Agent] Logout failed: %v", err)
	}
}

// tokenSource uses the configured access token, or mints one with the shared
// JWT secret for local development
func tokenSource(cfg *config.Config) pushapi.TokenSource {
	if cfg.Agent.AccessToken != "" {
		return func(string) (string, error) { return cfg.Agent.AccessToken, nil }
	}
	auth := authUsecase.NewAuthUsecase(cfg)
	return auth.IssueToken
}
