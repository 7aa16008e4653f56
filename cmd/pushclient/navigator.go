package main

import (
	"context"
	"log"

	"karmaterra-backend/internal/push/domain"
)

// logNavigator stands in for the app shell and only reports where it would go
type logNavigator struct{}

func (logNavigator) Navigate(ctx context.Context, dest domain.Destination) error {
	switch dest.Kind {
	case domain.DestinationExternal:
		log.Printf("[Agent] Opening browser at %s", dest.Target)
	case domain.DestinationAppRoute:
		log.Printf("[Agent] Navigating to %s", dest.Target)
	default:
		log.Printf("[Agent] Navigating home (%s)", dest.Target)
	}
	return nil
}
