// Package handlers contains reusable HTTP pieces: health checks and middleware.
//
// # Health Checks
//
// Backends are pinged in parallel, each under the configured timeout:
//
//	health := handlers.NewHealth("v1.0.0", 3*time.Second)
//	health.Register("postgres", conn)
//	health.Register("redis", cache)
//
// # Cron Authentication
//
// The sweep trigger is called by an external scheduler holding a shared
// secret. Only the bcrypt hash of that secret is configured:
//
//	auth, err := handlers.NewCronAuth(os.Getenv("CRON_SECRET_HASH"))
//	mux.Handle("POST /api/v1/cron/absence-sweep", auth.Middleware(sweepHandler))
package handlers
