package server

import (
	"context"
	"net/http"
	"time"

	"github.com/abduss/practiceroom/internal/storage"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 5 * time.Second

type readinessCheck struct {
	component string
	run       func(ctx context.Context) error
}

func registerHealthRoutes(router *gin.Engine, deps Dependencies) {
	checks := readinessChecks(deps)

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		for _, check := range checks {
			if err := check.run(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "degraded",
					"component": check.component,
					"error":     err.Error(),
				})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func readinessChecks(deps Dependencies) []readinessCheck {
	var checks []readinessCheck

	// the JSON overlay lives in the upload dir even when blobs are in MinIO
	if !deps.Config.UsesMinIO() || !deps.Config.UsesPostgres() {
		dir := deps.Config.Recordings.UploadDir
		checks = append(checks, readinessCheck{
			component: "upload_dir",
			run:       func(context.Context) error { return storage.CheckWritable(dir) },
		})
	}
	if deps.DB != nil {
		checks = append(checks, readinessCheck{component: "postgres", run: deps.DB.Ping})
	}
	if deps.ObjectStore != nil {
		client, bucket := deps.ObjectStore, deps.Config.MinIO.Bucket
		checks = append(checks, readinessCheck{
			component: "minio",
			run:       func(ctx context.Context) error { return storage.PingBucket(ctx, client, bucket) },
		})
	}
	return checks
}
