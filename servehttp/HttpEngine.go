package servehttp

import (
	"context"
	"loopflow/common"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func bindAddress() string {
	if addr := os.Getenv("HTTP_ADDRESS"); addr != "" {
		return addr
	}
	return ":8080"
}

// StartHTTPServer serves the engine until SIGINT/SIGTERM, then drains
// in-flight requests before exiting.
func StartHTTPServer(engine *gin.Engine) {
	srv := &http.Server{
		Addr:    bindAddress(),
		Handler: engine,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Fatal("listen: ", err)
		}
	}()
	common.Log.Info("http server listening on ", srv.Addr)

	quit := make(chan os.Signal, 1)
	// kill -9 sends SIGKILL which can't be caught
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	common.Log.Info("shutdown signal received, draining requests")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		common.Log.Fatal("http server shutdown failed: ", err)
	}
	<-ctx.Done()
	common.Log.Info("http server exited")
}
