//go:build release

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/config"
)

// initializeGin sets up Gin in release mode for production builds
func initializeGin(cfg *config.ServerConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// no configured proxies means none are trusted
	router.SetTrustedProxies(cfg.TrustedProxies)

	return router
}
