//go:build !release

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/config"
)

// initializeGin sets up Gin in debug mode for development builds
func initializeGin(_ *config.ServerConfig) *gin.Engine {
	return gin.New()
}
