// Package handler 定义了 HTTP 检索接口。
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wikisearch/internal/middleware"
	"wikisearch/internal/service"
)

// NewRouter 创建路由引擎并注册检索接口。gatherer 不为 nil 时同时暴露 /metrics。
func NewRouter(searchService service.SearchService, defaultSize int, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/search", NewSearchHandler(searchService, defaultSize).Search)
	}
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
