package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"wikisearch/internal/model"
	"wikisearch/internal/service"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
	defaultSize   int
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService, defaultSize int) *SearchHandler {
	if defaultSize <= 0 {
		defaultSize = 10
	}
	return &SearchHandler{
		searchService: searchService,
		defaultSize:   defaultSize,
	}
}

// SearchResponse 是检索接口 data 字段的内容。
type SearchResponse struct {
	Total      int64             `json:"total"`
	EncodingMs float64           `json:"encodingMs"`
	SearchMs   float64           `json:"searchMs"`
	Hits       []model.SearchHit `json:"hits"`
}

// Search 是处理向量检索请求的 Gin 处理函数。
func (h *SearchHandler) Search(c *gin.Context) {
	query := c.Query("query")
	log.Infof("[SearchHandler] 收到检索请求, query: %s", query)

	if query == "" {
		log.Warnf("[SearchHandler] 检索请求失败: query 参数为空")
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "data": nil, "message": "无效的查询参数"})
		return
	}
	topK, err := strconv.Atoi(c.DefaultQuery("topK", strconv.Itoa(h.defaultSize)))
	if err != nil || topK <= 0 {
		topK = h.defaultSize
	}

	res, err := h.searchService.Search(c.Request.Context(), query, topK)
	if errors.Is(err, embedding.ErrNoKnownTokens) {
		log.Warnf("[SearchHandler] 查询中没有已知词, query: '%s'", query)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": http.StatusUnprocessableEntity, "data": nil, "message": "查询中没有已知词"})
		return
	}
	if err != nil {
		log.Errorf("[SearchHandler] 检索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "data": nil, "message": "搜索失败"})
		return
	}

	log.Infof("[SearchHandler] 检索成功, query: '%s', 返回 %d 条结果", query, len(res.Hits))
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"data": SearchResponse{
			Total:      res.Total,
			EncodingMs: toMillis(res.EncodingTime),
			SearchMs:   toMillis(res.SearchTime),
			Hits:       res.Hits,
		},
		"message": "success",
	})
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
