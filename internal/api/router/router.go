package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"jornadas/backend/config"
	"jornadas/backend/internal/api/handler"
	"jornadas/backend/internal/api/middleware"
	"jornadas/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时重算接口不限流；db 为 nil 时健康检查跳过数据库
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	// ── 健康检查 ──
	r.GET("/health", healthHandler(db, rdb))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 工作日模块
		shifts := v1.Group("/shifts")
		{
			shifts.GET("", h.Shift.ListShifts)
			shifts.POST("", h.Shift.CreateShift)
			shifts.POST("/complete", h.Shift.SaveComplete)
			shifts.POST("/recalculate",
				middleware.RateLimit(rdb, cfg.RateLimit.RecalcLimit, cfg.RateLimit.RecalcWindow),
				h.Shift.RecalculateAll)
			shifts.GET("/labor", h.Shift.ListLabor)
			shifts.GET("/operator/:operatorId", h.Shift.ListByOperator)
			shifts.GET("/operator/:operatorId/date/:date", h.Shift.ListByOperatorAndDate)
			shifts.GET("/:id", h.Shift.GetShift)
			shifts.PUT("/:id", h.Shift.UpdateShift)
			shifts.DELETE("/:id", h.Shift.DeleteShift)
			shifts.POST("/:id/activities", h.Shift.AddActivity)
		}

		// 报表模块
		reports := v1.Group("/reports")
		{
			reports.GET("/permits", h.Report.PermitReport)
			reports.GET("/permits/export", h.Report.ExportPermitReport)
		}
	}

	return r
}

// healthHandler 检查数据库与 Redis 连通性；Redis 不可用只标记为降级
func healthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := gin.H{"status": "ok", "database": "skipped", "redis": "disabled"}
		code := http.StatusOK

		if db != nil {
			status["database"] = "ok"
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				status["status"] = "unavailable"
				status["database"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx); err != nil {
				status["redis"] = "degraded"
			}
		}

		c.JSON(code, status)
	}
}
