package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/tutor-billing-api/api/swagger"
	"github.com/noah-isme/tutor-billing-api/internal/app"
	"github.com/noah-isme/tutor-billing-api/internal/handler"
	"github.com/noah-isme/tutor-billing-api/internal/middleware"
	"github.com/noah-isme/tutor-billing-api/internal/models"
	"github.com/noah-isme/tutor-billing-api/pkg/config"
	"github.com/noah-isme/tutor-billing-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-billing-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-billing-api/pkg/middleware/requestid"
)

func newRouter(a *app.App) *gin.Engine {
	cfg := a.Config
	clock := handler.NewClock(cfg.Billing.Location())

	groups := handler.NewGroupHandler(a.Groups)
	students := handler.NewStudentHandler(a.Students)
	enrollments := handler.NewEnrollmentHandler(a.Enrollments, a.Payments, clock)
	billingHandler := handler.NewBillingHandler(a.Billing, a.Export, a.Sweep, clock)
	reports := handler.NewReportHandler(a.Reports)
	metrics := handler.NewMetricsHandler(a.Metrics, a.DB)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metrics.Health)
	r.GET("/metrics", metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	// Signed report links carry their own authorisation.
	api.GET("/reports/:token", reports.Download)

	staff := api.Group("")
	staff.Use(middleware.JWT(a.Tokens))
	staff.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))
	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	staff.GET("/groups", groups.List)
	staff.GET("/groups/:id", groups.Get)
	staff.POST("/groups", admin, groups.Create)
	staff.PUT("/groups/:id", admin, groups.Update)

	staff.GET("/students", students.List)
	staff.GET("/students/:id", students.Get)
	staff.POST("/students", admin, students.Create)
	staff.PUT("/students/:id", admin, students.Update)
	staff.DELETE("/students/:id", admin, students.Delete)

	staff.GET("/enrollments", enrollments.List)
	staff.GET("/enrollments/:id", enrollments.Get)
	staff.GET("/enrollments/:id/status", enrollments.Status)
	staff.POST("/enrollments", admin, enrollments.Enroll)
	staff.DELETE("/enrollments/:id", admin, enrollments.Leave)
	staff.PUT("/enrollments/:id/due-date", admin, enrollments.AdjustDueDate)
	staff.POST("/enrollments/:id/lessons/consume", enrollments.ConsumeLesson)
	staff.GET("/enrollments/:id/payments", admin, enrollments.ListPayments)
	staff.POST("/enrollments/:id/payments", admin, enrollments.RecordPayment)

	staff.GET("/billing/summary", billingHandler.Summary)
	staff.GET("/billing/overdue", billingHandler.Overdue)
	staff.POST("/billing/sweep", admin, billingHandler.Sweep)

	return r
}
