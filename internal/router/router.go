package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/handler"
	"github.com/ArbeitEmployee/studyabroad-api/internal/middleware"
	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	"github.com/ArbeitEmployee/studyabroad-api/internal/repository"
	"github.com/ArbeitEmployee/studyabroad-api/internal/service"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/config"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/logger"
	corsmiddleware "github.com/ArbeitEmployee/studyabroad-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ArbeitEmployee/studyabroad-api/pkg/middleware/requestid"
)

// Dependencies bundles everything the HTTP layer needs.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	AuthService  *service.AuthService
	AuditRepo    *repository.UserRepository
	Metrics      *service.MetricsService
	Auth         *handler.AuthHandler
	Users        *handler.UserHandler
	Visa         *handler.VisaHandler
	Consultation *handler.ConsultationHandler
	Country      *handler.CountryHandler
	Course       *handler.CourseHandler
	Report       *handler.ReportHandler
	Ops          *handler.MetricsHandler
}

// New builds the gin engine with all routes registered.
func New(deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.AuthService))
	{
		authed.POST("/auth/logout", deps.Auth.Logout)
		authed.POST("/auth/change-password", deps.Auth.ChangePassword)
		authed.GET("/auth/me", deps.Auth.Me)
	}

	users := authed.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), deps.Users.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(deps.AuditRepo, "CREATE", "users"), deps.Users.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), deps.Users.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(deps.AuditRepo, "UPDATE", "users"), deps.Users.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(deps.AuditRepo, "DELETE", "users"), deps.Users.Delete)
	}

	visa := authed.Group("/visa-requests")
	{
		visa.POST("", middleware.RequireRoles(models.RoleStudent), deps.Visa.Create)
		visa.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee, models.RoleStudent), deps.Visa.List)
		visa.GET("/mine", middleware.RequireRoles(models.RoleStudent), deps.Visa.List)
		visa.GET("/assigned", middleware.RequireRoles(models.RoleEmployee), deps.Visa.List)
		visa.GET("/:id", deps.Visa.Get)
		visa.PUT("/:id/assign", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Visa.Assign)
		visa.PUT("/:id/steps/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Visa.CompleteStep)
		visa.PUT("/:id/decision", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), middleware.Audit(deps.AuditRepo, "DECIDE", "visa_requests"), deps.Visa.Decide)
		visa.PUT("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee, models.RoleStudent), deps.Visa.Cancel)
		visa.POST("/:id/documents/:name", middleware.RequireRoles(models.RoleStudent, models.RoleEmployee), deps.Visa.UploadDocument)
		visa.PUT("/:id/documents/:name/review", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Visa.ReviewDocument)
		visa.GET("/:id/documents/:name/link", deps.Visa.DocumentLink)
	}
	// Signed token carries authorization, no JWT needed.
	api.GET("/visa-requests/download/:token", deps.Visa.DownloadDocument)

	consultations := authed.Group("/consultations")
	{
		consultations.POST("", middleware.RequireRoles(models.RoleStudent), deps.Consultation.Create)
		consultations.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee, models.RoleStudent), deps.Consultation.List)
		consultations.GET("/mine", middleware.RequireRoles(models.RoleStudent), deps.Consultation.List)
		consultations.GET("/:id", deps.Consultation.Get)
		consultations.PUT("/:id/assign", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Consultation.Assign)
		consultations.PUT("/:id/complete", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Consultation.Complete)
		consultations.PUT("/:id/cancel", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee, models.RoleStudent), deps.Consultation.Cancel)
	}

	countries := authed.Group("/countries")
	{
		countries.GET("", deps.Country.List)
		countries.GET("/:id", deps.Country.Get)
		countries.GET("/:id/criteria", deps.Country.Criteria)
		countries.POST("", middleware.RequireRoles(models.RoleAdmin), deps.Country.Create)
		countries.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), deps.Country.Update)
		countries.POST("/:id/criteria", middleware.RequireRoles(models.RoleAdmin), deps.Country.AddCriteria)
		countries.DELETE("/:id/criteria/:criteriaId", middleware.RequireRoles(models.RoleAdmin), deps.Country.RemoveCriteria)
	}

	courses := authed.Group("/courses")
	{
		courses.GET("", deps.Course.List)
		courses.GET("/:id", deps.Course.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Course.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), deps.Course.Update)
		courses.POST("/:id/enroll", middleware.RequireRoles(models.RoleStudent), deps.Course.Enroll)
		courses.GET("/:id/enrollments", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee, models.RoleTeacher), deps.Course.Enrollments)
	}
	authed.PUT("/enrollments/:enrollmentId", deps.Course.UpdateEnrollment)
	authed.GET("/enrollments/me", middleware.RequireRoles(models.RoleStudent), deps.Course.MyEnrollments)

	reports := authed.Group("/reports")
	{
		reports.POST("/generate", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Report.GenerateReport)
		reports.GET("/status/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleEmployee), deps.Report.ReportStatus)
	}
	api.GET("/reports/download/:token", deps.Report.DownloadReport)

	authed.GET("/ops/status", middleware.RequireRoles(models.RoleAdmin), deps.Ops.Status)

	return r
}
