package app

import (
	"quiz_portal/docs"
	"quiz_portal/internal/middleware"
	"quiz_portal/internal/model"
	"quiz_portal/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	api := router.Group("/api")
	api.Use(middleware.ConfigMiddleware(a.CurrentConfig))

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(api, c)

	// 2. 作答：未登录返回 gate=login
	a.registerAttemptRoutes(api, c)

	// 3. 需要登录的路由
	authGroup := api.Group("")
	authGroup.Use(middleware.AuthMiddleware())
	{
		authGroup.GET("/profile", c.auth.Profile)
		authGroup.GET("/results/:id", c.review.GetResult)
		authGroup.POST("/reports", c.review.ReportQuestion)
	}

	// 4. 管理员相关接口
	a.registerAdminRoutes(api, c)
}

func (a *App) registerPublicRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/health", c.health.HealthCheck)
	rg.POST("/login", c.auth.Login)
	rg.POST("/signup", c.auth.Signup)

	rg.GET("/categories", c.category.GetTree)
	rg.GET("/categories/selectors", c.category.Selectors)

	rg.GET("/quizzes", c.catalog.ListQuizzes)
	rg.GET("/quizzes/:id", c.catalog.GetQuiz)
}

func (a *App) registerAttemptRoutes(rg *gin.RouterGroup, c *controllers) {
	attempts := rg.Group("/attempts/:quizId")
	attempts.Use(middleware.LoginGate())
	{
		attempts.POST("", c.attempt.Start)
		attempts.GET("", c.attempt.State)
		attempts.PUT("/answer", c.attempt.Answer)
		attempts.POST("/navigate", c.attempt.Navigate)
		attempts.POST("/submit", c.attempt.RequestSubmit)
		attempts.POST("/confirm", c.attempt.ConfirmSubmit)
		attempts.POST("/dismiss", c.attempt.DismissSubmit)
		attempts.POST("/cancel", c.attempt.Cancel)
		attempts.POST("/leave", c.attempt.Leave)
		attempts.GET("/stream", c.attempt.Stream)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.RoleMiddleware(model.Admin))
	{
		quizzes := admin.Group("/quizzes")
		{
			quizzes.GET("", c.composer.ListQuizzes)
			quizzes.DELETE("/:id", c.composer.DeleteQuiz)
			quizzes.PATCH("/:id/status", c.composer.SetStatus)
			quizzes.GET("/:id/reports", c.composer.ListReports)
			quizzes.POST("/:id/edit", c.composer.EditQuiz)
		}

		draft := admin.Group("/drafts/current")
		{
			draft.GET("", c.composer.GetDraft)
			draft.DELETE("", c.composer.ResetDraft)
			draft.PATCH("/meta", c.composer.UpdateMeta)
			draft.POST("/questions", c.composer.AddQuestion)
			draft.PUT("/questions/:index", c.composer.UpdateQuestion)
			draft.DELETE("/questions/:index", c.composer.RemoveQuestion)
			draft.POST("/bank", c.composer.LoadBank)
			draft.POST("/bank/add", c.composer.BankAdd)
			draft.POST("/bank/skip", c.composer.BankSkip)
			draft.POST("/generate", c.composer.Generate)
			draft.POST("/extract", c.composer.Extract)
			draft.POST("/save", c.composer.SaveDraft)
		}

		admin.POST("/bank", c.composer.ContributeBank)

		categories := admin.Group("/categories")
		{
			categories.PUT("", c.category.ReplaceTree)
			categories.POST("/nodes", c.category.InsertNode)
			categories.PATCH("/nodes", c.category.RenameNode)
			categories.DELETE("/nodes", c.category.DeleteNode)
		}

		uploads := admin.Group("/uploads")
		{
			uploads.POST("/images", c.upload.UploadImage)
			uploads.DELETE("/images", c.upload.DeleteImage)
		}
	}
}
